// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestAccumulator_CollectsContent(t *testing.T) {
	acc := NewAccumulator()

	err := Decode(context.Background(), strings.NewReader(threeLineStream), acc.Sink())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if acc.Content() != "Hello" {
		t.Errorf("Content() = %q, want Hello", acc.Content())
	}
	if !acc.Done() {
		t.Error("Done() = false after terminal chunk")
	}
}

func TestAccumulator_StreamClosedWithoutTerminal(t *testing.T) {
	acc := NewAccumulator()
	input := `{"response":"partial","done":false}` + "\n"

	if err := Decode(context.Background(), strings.NewReader(input), acc.Sink()); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if acc.Content() != "partial" {
		t.Errorf("Content() = %q, want partial", acc.Content())
	}
	if acc.Done() {
		t.Error("Done() = true, want false when stream closed without terminal marker")
	}
}

func TestStats_Finalize(t *testing.T) {
	s := NewStats()
	s.RecordFirstToken()
	s.Finalize(Chunk{
		Done:             true,
		TotalDuration:    2 * time.Second,
		EvalDuration:     time.Second,
		CompletionTokens: 50,
		PromptTokens:     10,
	})

	if s.TokensPerSecond < 49 || s.TokensPerSecond > 51 {
		t.Errorf("TokensPerSecond = %f, want ~50", s.TokensPerSecond)
	}
	if s.CompletionTokens != 50 {
		t.Errorf("CompletionTokens = %d, want 50", s.CompletionTokens)
	}
}

func TestStats_Format(t *testing.T) {
	s := &Stats{
		TotalDuration:    1500 * time.Millisecond,
		CompletionTokens: 42,
		TokensPerSecond:  28.0,
		TTFT:             120 * time.Millisecond,
	}

	got := s.Format()
	for _, want := range []string{"1.5s", "42 tokens", "28.0 tok/s", "TTFT 120ms"} {
		if !strings.Contains(got, want) {
			t.Errorf("Format() = %q, missing %q", got, want)
		}
	}
}
