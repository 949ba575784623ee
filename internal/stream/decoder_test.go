// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

// =============================================================================
// TEST READERS
// =============================================================================

// chunkedReader delivers its payload in reads of at most size bytes,
// simulating arbitrary network chunking.
type chunkedReader struct {
	data []byte
	size int
	pos  int
}

func newChunkedReader(data string, size int) *chunkedReader {
	return &chunkedReader{data: []byte(data), size: size}
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := r.size
	if n > len(p) {
		n = len(p)
	}
	if r.pos+n > len(r.data) {
		n = len(r.data) - r.pos
	}
	copy(p, r.data[r.pos:r.pos+n])
	r.pos += n
	return n, nil
}

// sizedReader delivers reads of explicit sizes, then EOF.
type sizedReader struct {
	data  []byte
	sizes []int
	pos   int
	call  int
}

func (r *sizedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := len(r.data) - r.pos
	if r.call < len(r.sizes) && r.sizes[r.call] < n {
		n = r.sizes[r.call]
	}
	r.call++
	copy(p, r.data[r.pos:r.pos+n])
	r.pos += n
	return n, nil
}

// errReader fails after returning its payload.
type errReader struct {
	data []byte
	err  error
	sent bool
}

func (r *errReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		n := copy(p, r.data)
		return n, nil
	}
	return 0, r.err
}

func collect(t *testing.T, r io.Reader) []Chunk {
	t.Helper()
	var got []Chunk
	err := Decode(context.Background(), r, func(c Chunk) error {
		got = append(got, c)
		return nil
	})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return got
}

// =============================================================================
// ORDERING AND CHUNKING
// =============================================================================

const threeLineStream = `{"response":"Hel","done":false}` + "\n" +
	`{"response":"lo","done":false}` + "\n" +
	`{"response":"","done":true}` + "\n"

func TestDecode_Ordering(t *testing.T) {
	got := collect(t, strings.NewReader(threeLineStream))

	want := []string{"Hel", "lo", ""}
	if len(got) != len(want) {
		t.Fatalf("chunk count = %d, want %d", len(got), len(want))
	}
	for i, text := range want {
		if got[i].Text != text {
			t.Errorf("chunk[%d].Text = %q, want %q", i, got[i].Text, text)
		}
	}
	if got[0].Done || got[1].Done {
		t.Error("non-terminal chunks must have Done=false")
	}
	if !got[2].Done {
		t.Error("final chunk must have Done=true")
	}
}

// TestDecode_SplitBoundaryIdempotence feeds the same logical stream
// through every read size from single-byte up and requires identical
// output each time.
func TestDecode_SplitBoundaryIdempotence(t *testing.T) {
	reference := collect(t, strings.NewReader(threeLineStream))

	for size := 1; size <= len(threeLineStream); size++ {
		got := collect(t, newChunkedReader(threeLineStream, size))
		if len(got) != len(reference) {
			t.Fatalf("size %d: chunk count = %d, want %d", size, len(got), len(reference))
		}
		for i := range got {
			if got[i] != reference[i] {
				t.Errorf("size %d: chunk[%d] = %+v, want %+v", size, i, got[i], reference[i])
			}
		}
	}
}

// TestDecode_WorkedExample is the three-read scenario: 10 bytes, then
// 25 bytes, then the remainder.
func TestDecode_WorkedExample(t *testing.T) {
	r := &sizedReader{data: []byte(threeLineStream), sizes: []int{10, 25}}
	got := collect(t, r)

	if len(got) != 3 {
		t.Fatalf("chunk count = %d, want 3", len(got))
	}
	if got[0].Text != "Hel" || got[0].Done {
		t.Errorf("chunk[0] = %+v, want {Text:Hel Done:false}", got[0])
	}
	if got[1].Text != "lo" || got[1].Done {
		t.Errorf("chunk[1] = %+v, want {Text:lo Done:false}", got[1])
	}
	if got[2].Text != "" || !got[2].Done {
		t.Errorf("chunk[2] = %+v, want {Text: Done:true}", got[2])
	}
}

// =============================================================================
// UTF-8 INTEGRITY
// =============================================================================

// TestDecode_MultiByteRuneSplit splits the stream at every byte offset
// into two reads. The fragment contains multi-byte runes, so some
// splits land mid-rune; the decoded text must never corrupt.
func TestDecode_MultiByteRuneSplit(t *testing.T) {
	line := `{"response":"héllo, wörld — 日本語","done":true}` + "\n"

	for cut := 1; cut < len(line); cut++ {
		r := io.MultiReader(
			strings.NewReader(line[:cut]),
			strings.NewReader(line[cut:]),
		)
		got := collect(t, r)
		if len(got) != 1 {
			t.Fatalf("cut %d: chunk count = %d, want 1", cut, len(got))
		}
		if got[0].Text != "héllo, wörld — 日本語" {
			t.Errorf("cut %d: Text = %q", cut, got[0].Text)
		}
	}
}

// =============================================================================
// TERMINATION
// =============================================================================

func TestDecode_TerminalShortCircuit(t *testing.T) {
	input := `{"response":"a","done":true}` + "\n" +
		`{"response":"never","done":false}` + "\n"

	r := strings.NewReader(input)
	got := collect(t, r)

	if len(got) != 1 {
		t.Fatalf("chunk count = %d, want 1", len(got))
	}
	if got[0].Text != "a" || !got[0].Done {
		t.Errorf("chunk = %+v", got[0])
	}
}

func TestDecode_TerminalShortCircuit_StopsReading(t *testing.T) {
	// Deliver the terminal line in one read; the second line would only
	// be seen by a further Read call, which must not happen.
	first := `{"response":"a","done":true}` + "\n"
	r := &sizedReader{
		data:  []byte(first + `{"response":"b","done":false}` + "\n"),
		sizes: []int{len(first)},
	}

	got := collect(t, r)
	if len(got) != 1 {
		t.Fatalf("chunk count = %d, want 1", len(got))
	}
	if r.call != 1 {
		t.Errorf("reads after terminal chunk: %d, want 1 total", r.call)
	}
}

func TestDecode_EOFWithoutTerminal(t *testing.T) {
	input := `{"response":"partial","done":false}` + "\n"

	var got []Chunk
	err := Decode(context.Background(), strings.NewReader(input), func(c Chunk) error {
		got = append(got, c)
		return nil
	})
	if err != nil {
		t.Fatalf("Decode() error = %v, want nil on clean EOF", err)
	}
	if len(got) != 1 {
		t.Fatalf("chunk count = %d, want 1", len(got))
	}
	if got[0].Done {
		t.Error("no synthetic terminal chunk may be emitted")
	}
}

func TestDecode_FinalLineWithoutNewline(t *testing.T) {
	input := `{"response":"a","done":false}` + "\n" +
		`{"response":"b","done":false}` // no trailing newline

	got := collect(t, strings.NewReader(input))
	if len(got) != 2 {
		t.Fatalf("chunk count = %d, want 2", len(got))
	}
	if got[1].Text != "b" {
		t.Errorf("chunk[1].Text = %q, want b", got[1].Text)
	}
}

// =============================================================================
// ERROR HANDLING
// =============================================================================

func TestDecode_MalformedLineTolerance(t *testing.T) {
	input := `{"response":"a","done":false}` + "\n" +
		`{not valid json` + "\n" +
		`{"response":"b","done":false}` + "\n" +
		`{"response":"","done":true}` + "\n"

	got := collect(t, strings.NewReader(input))

	want := []string{"a", "b", ""}
	if len(got) != len(want) {
		t.Fatalf("chunk count = %d, want %d", len(got), len(want))
	}
	for i, text := range want {
		if got[i].Text != text {
			t.Errorf("chunk[%d].Text = %q, want %q", i, got[i].Text, text)
		}
	}
}

func TestDecode_BlankLinesSkipped(t *testing.T) {
	input := "\n  \n" + `{"response":"a","done":true}` + "\n"

	got := collect(t, strings.NewReader(input))
	if len(got) != 1 {
		t.Fatalf("chunk count = %d, want 1", len(got))
	}
}

func TestDecode_ReadErrorPropagates(t *testing.T) {
	readErr := errors.New("connection reset")
	r := &errReader{
		data: []byte(`{"response":"a","done":false}` + "\n"),
		err:  readErr,
	}

	var got []Chunk
	err := Decode(context.Background(), r, func(c Chunk) error {
		got = append(got, c)
		return nil
	})
	if !errors.Is(err, readErr) {
		t.Fatalf("Decode() error = %v, want wrapped %v", err, readErr)
	}
	if len(got) != 1 {
		t.Errorf("chunks before error = %d, want 1", len(got))
	}
}

func TestDecode_SinkErrorPropagates(t *testing.T) {
	sinkErr := errors.New("sink rejected chunk")
	calls := 0

	err := Decode(context.Background(), strings.NewReader(threeLineStream), func(c Chunk) error {
		calls++
		if calls == 2 {
			return sinkErr
		}
		return nil
	})
	if !errors.Is(err, sinkErr) {
		t.Fatalf("Decode() error = %v, want %v", err, sinkErr)
	}
	if calls != 2 {
		t.Errorf("sink calls = %d, want 2 (no calls after failure)", calls)
	}
}

func TestDecode_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Decode(ctx, strings.NewReader(threeLineStream), func(Chunk) error {
		t.Fatal("sink must not be called after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Decode() error = %v, want context.Canceled", err)
	}
}

// =============================================================================
// METADATA AND COUNTERS
// =============================================================================

func TestDecode_TerminalChunkCounters(t *testing.T) {
	input := `{"response":"hi","done":false,"model":"qwen2.5-coder:14b"}` + "\n" +
		`{"response":"","done":true,"done_reason":"stop","total_duration":2000000000,` +
		`"eval_count":42,"eval_duration":1000000000,"prompt_eval_count":7}` + "\n"

	got := collect(t, strings.NewReader(input))
	if len(got) != 2 {
		t.Fatalf("chunk count = %d, want 2", len(got))
	}

	final := got[1]
	if final.DoneReason != "stop" {
		t.Errorf("DoneReason = %q, want stop", final.DoneReason)
	}
	if final.CompletionTokens != 42 {
		t.Errorf("CompletionTokens = %d, want 42", final.CompletionTokens)
	}
	if final.PromptTokens != 7 {
		t.Errorf("PromptTokens = %d, want 7", final.PromptTokens)
	}
	if final.EvalDuration.Seconds() != 1.0 {
		t.Errorf("EvalDuration = %v, want 1s", final.EvalDuration)
	}

	if got[0].CompletionTokens != 0 {
		t.Error("counters must only be populated on the terminal chunk")
	}
}

func TestDecoder_TracksModelAndTokens(t *testing.T) {
	d := NewDecoder()
	input := `{"response":"a","done":false,"model":"llama3"}` + "\n" +
		`{"response":"b","done":false}` + "\n" +
		`{"response":"","done":true}` + "\n"

	err := d.Decode(context.Background(), strings.NewReader(input), func(Chunk) error { return nil })
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if d.Model() != "llama3" {
		t.Errorf("Model() = %q, want llama3", d.Model())
	}
	if d.TokenCount() != 2 {
		t.Errorf("TokenCount() = %d, want 2", d.TokenCount())
	}
}

// TestDecode_ManyRecordsOneRead covers the inverse chunking case: the
// entire stream arrives in a single read.
func TestDecode_ManyRecordsOneRead(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&sb, `{"response":"tok%03d","done":false}`+"\n", i)
	}
	sb.WriteString(`{"response":"","done":true}` + "\n")

	got := collect(t, strings.NewReader(sb.String()))
	if len(got) != 101 {
		t.Fatalf("chunk count = %d, want 101", len(got))
	}
	for i := 0; i < 100; i++ {
		want := fmt.Sprintf("tok%03d", i)
		if got[i].Text != want {
			t.Fatalf("chunk[%d].Text = %q, want %q", i, got[i].Text, want)
		}
	}
}
