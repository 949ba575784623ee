// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// STREAM STATISTICS
// =============================================================================

// Stats holds statistics collected over one stream.
type Stats struct {
	StartTime      time.Time
	FirstTokenTime time.Time
	EndTime        time.Time

	// Durations reported by the server on the terminal chunk.
	TotalDuration      time.Duration
	LoadDuration       time.Duration
	PromptEvalDuration time.Duration
	EvalDuration       time.Duration

	PromptTokens     int
	CompletionTokens int

	// Computed.
	TTFT            time.Duration
	TokensPerSecond float64
}

// NewStats creates Stats with the start time set.
func NewStats() *Stats {
	return &Stats{StartTime: time.Now()}
}

// RecordFirstToken marks the arrival of the first text fragment.
func (s *Stats) RecordFirstToken() {
	if s.FirstTokenTime.IsZero() {
		s.FirstTokenTime = time.Now()
		s.TTFT = s.FirstTokenTime.Sub(s.StartTime)
	}
}

// Finalize fills in server-reported counters from the terminal chunk.
func (s *Stats) Finalize(c Chunk) {
	s.EndTime = time.Now()
	s.TotalDuration = c.TotalDuration
	s.LoadDuration = c.LoadDuration
	s.PromptEvalDuration = c.PromptEvalDuration
	s.EvalDuration = c.EvalDuration
	s.PromptTokens = c.PromptTokens
	s.CompletionTokens = c.CompletionTokens

	if s.EvalDuration > 0 {
		s.TokensPerSecond = float64(s.CompletionTokens) / s.EvalDuration.Seconds()
	}
}

// Format renders a one-line summary suitable for the CLI footer.
func (s *Stats) Format() string {
	return fmt.Sprintf("%s | %d tokens | %.1f tok/s | TTFT %dms",
		formatSeconds(s.TotalDuration.Seconds()),
		s.CompletionTokens,
		s.TokensPerSecond,
		s.TTFT.Milliseconds())
}

func formatSeconds(sec float64) string {
	if sec < 1 {
		return fmt.Sprintf("%dms", int(sec*1000))
	}
	return fmt.Sprintf("%.1fs", sec)
}

// =============================================================================
// ACCUMULATOR
// =============================================================================

// Accumulator collects chunks into a complete response with statistics.
// The zero value is ready to use.
type Accumulator struct {
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	content strings.Builder
	stats   *Stats
	done    bool
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{stats: NewStats()}
}

// Add processes one chunk.
func (a *Accumulator) Add(c Chunk) {
	if a.stats == nil {
		a.stats = NewStats()
	}
	if c.Text != "" && a.content.Len() == 0 {
		a.stats.RecordFirstToken()
	}
	a.content.WriteString(c.Text)

	if c.Done {
		a.done = true
		a.stats.Finalize(c)
	}
}

// Sink returns a Sink that feeds this accumulator.
func (a *Accumulator) Sink() Sink {
	return func(c Chunk) error {
		a.Add(c)
		return nil
	}
}

// Content returns the accumulated text.
func (a *Accumulator) Content() string {
	return a.content.String()
}

// Done reports whether a terminal chunk was observed. A stream that
// closes without one leaves Done false, which is how callers detect
// "closed without an explicit completion marker".
func (a *Accumulator) Done() bool {
	return a.done
}

// Stats returns the collected statistics.
func (a *Accumulator) Stats() *Stats {
	if a.stats == nil {
		a.stats = NewStats()
	}
	return a.stats
}
