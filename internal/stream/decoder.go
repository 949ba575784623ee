// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"
)

// =============================================================================
// CHUNK
// =============================================================================

// Chunk is one decoded unit from a completion stream.
type Chunk struct {
	// Text is the fragment produced by the model for this chunk.
	// May be empty, including on the terminal chunk.
	Text string

	// Done is true on exactly one terminal chunk; no chunks follow it.
	Done bool

	// Metadata passed through verbatim from the source record.
	Model      string
	DoneReason string

	// Timing counters (populated on the terminal chunk only).
	TotalDuration      time.Duration
	LoadDuration       time.Duration
	PromptEvalDuration time.Duration
	EvalDuration       time.Duration
	PromptTokens       int
	CompletionTokens   int
}

// Sink receives each decoded chunk, synchronously and in stream order.
// A non-nil error aborts the decode immediately; the error is propagated
// to the Decode caller unchanged.
type Sink func(Chunk) error

// record is the wire shape of one NDJSON line from /api/generate.
// Unknown fields are ignored.
type record struct {
	Model              string `json:"model"`
	Response           string `json:"response"`
	Done               bool   `json:"done"`
	DoneReason         string `json:"done_reason,omitempty"`
	TotalDuration      int64  `json:"total_duration,omitempty"`
	LoadDuration       int64  `json:"load_duration,omitempty"`
	PromptEvalCount    int    `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64  `json:"prompt_eval_duration,omitempty"`
	EvalCount          int    `json:"eval_count,omitempty"`
	EvalDuration       int64  `json:"eval_duration,omitempty"`
}

func (r *record) chunk() Chunk {
	c := Chunk{
		Text:       r.Response,
		Done:       r.Done,
		Model:      r.Model,
		DoneReason: r.DoneReason,
	}
	if r.Done {
		c.TotalDuration = time.Duration(r.TotalDuration)
		c.LoadDuration = time.Duration(r.LoadDuration)
		c.PromptEvalDuration = time.Duration(r.PromptEvalDuration)
		c.EvalDuration = time.Duration(r.EvalDuration)
		c.PromptTokens = r.PromptEvalCount
		c.CompletionTokens = r.EvalCount
	}
	return c
}

// =============================================================================
// DECODER
// =============================================================================

// readBlockSize is the size of one network read.
const readBlockSize = 4096

// Decoder converts a raw byte stream into an ordered sequence of Chunks.
//
// The buffer holds, between emissions, zero or more complete
// newline-terminated records not yet parsed plus at most one incomplete
// trailing record. Buffering raw bytes and only interpreting complete
// lines means a multi-byte UTF-8 rune split across two reads is
// reassembled intact rather than corrupted.
type Decoder struct {
	buf   []byte
	block [readBlockSize]byte

	// Stats collected as a side effect of decoding.
	tokenCount int
	model      string
}

// NewDecoder creates a decoder for a single stream.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode reads r to completion, invoking sink once per fully parsed
// record, in the order records appear in the stream.
//
// The read is the only blocking point; the loop checks ctx between
// reads. On a terminal chunk (done=true) the loop returns immediately
// without consuming remaining bytes. EOF without a terminal chunk is
// not an error: the loop exits cleanly after the last valid record.
// A malformed line is logged and dropped; it never aborts the stream.
// Read errors and sink errors propagate; the caller owns closing r,
// which must happen on every exit path.
func (d *Decoder) Decode(ctx context.Context, r io.Reader, sink Sink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, readErr := r.Read(d.block[:])
		if n > 0 {
			d.buf = append(d.buf, d.block[:n]...)

			done, err := d.drain(sink)
			if err != nil || done {
				d.buf = nil
				return err
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				err := d.flush(sink)
				d.buf = nil
				return err
			}
			d.buf = nil
			return fmt.Errorf("stream read: %w", readErr)
		}
	}
}

// drain parses every complete line currently in the buffer, retaining
// the trailing partial line. Returns done=true once a terminal record
// has been emitted.
func (d *Decoder) drain(sink Sink) (bool, error) {
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			return false, nil
		}

		line := d.buf[:i]
		d.buf = d.buf[i+1:]

		done, err := d.emit(line, sink)
		if err != nil || done {
			return done, err
		}
	}
}

// flush handles EOF: a final record with no trailing newline is still a
// complete record and is parsed, matching servers that omit the last
// line terminator.
func (d *Decoder) flush(sink Sink) error {
	if len(bytes.TrimSpace(d.buf)) == 0 {
		return nil
	}
	_, err := d.emit(d.buf, sink)
	return err
}

// emit parses one line and forwards the resulting chunk to the sink.
// Blank lines are skipped. Malformed lines are logged and dropped.
func (d *Decoder) emit(line []byte, sink Sink) (bool, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return false, nil
	}

	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		// One bad record from a flaky server must not abort an
		// otherwise healthy stream.
		log.Printf("stream: dropping malformed record: %v", err)
		return false, nil
	}

	if rec.Model != "" {
		d.model = rec.Model
	}
	if rec.Response != "" {
		d.tokenCount++
	}

	if err := sink(rec.chunk()); err != nil {
		return false, err
	}
	return rec.Done, nil
}

// TokenCount returns the number of non-empty text fragments decoded.
func (d *Decoder) TokenCount() int {
	return d.tokenCount
}

// Model returns the model name observed in the stream, if any.
func (d *Decoder) Model() string {
	return d.model
}

// Decode is a convenience for one-shot use without keeping the Decoder.
func Decode(ctx context.Context, r io.Reader, sink Sink) error {
	return NewDecoder().Decode(ctx, r, sink)
}
