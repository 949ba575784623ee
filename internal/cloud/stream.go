// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamChunk represents a single delta from the streaming response.
type StreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Role    string `json:"role,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Content returns the content from the first choice's delta.
func (c *StreamChunk) Content() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// IsDone returns true if the stream has finished.
func (c *StreamChunk) IsDone() bool {
	return c.FinishReason() != ""
}

// FinishReason returns the finish reason, empty while streaming.
func (c *StreamChunk) FinishReason() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].FinishReason
	}
	return ""
}

// StreamCallback is called for each chunk received during streaming,
// in arrival order. A non-nil return aborts the stream.
type StreamCallback func(chunk StreamChunk) error

// =============================================================================
// SSE READER
// =============================================================================

// sseReader parses Server-Sent Events from a stream.
type sseReader struct {
	reader *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{reader: bufio.NewReader(r)}
}

// readEvent reads the next SSE data payload from the stream.
// Returns io.EOF when the stream ends.
func (s *sseReader) readEvent() ([]byte, error) {
	var dataLines [][]byte

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				if len(dataLines) > 0 {
					return bytes.Join(dataLines, []byte("\n")), nil
				}
				return nil, io.EOF
			}
			return nil, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Empty line signals end of event.
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		if bytes.HasPrefix(line, []byte("data:")) {
			dataLines = append(dataLines, bytes.TrimSpace(line[5:]))
		}
		// Ignore event:, id:, retry:, and comment lines.
	}
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// ChatStream performs a streaming chat completion request, invoking
// callback for each delta. Returns when the server sends [DONE], the
// stream ends, the context is cancelled, or the callback fails. The
// response body is always released before returning.
func (c *Client) ChatStream(ctx context.Context, messages []ChatMessage, callback StreamCallback) error {
	return c.ChatStreamWithModel(ctx, c.model, messages, callback)
}

// ChatStreamWithModel is ChatStream with a per-request model override.
func (c *Client) ChatStreamWithModel(ctx context.Context, model string, messages []ChatMessage, callback StreamCallback) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	if err := c.wait(ctx); err != nil {
		return err
	}

	reqBody := ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := sharedStreamClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := readBounded(resp.Body)
		return classifyError(resp.StatusCode, body)
	}

	return processStream(ctx, resp.Body, callback)
}

// processStream reads and dispatches the SSE stream.
func processStream(ctx context.Context, body io.Reader, callback StreamCallback) error {
	reader := newSSEReader(body)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		data, err := reader.readEvent()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("stream read: %w", err)
		}

		if bytes.Equal(data, []byte("[DONE]")) {
			return nil
		}

		var chunk StreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			// Malformed events are dropped, not fatal.
			continue
		}

		if err := callback(chunk); err != nil {
			return err
		}

		if chunk.IsDone() {
			return nil
		}
	}
}
