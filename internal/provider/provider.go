// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quillcli/quill/internal/cloud"
	"github.com/quillcli/quill/internal/config"
	"github.com/quillcli/quill/internal/ollama"
	"github.com/quillcli/quill/internal/stream"
)

// =============================================================================
// BACKEND SELECTION
// =============================================================================

// Backend identifies which backend served a request.
type Backend string

const (
	BackendLocal Backend = "local"
	BackendCloud Backend = "cloud"
)

// ErrNoBackend is returned when no backend can serve a request.
var ErrNoBackend = errors.New("no backend available")

// =============================================================================
// PROVIDER
// =============================================================================

// Provider routes inference requests to the local or cloud backend
// according to the configured mode.
//
// The Provider is safe for concurrent use.
type Provider struct {
	cfg   *config.Config
	local *ollama.Client
	cloud *cloud.Client
}

// New creates a Provider from the given configuration.
func New(cfg *config.Config) (*Provider, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	local := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Local.URL,
		DefaultModel: cfg.Local.Model,
	})

	cloudClient := cloud.NewClient(cloud.Config{
		APIKey:            cfg.Cloud.APIKey,
		BaseURL:           cfg.Cloud.BaseURL,
		Model:             cfg.Cloud.Model,
		MaxRetries:        cfg.Cloud.MaxRetries,
		RequestsPerMinute: cfg.Cloud.RequestsPerMinute,
	})

	return &Provider{
		cfg:   cfg,
		local: local,
		cloud: cloudClient,
	}, nil
}

// Local returns the underlying Ollama client.
func (p *Provider) Local() *ollama.Client {
	return p.local
}

// Cloud returns the underlying cloud client.
func (p *Provider) Cloud() *cloud.Client {
	return p.cloud
}

// Mode returns the configured provider mode.
func (p *Provider) Mode() string {
	return strings.ToLower(p.cfg.Provider.Mode)
}

// =============================================================================
// ROUTING
// =============================================================================

// pick decides which backend will serve the next request. In auto mode
// the local server is probed fresh each time; its availability is never
// cached since the server may start or stop between requests.
func (p *Provider) pick(ctx context.Context) (Backend, error) {
	switch p.Mode() {
	case "local":
		return BackendLocal, nil

	case "cloud":
		if !p.cloud.IsConfigured() {
			return "", fmt.Errorf("%w: cloud mode selected but no API key configured", ErrNoBackend)
		}
		return BackendCloud, nil

	default: // auto
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := p.local.CheckRunning(probeCtx)
		cancel()
		if err == nil {
			return BackendLocal, nil
		}

		if strings.EqualFold(p.cfg.Provider.Fallback, "error") {
			return "", fmt.Errorf("%w: Ollama is not running and cloud fallback is disabled", ErrNoBackend)
		}
		if !p.cloud.IsConfigured() {
			return "", fmt.Errorf("%w: Ollama is not running and no cloud API key is configured", ErrNoBackend)
		}
		return BackendCloud, nil
	}
}

// =============================================================================
// ASK
// =============================================================================

// Ask streams a response to a single prompt through sink, returning the
// backend that served it. Chunks arrive in order; the final chunk has
// Done set when the backend reported completion.
func (p *Provider) Ask(ctx context.Context, prompt string, sink stream.Sink) (Backend, error) {
	return p.AskWithHistory(ctx, nil, prompt, sink)
}

// AskWithHistory is Ask with prior conversation turns included for
// context. History is ordered oldest first.
func (p *Provider) AskWithHistory(ctx context.Context, history []cloud.ChatMessage, prompt string, sink stream.Sink) (Backend, error) {
	backend, err := p.pick(ctx)
	if err != nil {
		return "", err
	}

	switch backend {
	case BackendLocal:
		return backend, p.askLocal(ctx, history, prompt, sink)
	default:
		return backend, p.askCloud(ctx, history, prompt, sink)
	}
}

// askLocal streams from Ollama. History is folded into the prompt since
// /api/generate takes a single prompt string.
func (p *Provider) askLocal(ctx context.Context, history []cloud.ChatMessage, prompt string, sink stream.Sink) error {
	full := prompt
	if len(history) > 0 {
		var sb strings.Builder
		for _, msg := range history {
			sb.WriteString(msg.Role)
			sb.WriteString(": ")
			sb.WriteString(msg.Content)
			sb.WriteString("\n\n")
		}
		sb.WriteString("user: ")
		sb.WriteString(prompt)
		full = sb.String()
	}
	return p.local.Generate(ctx, p.cfg.Local.Model, full, sink)
}

// askCloud streams from the cloud backend, adapting SSE deltas to
// stream.Chunk so callers see one chunk shape.
func (p *Provider) askCloud(ctx context.Context, history []cloud.ChatMessage, prompt string, sink stream.Sink) error {
	messages := append(append([]cloud.ChatMessage{}, history...), cloud.NewUserMessage(prompt))

	return p.cloud.ChatStream(ctx, messages, func(chunk cloud.StreamChunk) error {
		out := stream.Chunk{
			Text:  chunk.Content(),
			Model: chunk.Model,
		}
		if chunk.IsDone() {
			out.Done = true
			out.DoneReason = chunk.FinishReason()
		}
		return sink(out)
	})
}

// =============================================================================
// STATUS
// =============================================================================

// Status reports backend availability for the status command.
type Status struct {
	Mode            string
	LocalURL        string
	LocalRunning    bool
	LocalError      error
	LocalModels     []ollama.ModelInfo
	CloudConfigured bool
	CloudModel      string
}

// Status probes both backends and returns their current state. The
// local probe and model listing are independent so a reachable server
// with a broken tags endpoint is still reported as running.
func (p *Provider) Status(ctx context.Context) *Status {
	st := &Status{
		Mode:            p.Mode(),
		LocalURL:        p.cfg.Local.URL,
		CloudConfigured: p.cloud.IsConfigured(),
		CloudModel:      p.cfg.Cloud.Model,
	}

	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := p.local.CheckRunning(probeCtx); err != nil {
		st.LocalError = err
		return st
	}
	st.LocalRunning = true

	models, err := p.local.ListModels(probeCtx)
	if err != nil {
		st.LocalError = err
		return st
	}
	st.LocalModels = models

	return st
}
