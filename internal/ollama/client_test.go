// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quillcli/quill/internal/stream"
)

func newTestClient(url string) *Client {
	return NewClientWithConfig(&ClientConfig{BaseURL: url})
}

func TestCheckRunning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if err := client.CheckRunning(context.Background()); err != nil {
		t.Fatalf("CheckRunning failed: %v", err)
	}
}

func TestCheckRunningNotRunning(t *testing.T) {
	// Point at a closed port.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(url)
	err := client.CheckRunning(context.Background())
	if !IsNotRunning(err) {
		t.Errorf("expected not-running error, got %v", err)
	}
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(ListModelsResponse{
			Models: []ModelInfo{
				{Name: "qwen2.5-coder:7b", Size: 4 << 30},
				{Name: "llama3:8b", Size: 5 << 30},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[0].Name != "qwen2.5-coder:7b" {
		t.Errorf("unexpected model name: %s", models[0].Name)
	}
}

func TestListModelsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("empty model list should not be an error: %v", err)
	}
	if models == nil || len(models) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", models)
	}
}

func TestListModelsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`this is not json`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.ListModels(context.Background())
	var clientErr *ClientError
	if !errors.As(err, &clientErr) || clientErr.Type != ErrTypeInvalidResponse {
		t.Errorf("expected invalid-response error, got %v", err)
	}
}

func TestListModelsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(url)
	_, err := client.ListModels(context.Background())
	if !IsNotRunning(err) {
		t.Errorf("expected not-running error, got %v", err)
	}
}

func TestShowModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.ShowModel(context.Background(), "no-such-model")
	if !IsModelNotFound(err) {
		t.Errorf("expected model-not-found error, got %v", err)
	}
}

func TestShowModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ShowModelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Name != "qwen2.5-coder:7b" {
			t.Errorf("unexpected model name: %s", req.Name)
		}
		json.NewEncoder(w).Encode(ShowModelResponse{
			Details: ModelDetails{Family: "qwen2", ParameterSize: "7B"},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	info, err := client.ShowModel(context.Background(), "qwen2.5-coder:7b")
	if err != nil {
		t.Fatalf("ShowModel failed: %v", err)
	}
	if info.Details.ParameterSize != "7B" {
		t.Errorf("unexpected details: %+v", info.Details)
	}
}

func TestGenerateStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if !req.Stream {
			t.Error("expected streaming request")
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Write([]byte(`{"model":"m","response":"Hello","done":false}` + "\n"))
		w.Write([]byte(`{"model":"m","response":", world","done":false}` + "\n"))
		w.Write([]byte(`{"model":"m","response":"","done":true,"done_reason":"stop","eval_count":2}` + "\n"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	var acc stream.Accumulator
	err := client.Generate(context.Background(), "m", "hi", acc.Sink())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got := acc.Content(); got != "Hello, world" {
		t.Errorf("unexpected content: %q", got)
	}
	if !acc.Done() {
		t.Error("expected terminal chunk")
	}
}

func TestGenerateModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.Generate(context.Background(), "missing", "hi", func(stream.Chunk) error { return nil })
	if !IsModelNotFound(err) {
		t.Errorf("expected model-not-found error, got %v", err)
	}
}

func TestGenerateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model requires more system memory"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.Generate(context.Background(), "m", "hi", func(stream.Chunk) error { return nil })
	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("expected *ClientError, got %v", err)
	}
	if clientErr.Message != "model requires more system memory" {
		t.Errorf("expected server error message, got %q", clientErr.Message)
	}
}

func TestGenerateComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		json.NewEncoder(w).Encode(GenerateResponse{
			Model:    req.Model,
			Response: "four",
			Done:     true,
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.GenerateComplete(context.Background(), "m", "2+2?")
	if err != nil {
		t.Fatalf("GenerateComplete failed: %v", err)
	}
	if resp.Response != "four" {
		t.Errorf("unexpected response: %q", resp.Response)
	}
}

func TestGenerateUsesDefaultModel(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		json.NewEncoder(w).Encode(GenerateResponse{Done: true})
	}))
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL, DefaultModel: "fallback:7b"})
	if _, err := client.GenerateComplete(context.Background(), "", "hi"); err != nil {
		t.Fatalf("GenerateComplete failed: %v", err)
	}
	if gotModel != "fallback:7b" {
		t.Errorf("expected default model, got %q", gotModel)
	}
}

func TestConfigDefaults(t *testing.T) {
	client := NewClientWithConfig(&ClientConfig{})
	if client.BaseURL() != "http://127.0.0.1:11434" {
		t.Errorf("unexpected base URL: %s", client.BaseURL())
	}
	if client.DefaultModel() == "" {
		t.Error("expected default model to be filled in")
	}
}
