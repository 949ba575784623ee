// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the local Ollama API.
//
// The client covers health checks, model discovery, and text generation
// over /api/generate in both streaming (NDJSON) and non-streaming form.
// Streaming responses are decoded with the internal/stream package.
//
// Errors are reported as *ClientError with a Type that callers can
// branch on via IsNotRunning, IsModelNotFound, and IsTimeout.
package ollama
