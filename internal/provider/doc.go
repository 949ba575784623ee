// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider selects and drives the inference backend.
//
// A Provider owns a local Ollama client and an optional cloud client,
// and routes each request according to the configured mode: "local",
// "cloud", or "auto". Auto mode probes the local server per request
// and falls back to cloud when it is unreachable. Both backends
// deliver output through the same stream.Sink so callers render
// responses identically regardless of where they ran.
//
// Providers are constructed from an explicit *config.Config; there is
// no package-level default instance.
package provider
