// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the client for OpenAI-compatible cloud
// inference APIs such as OpenRouter.
//
// The client speaks the /chat/completions wire format in both
// non-streaming and streaming (Server-Sent Events) form, with
// exponential-backoff retries for transient failures and client-side
// request pacing via golang.org/x/time/rate.
package cloud
