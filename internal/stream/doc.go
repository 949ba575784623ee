// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes newline-delimited JSON completion streams.
//
// Model servers emit one JSON object per line over a chunked HTTP body,
// with no length prefixing. The decoder reassembles records across
// arbitrary network read boundaries and delivers them, strictly in
// order, to a caller-supplied sink. A record may arrive split over many
// reads, or many records may arrive in a single read; neither changes
// the decoded output.
//
// The decoder owns its buffer for the lifetime of one stream and is not
// safe for concurrent use. Each decode call is independent; there is no
// cross-stream state.
package stream
