// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the quill command line interface.
//
// Commands: ask, chat, models, status, history, config, version, help.
// Output is plain text; when stdout is not a terminal all prompts and
// decorations are suppressed so quill pipes cleanly.
package cli
