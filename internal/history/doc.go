// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history persists chat conversations in a local SQLite
// database so sessions can be reviewed and resumed later.
//
// Storage lives at ~/.quill/history.db by default. The pure-Go
// modernc.org/sqlite driver is used, so no cgo is required.
package history
