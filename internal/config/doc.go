// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for quill.
//
// Supports both TOML and JSON formats with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.quill/config.toml
//   - ~/.quill/config.json
//   - Built-in defaults
package config
