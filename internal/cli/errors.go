// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Unified error handling for CLI commands.
//
// Commands always return errors; the caller decides how to display
// them and which exit code to use.

package cli

import (
	"errors"
	"fmt"

	"github.com/quillcli/quill/internal/cloud"
	"github.com/quillcli/quill/internal/history"
	"github.com/quillcli/quill/internal/ollama"
	"github.com/quillcli/quill/internal/provider"
)

// Exit codes for different error categories.
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitAuthError    = 4
	ExitNetworkError = 5
	ExitNotFound     = 7
	ExitTimeout      = 8
)

// UsageError indicates invalid command usage.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// Usagef creates a UsageError with a formatted message.
func Usagef(format string, args ...any) error {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsageError
	}

	switch {
	case errors.Is(err, cloud.ErrAuthFailed), errors.Is(err, cloud.ErrNotConfigured):
		return ExitAuthError
	case errors.Is(err, provider.ErrNoBackend):
		return ExitNetworkError
	case ollama.IsTimeout(err):
		return ExitTimeout
	case ollama.IsNotRunning(err):
		return ExitNetworkError
	case ollama.IsModelNotFound(err), errors.Is(err, cloud.ErrModelNotFound),
		errors.Is(err, history.ErrNotFound):
		return ExitNotFound
	}

	return ExitGeneralError
}

// FriendlyError returns a user-facing message for common failures,
// falling back to err.Error().
func FriendlyError(err error) string {
	switch {
	case ollama.IsNotRunning(err):
		return "Ollama is not running. Start it with 'ollama serve' or configure a cloud API key."
	case errors.Is(err, cloud.ErrNotConfigured):
		return "No cloud API key configured. Set QUILL_API_KEY or run 'quill config set cloud.api_key <key>'."
	case errors.Is(err, cloud.ErrAuthFailed):
		return "Cloud authentication failed. Check your API key."
	case errors.Is(err, cloud.ErrInsufficientCredits):
		return "Cloud account has insufficient credits."
	case errors.Is(err, provider.ErrNoBackend):
		return err.Error()
	}
	return err.Error()
}
