// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Backend status command.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/quillcli/quill/internal/config"
	"github.com/quillcli/quill/internal/provider"
)

// RunStatus handles the status command.
func RunStatus(ctx context.Context, cfg *config.Config, args *Args) error {
	applyOverrides(cfg, args)

	p, err := provider.New(cfg)
	if err != nil {
		return err
	}

	printStatus(os.Stdout, p.Status(ctx))
	return nil
}

// printStatus renders a Status report. The three local failure modes
// read differently: server down, server up but the model list was
// malformed, and server up with no models installed.
func printStatus(w io.Writer, st *provider.Status) {
	fmt.Fprintf(w, "Mode: %s\n\n", st.Mode)

	fmt.Fprintf(w, "Local (%s):\n", st.LocalURL)
	switch {
	case !st.LocalRunning:
		fmt.Fprintf(w, "  not running (%v)\n", st.LocalError)
	case st.LocalError != nil:
		fmt.Fprintf(w, "  running, but model list unavailable: %v\n", st.LocalError)
	case len(st.LocalModels) == 0:
		fmt.Fprintln(w, "  running, no models installed (try 'ollama pull qwen2.5-coder:7b')")
	default:
		fmt.Fprintf(w, "  running, %d model(s):\n", len(st.LocalModels))
		for _, m := range st.LocalModels {
			fmt.Fprintf(w, "    %s (%s)\n", m.Name, formatBytes(m.Size))
		}
	}

	fmt.Fprintln(w, "\nCloud:")
	if st.CloudConfigured {
		fmt.Fprintf(w, "  configured, model %s\n", st.CloudModel)
	} else {
		fmt.Fprintln(w, "  not configured (set QUILL_API_KEY to enable)")
	}
}
