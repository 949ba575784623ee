// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single question command.
//
// Sends one prompt and streams the response to stdout as it arrives.
//
// Examples:
//   quill ask "What is a goroutine?"
//   quill ask --local "Explain this error"
//   quill ask --file main.go "What does this program do?"
//   echo "2+2?" | quill ask

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/quillcli/quill/internal/config"
	"github.com/quillcli/quill/internal/provider"
	"github.com/quillcli/quill/internal/stream"
)

// RunAsk handles the ask command.
func RunAsk(ctx context.Context, cfg *config.Config, args *Args) error {
	prompt := strings.TrimSpace(args.Query)

	// Piped stdin becomes (or extends) the prompt.
	if !IsTTY() {
		data, err := io.ReadAll(io.LimitReader(os.Stdin, 1<<20))
		if err == nil && len(data) > 0 {
			piped := strings.TrimSpace(string(data))
			if prompt == "" {
				prompt = piped
			} else {
				prompt = prompt + "\n\n" + piped
			}
		}
	}

	// --file appends the file's contents below the question.
	if args.File != "" {
		data, err := os.ReadFile(args.File)
		if err != nil {
			return fmt.Errorf("reading %s: %w", args.File, err)
		}
		if prompt == "" {
			prompt = string(data)
		} else {
			prompt = prompt + "\n\n```\n" + string(data) + "\n```"
		}
	}

	if prompt == "" {
		return Usagef("ask requires a question, e.g. quill ask \"What is a goroutine?\"")
	}

	// Normalize to NFC so composed and decomposed input compare equal
	// downstream.
	prompt = norm.NFC.String(prompt)

	applyOverrides(cfg, args)

	p, err := provider.New(cfg)
	if err != nil {
		return err
	}

	stats := stream.NewStats()
	var acc stream.Accumulator

	sink := func(chunk stream.Chunk) error {
		if chunk.Text != "" {
			stats.RecordFirstToken()
			if !args.JSON {
				fmt.Print(chunk.Text)
			}
		}
		if chunk.Done {
			stats.Finalize(chunk)
		}
		return acc.Sink()(chunk)
	}

	backend, err := p.Ask(ctx, prompt, sink)
	if err != nil {
		return err
	}

	if args.JSON {
		return printAskJSON(os.Stdout, acc.Content(), string(backend), stats)
	}

	// Terminate the line if the model didn't.
	if !strings.HasSuffix(acc.Content(), "\n") {
		fmt.Println()
	}

	if args.Verbose && !args.Quiet {
		fmt.Fprintf(os.Stderr, "\n[%s] %s\n", backend, stats.Format())
	}

	return nil
}

// printAskJSON emits the whole response as one JSON document, for piping
// into jq and scripts.
func printAskJSON(w io.Writer, content, backend string, stats *stream.Stats) error {
	doc := struct {
		Content   string  `json:"content"`
		Backend   string  `json:"backend"`
		Tokens    int     `json:"tokens"`
		DurationS float64 `json:"duration_seconds"`
	}{
		Content:   content,
		Backend:   backend,
		Tokens:    stats.CompletionTokens,
		DurationS: stats.TotalDuration.Seconds(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// applyOverrides folds command line flags into the loaded config.
func applyOverrides(cfg *config.Config, args *Args) {
	if args.Local {
		cfg.Provider.Mode = "local"
	}
	if args.Cloud {
		cfg.Provider.Mode = "cloud"
	}
	if args.Model != "" {
		cfg.Local.Model = args.Model
		cfg.Cloud.Model = args.Model
	}
}
