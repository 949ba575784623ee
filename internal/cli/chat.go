// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat session.
//
// A readline-style REPL with in-session history. Turns are persisted
// to the history store when enabled in config.
//
// In-session commands:
//   /new     Start a new conversation
//   /model   Show the active model
//   /status  Show backend status
//   /quit    Exit (also /exit, Ctrl-D)

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/peterh/liner"
	"golang.org/x/text/unicode/norm"

	"github.com/quillcli/quill/internal/cloud"
	"github.com/quillcli/quill/internal/config"
	"github.com/quillcli/quill/internal/history"
	"github.com/quillcli/quill/internal/provider"
	"github.com/quillcli/quill/internal/stream"
	"github.com/quillcli/quill/internal/util"
)

// chatSession holds the state of one interactive chat.
type chatSession struct {
	mu       sync.Mutex // guards cfg and provider against watcher reloads
	cfg      *config.Config
	provider *provider.Provider
	store    *history.Store // nil when history is disabled
	convID   string
	turns    []cloud.ChatMessage
	args     *Args
}

// reload swaps in a freshly loaded config mid-session. CLI flag
// overrides are reapplied so --local/--model survive the reload.
func (s *chatSession) reload(cfg *config.Config) {
	applyOverrides(cfg, s.args)
	p, err := provider.New(cfg)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.cfg = cfg
	s.provider = p
	s.mu.Unlock()
}

// current returns the active config and provider.
func (s *chatSession) current() (*config.Config, *provider.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.provider
}

// RunChat handles the chat command.
func RunChat(ctx context.Context, cfg *config.Config, args *Args) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}

	applyOverrides(cfg, args)

	p, err := provider.New(cfg)
	if err != nil {
		return err
	}

	session := &chatSession{cfg: cfg, provider: p, args: args}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			// History is best-effort; chat works without it.
			fmt.Fprintf(os.Stderr, "Warning: history disabled: %v\n", err)
		} else {
			session.store = store
			defer store.Close()
		}
	}

	// Pick up config edits made while the session is open.
	if watcher, err := config.NewWatcher(session.reload, nil); err == nil {
		if err := watcher.Watch(); err == nil {
			defer watcher.Close()
		}
	}

	if !args.Quiet {
		fmt.Println("quill chat - /quit to exit, /new for a fresh conversation")
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt("> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println()
				return nil
			}
			return err
		}

		input = strings.TrimSpace(norm.NFC.String(input))
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			done, err := session.command(ctx, input)
			if err != nil {
				fmt.Fprintln(os.Stderr, FriendlyError(err))
			}
			if done {
				return nil
			}
			continue
		}

		if err := session.turn(ctx, input); err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Println()
				continue
			}
			fmt.Fprintln(os.Stderr, FriendlyError(err))
		}
	}
}

// command dispatches an in-session slash command. Returns true when
// the session should end.
func (s *chatSession) command(ctx context.Context, input string) (bool, error) {
	switch strings.ToLower(strings.Fields(input)[0]) {
	case "/quit", "/exit", "/q":
		return true, nil

	case "/new":
		s.convID = ""
		s.turns = nil
		fmt.Println("Started a new conversation.")
		return false, nil

	case "/model":
		cfg, p := s.current()
		fmt.Printf("local: %s\ncloud: %s\nmode: %s\n",
			cfg.Local.Model, cfg.Cloud.Model, p.Mode())
		return false, nil

	case "/status":
		_, p := s.current()
		printStatus(os.Stdout, p.Status(ctx))
		return false, nil

	default:
		return false, Usagef("unknown command %q (try /quit, /new, /model, /status)", input)
	}
}

// turn runs one prompt/response exchange.
func (s *chatSession) turn(ctx context.Context, prompt string) error {
	cfg, p := s.current()
	stats := stream.NewStats()
	var acc stream.Accumulator

	sink := func(chunk stream.Chunk) error {
		if chunk.Text != "" {
			stats.RecordFirstToken()
			fmt.Print(chunk.Text)
		}
		if chunk.Done {
			stats.Finalize(chunk)
		}
		return acc.Sink()(chunk)
	}

	backend, err := p.AskWithHistory(ctx, s.turns, prompt, sink)
	if err != nil {
		return err
	}

	if !strings.HasSuffix(acc.Content(), "\n") {
		fmt.Println()
	}
	if s.args.Verbose {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", backend, stats.Format())
	}

	s.turns = append(s.turns,
		cloud.NewUserMessage(prompt),
		cloud.NewAssistantMessage(acc.Content()))

	s.persist(ctx, cfg, prompt, acc.Content(), string(backend), stats)
	return nil
}

// persist records the exchange in the history store, creating the
// conversation lazily on the first turn.
func (s *chatSession) persist(ctx context.Context, cfg *config.Config, prompt, response, backend string, stats *stream.Stats) {
	if s.store == nil {
		return
	}

	if s.convID == "" {
		title := util.TruncateRunes(util.FirstLine(prompt), 60)
		id, err := s.store.NewConversation(ctx, title)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not save conversation: %v\n", err)
			return
		}
		s.convID = id
	}

	model := cfg.Local.Model
	if backend == string(provider.BackendCloud) {
		model = cfg.Cloud.Model
	}

	if _, err := s.store.Append(ctx, s.convID, history.Message{Role: "user", Content: prompt}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not save message: %v\n", err)
		return
	}
	if _, err := s.store.Append(ctx, s.convID, history.Message{
		Role: "assistant", Content: response, Backend: backend, Model: model,
		TokenCount: stats.CompletionTokens, Duration: stats.TotalDuration,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not save message: %v\n", err)
	}

	if cfg.History.MaxConversations > 0 {
		if _, err := s.store.Prune(ctx, cfg.History.MaxConversations); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: history prune failed: %v\n", err)
		}
	}
}
