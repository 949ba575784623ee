// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// history_cmd.go - Saved conversation management.
//
// Subcommands: list (default), show, delete, prune.

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/quillcli/quill/internal/config"
	"github.com/quillcli/quill/internal/history"
	"github.com/quillcli/quill/internal/util"
)

// RunHistory handles the history command.
func RunHistory(ctx context.Context, cfg *config.Config, args *Args) error {
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	sub := args.Parser.Positional(0)
	switch sub {
	case "", "list":
		return historyList(ctx, store, args)
	case "show":
		return historyShow(ctx, store, args)
	case "delete", "rm":
		return historyDelete(ctx, store, args)
	case "prune":
		return historyPrune(ctx, store, cfg, args)
	default:
		return Usagef("unknown history subcommand %q (try list, show, delete, prune)", sub)
	}
}

func historyList(ctx context.Context, store *history.Store, args *Args) error {
	limit := args.Parser.FlagIntOrDefault("limit", args.Parser.FlagIntOrDefault("n", 20))

	convs, err := store.ListConversations(ctx, limit)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Println("No saved conversations.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUPDATED\tMSGS\tTITLE")
	for _, c := range convs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			shortID(c.ID),
			c.UpdatedAt.Format("2006-01-02 15:04"),
			c.MessageCount,
			util.TruncateRunes(c.Title, 50))
	}
	return w.Flush()
}

func historyShow(ctx context.Context, store *history.Store, args *Args) error {
	id := args.Parser.Positional(1)
	if id == "" {
		return Usagef("usage: quill history show <id>")
	}

	conv, err := resolveConversation(ctx, store, id)
	if err != nil {
		return err
	}

	msgs, err := store.Messages(ctx, conv.ID)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s)\n\n", conv.Title, conv.CreatedAt.Format("2006-01-02 15:04"))
	for _, m := range msgs {
		label := m.Role
		if m.Role == "assistant" && m.Model != "" {
			label = fmt.Sprintf("%s (%s)", m.Role, m.Model)
			if m.TokenCount > 0 {
				label = fmt.Sprintf("%s (%s, %d tokens)", m.Role, m.Model, m.TokenCount)
			}
		}
		fmt.Printf("[%s]\n%s\n\n", label, m.Content)
	}
	return nil
}

func historyDelete(ctx context.Context, store *history.Store, args *Args) error {
	id := args.Parser.Positional(1)
	if id == "" {
		return Usagef("usage: quill history delete <id>")
	}

	conv, err := resolveConversation(ctx, store, id)
	if err != nil {
		return err
	}

	if err := store.Delete(ctx, conv.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", shortID(conv.ID))
	return nil
}

func historyPrune(ctx context.Context, store *history.Store, cfg *config.Config, args *Args) error {
	keep := args.Parser.FlagIntOrDefault("keep", cfg.History.MaxConversations)
	if keep <= 0 {
		return Usagef("prune requires a positive --keep value")
	}

	deleted, err := store.Prune(ctx, keep)
	if err != nil {
		return err
	}
	fmt.Printf("Pruned %d conversation(s), kept the %d most recent.\n", deleted, keep)
	return nil
}

// resolveConversation accepts a full ID or an unambiguous prefix.
func resolveConversation(ctx context.Context, store *history.Store, id string) (*history.Conversation, error) {
	conv, err := store.GetConversation(ctx, id)
	if err == nil {
		return conv, nil
	}

	convs, err := store.ListConversations(ctx, 0)
	if err != nil {
		return nil, err
	}

	var match *history.Conversation
	for i := range convs {
		if strings.HasPrefix(convs[i].ID, id) {
			if match != nil {
				return nil, fmt.Errorf("ambiguous conversation ID %q", id)
			}
			match = &convs[i]
		}
	}
	if match == nil {
		return nil, history.ErrNotFound
	}
	return match, nil
}

// shortID returns the first UUID segment for compact display.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
