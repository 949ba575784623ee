// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration command.
//
// Subcommands: show (default), get, set, path, keys.

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/quillcli/quill/internal/config"
)

// RunConfig handles the config command.
func RunConfig(_ context.Context, cfg *config.Config, args *Args) error {
	sub := args.Parser.Positional(0)

	switch sub {
	case "", "show":
		fmt.Println(cfg.String())
		return nil

	case "get":
		key := args.Parser.Positional(1)
		if key == "" {
			return Usagef("usage: quill config get <key>")
		}
		value, err := cfg.Get(key)
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil

	case "set":
		key := args.Parser.Positional(1)
		value := args.Parser.Positional(2)
		if key == "" || value == "" {
			return Usagef("usage: quill config set <key> <value>")
		}
		if err := cfg.Set(key, value); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return err
		}
		fmt.Printf("Set %s\n", key)
		return nil

	case "path":
		path, err := config.PathTOML()
		if err != nil {
			return err
		}
		fmt.Println(path)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "(file does not exist yet; defaults are in effect)")
		}
		return nil

	case "keys":
		for _, key := range config.AllKeys() {
			fmt.Println(key)
		}
		return nil

	default:
		return Usagef("unknown config subcommand %q (try show, get, set, path, keys)", sub)
	}
}
