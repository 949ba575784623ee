// quill - Ask an LLM from your terminal, local-first with cloud fallback.
//
// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/quillcli/quill/internal/cli"
	"github.com/quillcli/quill/internal/config"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	cmd, args := cli.Parse(argv)

	// Commands that never touch config or the network.
	switch cmd {
	case cli.CmdHelp:
		fmt.Print(cli.Usage())
		return cli.ExitSuccess
	case cli.CmdVersion:
		fmt.Println(cli.VersionString())
		return cli.ExitSuccess
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return cli.ExitConfigError
	}

	// Ctrl+C cancels the in-flight request instead of killing the process
	// mid-write.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case cli.CmdAsk:
		err = cli.RunAsk(ctx, cfg, args)
	case cli.CmdChat:
		err = cli.RunChat(ctx, cfg, args)
	case cli.CmdModels:
		err = cli.RunModels(ctx, cfg, args)
	case cli.CmdStatus:
		err = cli.RunStatus(ctx, cfg, args)
	case cli.CmdHistory:
		err = cli.RunHistory(ctx, cfg, args)
	case cli.CmdConfig:
		err = cli.RunConfig(ctx, cfg, args)
	default:
		fmt.Print(cli.Usage())
		return cli.ExitUsageError
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, cli.FriendlyError(err))
		return cli.ExitCode(err)
	}
	return cli.ExitSuccess
}
