// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command parsing and dispatch for quill.

package cli

import (
	"fmt"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdHelp Command = iota
	CmdAsk
	CmdChat
	CmdModels
	CmdStatus
	CmdHistory
	CmdConfig
	CmdVersion
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	Local   bool   // Force the local backend
	Cloud   bool   // Force the cloud backend
	Model   string // Override the configured model

	// Command-specific
	Query  string
	File   string // ask: file whose contents are appended to the prompt
	JSON   bool   // ask: emit a single JSON document instead of streaming
	Parser *ArgParser // Remaining args for subcommand handling
}

const usageText = `quill - streaming LLM client for the terminal

Quill talks to a local Ollama server first and falls back to an
OpenAI-compatible cloud API when configured.

Usage:
  quill ask "question"       Ask a single question
    -f, --file PATH          Append a file's contents to the prompt
    --json                   Emit one JSON document instead of streaming
  quill chat                 Interactive chat session
  quill models               List available models
  quill status, s            Show backend status
  quill history [subcommand] Manage saved conversations
  quill config [subcommand]  Configuration
  quill version              Show version
  quill help                 Show this help

History Commands:
  quill history list          List saved conversations
    --limit N                 Show at most N conversations
  quill history show <id>     Print a conversation transcript
  quill history delete <id>   Delete a conversation
  quill history prune         Prune old conversations
    --keep N                  Conversations to keep (default from config)

Config Commands:
  quill config show           Display current configuration
  quill config get <key>      Get a value (dot notation, e.g. provider.mode)
  quill config set <key> <v>  Set a value
  quill config path           Show the config file location

Global Flags:
  --local         Force the local Ollama backend
  --cloud         Force the cloud backend
  -m, --model M   Override the configured model
  -q, --quiet     Minimal output (content only)
  -v, --verbose   Show timing and routing details
`

// Usage returns the top-level usage text.
func Usage() string {
	return usageText
}

// VersionString returns the full version line.
func VersionString() string {
	return fmt.Sprintf("quill %s (commit %s, built %s, %s/%s)",
		Version, GitCommit, BuildDate, runtime.GOOS, runtime.GOARCH)
}

// Parse parses command line arguments (without the program name).
func Parse(argv []string) (Command, *Args) {
	args := &Args{}

	if len(argv) == 0 {
		return CmdHelp, args
	}

	cmd := CmdHelp
	rest := argv[1:]

	switch strings.ToLower(argv[0]) {
	case "ask":
		cmd = CmdAsk
	case "chat":
		cmd = CmdChat
	case "models", "m":
		cmd = CmdModels
	case "status", "s":
		cmd = CmdStatus
	case "history":
		cmd = CmdHistory
	case "config":
		cmd = CmdConfig
	case "version", "--version", "-V":
		cmd = CmdVersion
	case "help", "--help", "-h":
		cmd = CmdHelp
	default:
		// Bare "quill some question" is shorthand for ask.
		cmd = CmdAsk
		rest = argv
	}

	parser := NewArgParser(rest)
	args.Parser = parser
	args.Quiet = parser.BoolFlag("quiet") || parser.BoolFlag("q")
	args.Verbose = parser.BoolFlag("verbose") || parser.BoolFlag("v")
	args.Local = parser.BoolFlag("local")
	args.Cloud = parser.BoolFlag("cloud")
	args.Model = parser.FlagOrDefault("model", parser.Flag("m"))

	if cmd == CmdAsk {
		args.Query = strings.Join(parser.PositionalFrom(0), " ")
		args.File = parser.FlagOrDefault("file", parser.Flag("f"))
		args.JSON = parser.BoolFlag("json")
	}

	return cmd, args
}
