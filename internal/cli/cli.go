// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command dispatch for ragchat.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdSessions
	CmdStatus
	CmdConfig
	CmdExport
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	NoRAG   bool
	Model   string
	Backend string

	// Command-specific
	Query      string
	Subcommand string
	ConfigKey  string
	ConfigVal  string
	SessionID  string
	Format     string
	Output     string

	// Raw args remaining after flag parsing
	Raw []string
}

const usageText = `ragchat - terminal client for a local RAG chat backend

Ragchat talks to a locally hosted chat backend that streams answers
and can ground them in your indexed documents.

Usage:
  ragchat                        Start TUI (default)
  ragchat ask "question"         Ask a single question, stream the answer
  ragchat chat                   Line-oriented interactive chat
  ragchat sessions [subcommand]  Saved conversation management
  ragchat status, s              Backend, model, and index status
  ragchat config [subcommand]    Configuration
  ragchat export <id>            Export a conversation transcript
  ragchat version                Version information
  ragchat help                   This text

Session Commands:
  ragchat sessions list          List saved conversations
  ragchat sessions show <id>     Print a conversation transcript
  ragchat sessions rename <id> <name>
                                 Rename a conversation
  ragchat sessions delete <id>   Delete a conversation
  ragchat sessions export <id>   Export a conversation to a file

Config Commands:
  ragchat config show            Show current configuration
  ragchat config get <key>       Print one value (dot notation)
  ragchat config set <key> <value>
                                 Set one value and save
  ragchat config path            Print the config file path

Export Command:
  ragchat export <id>            Export to the configured directory
    --format markdown|json       Transcript format (default: markdown)
    --output FILE                Explicit output path

Global Flags:
  --backend URL   Override the backend base URL
  --model NAME    Override the model for this invocation
  --no-rag        Answer without document retrieval
  -q, --quiet     Suppress the stats line after answers
  --verbose       Debug output (TUI logs to the config dir)

Examples:
  ragchat ask "How do I rotate the index?"
  ragchat ask --no-rag "What is a bloom filter?"
  ragchat chat --model llama3.1:8b
  ragchat sessions list
  ragchat export 42 --format json
  cat notes.txt | ragchat ask "Summarize this"

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("ragchat version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses os.Args and returns the command and its arguments.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses an argument slice. Split out from Parse for tests.
func ParseArgs(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, args
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	args.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, args

	case "ask":
		parseAskArgs(&args, remaining)
		return CmdAsk, args

	case "chat":
		return CmdChat, args

	case "session", "sessions":
		parseSessionsArgs(&args, remaining)
		return CmdSessions, args

	case "status", "s":
		return CmdStatus, args

	case "config":
		parseConfigArgs(&args, remaining)
		return CmdConfig, args

	case "export":
		parseExportArgs(&args, remaining)
		return CmdExport, args

	case "version", "-v", "--version":
		return CmdVersion, args

	case "help", "-h", "--help":
		return CmdHelp, args

	default:
		// Unknown word: treat the whole remainder as an ask query so
		// `ragchat why is the sky blue` does something sensible.
		args.Query = strings.Join(append([]string{cmd}, remaining...), " ")
		return CmdAsk, args
	}
}

// parseGlobalFlags extracts global flags and returns the remaining args.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	args := Args{}

	i := 0
	for i < len(argv) {
		arg := argv[i]

		switch arg {
		case "-q", "--quiet":
			args.Quiet = true
		case "--verbose":
			args.Verbose = true
		case "--no-rag":
			args.NoRAG = true
		case "--model":
			if i+1 < len(argv) {
				i++
				args.Model = argv[i]
			}
		case "--backend":
			if i+1 < len(argv) {
				i++
				args.Backend = argv[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--model="):
				args.Model = strings.TrimPrefix(arg, "--model=")
			case strings.HasPrefix(arg, "--backend="):
				args.Backend = strings.TrimPrefix(arg, "--backend=")
			default:
				remaining = append(remaining, arg)
			}
		}
		i++
	}

	return remaining, args
}

// parseAskArgs gathers the question text, honoring ask-local flags.
func parseAskArgs(args *Args, remaining []string) {
	var query []string

	i := 0
	for i < len(remaining) {
		arg := remaining[i]
		switch arg {
		case "-m", "--model":
			if i+1 < len(remaining) {
				i++
				args.Model = remaining[i]
			}
		case "--no-rag":
			args.NoRAG = true
		default:
			if strings.HasPrefix(arg, "--model=") {
				args.Model = strings.TrimPrefix(arg, "--model=")
			} else {
				query = append(query, arg)
			}
		}
		i++
	}

	args.Query = strings.Join(query, " ")
}

// parseSessionsArgs splits `sessions <subcommand> [id] [name...]`.
func parseSessionsArgs(args *Args, remaining []string) {
	if len(remaining) == 0 {
		args.Subcommand = "list"
		return
	}
	args.Subcommand = strings.ToLower(remaining[0])
	if len(remaining) > 1 {
		args.SessionID = remaining[1]
	}
	if len(remaining) > 2 {
		args.ConfigVal = strings.Join(remaining[2:], " ")
	}
}

// parseConfigArgs splits `config <subcommand> [key] [value]`.
func parseConfigArgs(args *Args, remaining []string) {
	if len(remaining) == 0 {
		args.Subcommand = "show"
		return
	}
	args.Subcommand = strings.ToLower(remaining[0])
	if len(remaining) > 1 {
		args.ConfigKey = remaining[1]
	}
	if len(remaining) > 2 {
		args.ConfigVal = strings.Join(remaining[2:], " ")
	}
}

// parseExportArgs splits `export <id> [--format F] [--output FILE]`.
func parseExportArgs(args *Args, remaining []string) {
	i := 0
	for i < len(remaining) {
		arg := remaining[i]
		switch arg {
		case "--format":
			if i+1 < len(remaining) {
				i++
				args.Format = remaining[i]
			}
		case "--output", "-o":
			if i+1 < len(remaining) {
				i++
				args.Output = remaining[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--format="):
				args.Format = strings.TrimPrefix(arg, "--format=")
			case strings.HasPrefix(arg, "--output="):
				args.Output = strings.TrimPrefix(arg, "--output=")
			case args.SessionID == "":
				args.SessionID = arg
			}
		}
		i++
	}
}

// Run dispatches a parsed command. It returns the error for main to
// map to an exit code; CmdTUI is handled by main directly.
func Run(cmd Command, args Args) error {
	switch cmd {
	case CmdAsk:
		return HandleAsk(args)
	case CmdChat:
		return HandleChat(args)
	case CmdSessions:
		return HandleSessions(args)
	case CmdStatus:
		return HandleStatus(args)
	case CmdConfig:
		return HandleConfig(args)
	case CmdExport:
		return HandleExport(args)
	case CmdVersion:
		PrintVersion()
		return nil
	case CmdHelp:
		PrintUsage()
		return nil
	}
	return &ValidationError{Field: "command", Reason: "unknown command"}
}
