// ragchat - a terminal client for a locally hosted RAG chat backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ragchat-tui/internal/cli"
	"github.com/jeranaias/ragchat-tui/internal/config"
	"github.com/jeranaias/ragchat-tui/internal/ui/chat"
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
	cmd, args := cli.Parse()

	if cmd == cli.CmdTUI {
		runTUI(args)
		return
	}

	if err := cli.Run(cmd, args); err != nil {
		cli.PrintError(err)
		os.Exit(cli.ExitCodeFor(err))
	}
}

// runTUI starts the full-screen interface.
func runTUI(args cli.Args) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(cli.ExitConfigError)
	}
	cfg.ApplyEnvOverrides()

	if args.Backend != "" {
		cfg.Backend.BaseURL = args.Backend
	}
	if args.NoRAG {
		cfg.Chat.UseRAG = false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(cli.ExitConfigError)
	}
	config.SetGlobal(cfg)

	// Bubble Tea swallows stdout, so debug logging goes to a file.
	if args.Verbose {
		logPath := filepath.Join(config.ConfigDir(), "debug.log")
		if f, err := tea.LogToFile(logPath, "ragchat"); err == nil {
			defer f.Close()
		}
	}

	m := chat.New(cfg)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	// Live config reload: edits to the config file reach the running
	// TUI without a restart.
	watcher, err := config.StartWatcher(func(updated *config.Config) {
		config.SetGlobal(updated)
		m.NotifyConfigReload(updated)
	})
	if err == nil {
		defer watcher.Close()
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error running ragchat: %v\n", err)
		os.Exit(cli.ExitGeneralError)
	}
}
