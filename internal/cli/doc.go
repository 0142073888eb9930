// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the non-TUI command surface of ragchat: the
// argument parser, the one-shot ask command, the line-oriented chat
// REPL, and the session, status, config, and export subcommands.
//
// Every command handler returns an error instead of exiting; main
// maps errors to exit codes in one place.
package cli
