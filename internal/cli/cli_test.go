// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"testing"

	"github.com/jeranaias/ragchat-tui/internal/backend"
)

func TestParseBareLaunchesTUI(t *testing.T) {
	cmd, _ := ParseArgs(nil)
	if cmd != CmdTUI {
		t.Errorf("bare invocation = %v, want CmdTUI", cmd)
	}
}

func TestParseCommands(t *testing.T) {
	tests := []struct {
		argv []string
		want Command
	}{
		{[]string{"tui"}, CmdTUI},
		{[]string{"ask", "hello"}, CmdAsk},
		{[]string{"chat"}, CmdChat},
		{[]string{"sessions"}, CmdSessions},
		{[]string{"session", "list"}, CmdSessions},
		{[]string{"status"}, CmdStatus},
		{[]string{"s"}, CmdStatus},
		{[]string{"config", "show"}, CmdConfig},
		{[]string{"export", "42"}, CmdExport},
		{[]string{"version"}, CmdVersion},
		{[]string{"--version"}, CmdVersion},
		{[]string{"help"}, CmdHelp},
		{[]string{"-h"}, CmdHelp},
	}

	for _, tt := range tests {
		cmd, _ := ParseArgs(tt.argv)
		if cmd != tt.want {
			t.Errorf("ParseArgs(%v) = %v, want %v", tt.argv, cmd, tt.want)
		}
	}
}

func TestParseGlobalFlags(t *testing.T) {
	cmd, args := ParseArgs([]string{"--backend", "http://localhost:9000", "--model=llama3", "--no-rag", "-q", "status"})
	if cmd != CmdStatus {
		t.Fatalf("cmd = %v, want CmdStatus", cmd)
	}
	if args.Backend != "http://localhost:9000" {
		t.Errorf("Backend = %q", args.Backend)
	}
	if args.Model != "llama3" {
		t.Errorf("Model = %q", args.Model)
	}
	if !args.NoRAG {
		t.Error("NoRAG should be set")
	}
	if !args.Quiet {
		t.Error("Quiet should be set")
	}
}

func TestParseAskQuery(t *testing.T) {
	_, args := ParseArgs([]string{"ask", "what", "is", "a", "bloom", "filter"})
	if args.Query != "what is a bloom filter" {
		t.Errorf("Query = %q", args.Query)
	}

	_, args = ParseArgs([]string{"ask", "--model", "mistral", "short", "question"})
	if args.Model != "mistral" {
		t.Errorf("Model = %q", args.Model)
	}
	if args.Query != "short question" {
		t.Errorf("Query = %q", args.Query)
	}
}

func TestParseUnknownWordBecomesAsk(t *testing.T) {
	cmd, args := ParseArgs([]string{"why", "is", "the", "sky", "blue"})
	if cmd != CmdAsk {
		t.Fatalf("cmd = %v, want CmdAsk", cmd)
	}
	if args.Query != "why is the sky blue" {
		t.Errorf("Query = %q", args.Query)
	}
}

func TestParseSessionsSubcommands(t *testing.T) {
	_, args := ParseArgs([]string{"sessions"})
	if args.Subcommand != "list" {
		t.Errorf("default subcommand = %q, want list", args.Subcommand)
	}

	_, args = ParseArgs([]string{"sessions", "rename", "42", "Kernel", "notes"})
	if args.Subcommand != "rename" {
		t.Errorf("Subcommand = %q", args.Subcommand)
	}
	if args.SessionID != "42" {
		t.Errorf("SessionID = %q", args.SessionID)
	}
	if args.ConfigVal != "Kernel notes" {
		t.Errorf("new name = %q", args.ConfigVal)
	}
}

func TestParseConfigSubcommands(t *testing.T) {
	_, args := ParseArgs([]string{"config"})
	if args.Subcommand != "show" {
		t.Errorf("default subcommand = %q, want show", args.Subcommand)
	}

	_, args = ParseArgs([]string{"config", "set", "chat.use_rag", "false"})
	if args.ConfigKey != "chat.use_rag" || args.ConfigVal != "false" {
		t.Errorf("got key=%q val=%q", args.ConfigKey, args.ConfigVal)
	}
}

func TestParseExportFlags(t *testing.T) {
	_, args := ParseArgs([]string{"export", "42", "--format", "json", "--output", "/tmp/out.json"})
	if args.SessionID != "42" {
		t.Errorf("SessionID = %q", args.SessionID)
	}
	if args.Format != "json" {
		t.Errorf("Format = %q", args.Format)
	}
	if args.Output != "/tmp/out.json" {
		t.Errorf("Output = %q", args.Output)
	}

	_, args = ParseArgs([]string{"export", "--format=markdown", "7"})
	if args.SessionID != "7" || args.Format != "markdown" {
		t.Errorf("got id=%q format=%q", args.SessionID, args.Format)
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{errors.New("boom"), ExitGeneralError},
		{&ValidationError{Field: "x", Reason: "bad"}, ExitUsageError},
		{&ConfigError{Path: "p", Err: errors.New("syntax")}, ExitConfigError},
		{backend.ErrNotRunning, ExitBackendError},
		{backend.ErrTimeout, ExitTimeoutError},
		{backend.ErrConversationNotFound, ExitNotFoundError},
	}

	for _, tt := range tests {
		if got := ExitCodeFor(tt.err); got != tt.want {
			t.Errorf("ExitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestExitCodeForWrappedBackendError(t *testing.T) {
	err := &CommandError{Command: "ask", Action: "generate", Reason: "fail", Err: backend.ErrNotRunning}
	if got := ExitCodeFor(err); got != ExitBackendError {
		t.Errorf("wrapped not-running error = %d, want %d", got, ExitBackendError)
	}
}
