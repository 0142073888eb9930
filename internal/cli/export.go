// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// export.go - Conversation export command for the ragchat CLI.
//
// Handles `ragchat export <id> [--format markdown|json] [--output FILE]`:
// fetches the saved conversation from the backend and writes a
// transcript file.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jeranaias/ragchat-tui/internal/export"
)

// HandleExport exports one saved conversation to a file.
func HandleExport(args Args) error {
	if args.SessionID == "" {
		return &ValidationError{
			Field:   "session id",
			Reason:  "usage: ragchat export <id>",
			Example: "ragchat export 42 --format json",
		}
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	client := newClient(cfg)

	ctx, cancel := opContext(cfg)
	defer cancel()

	doc, err := client.GetConversation(ctx, args.SessionID)
	if err != nil {
		return err
	}
	session := doc.ToSession()

	format := args.Format
	if format == "" {
		format = cfg.Export.Format
	}

	outputDir := cfg.Export.Dir
	if args.Output != "" {
		outputDir = filepath.Dir(args.Output)
	}

	path, err := export.ExportSession(session, format, &export.Options{
		OutputDir:         outputDir,
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	})
	if err != nil {
		return err
	}

	// An explicit --output wins over the generated filename.
	if args.Output != "" && args.Output != path {
		if err := os.Rename(path, args.Output); err != nil {
			return &CommandError{Command: "export", Action: "write", Reason: "could not write " + args.Output, Err: err}
		}
		path = args.Output
	}

	fmt.Println(SuccessStyle.Render("exported ") + ValueStyle.Render(path))
	return nil
}
