// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Backend status command for the ragchat CLI.
//
// Handles `ragchat status` (alias: s): pings the backend, then reports
// the active model, available models, and document index state.
package cli

import (
	"fmt"

	"github.com/jeranaias/ragchat-tui/internal/backend"
	"github.com/jeranaias/ragchat-tui/internal/config"
)

// HandleStatus prints the backend status report.
func HandleStatus(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	client := newClient(cfg)
	return printBackendStatus(cfg, client)
}

// printBackendStatus is shared between `ragchat status` and the chat
// REPL's /status command.
func printBackendStatus(cfg *config.Config, client *backend.Client) error {
	fmt.Println(TitleStyle.Render("ragchat status"))

	ctx, cancel := opContext(cfg)
	defer cancel()

	fmt.Println(LabelStyle.Render("backend") + ValueStyle.Render(cfg.Backend.BaseURL))

	if err := client.Ping(ctx); err != nil {
		fmt.Println(LabelStyle.Render("state") + ErrorStyle.Render("unreachable"))
		return err
	}
	fmt.Println(LabelStyle.Render("state") + SuccessStyle.Render("running"))

	if models, err := client.ListModels(ctx); err == nil {
		fmt.Println(LabelStyle.Render("model") + ValueStyle.Render(models.CurrentModel))
		fmt.Println(LabelStyle.Render("available") + DimStyle.Render(fmt.Sprintf("%d models", len(models.Models))))
	} else {
		fmt.Println(LabelStyle.Render("model") + WarningStyle.Render("could not list models"))
	}

	if rag, err := client.GetRAGStatus(ctx); err == nil {
		if rag.Loaded {
			fmt.Println(LabelStyle.Render("index") +
				SuccessStyle.Render("loaded ") +
				DimStyle.Render(fmt.Sprintf("(%d chunks, %s)", rag.ChunkCount, rag.CollectionName)))
		} else {
			fmt.Println(LabelStyle.Render("index") + WarningStyle.Render("no documents indexed"))
		}
	} else {
		fmt.Println(LabelStyle.Render("index") + WarningStyle.Render("status unavailable"))
	}

	if summaries, err := client.ListConversations(ctx); err == nil {
		fmt.Println(LabelStyle.Render("sessions") + ValueStyle.Render(fmt.Sprintf("%d saved", len(summaries))))
	}

	return nil
}
