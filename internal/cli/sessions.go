// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// sessions.go - Saved conversation management for the ragchat CLI.
//
// Handles `ragchat sessions <subcommand>`:
//   list                List saved conversations (default)
//   show <id>           Print a conversation transcript
//   rename <id> <name>  Rename a conversation
//   delete <id>         Delete a conversation
//   export <id>         Export a conversation to a file
package cli

import (
	"fmt"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/render"
)

// HandleSessions dispatches the sessions subcommands.
func HandleSessions(args Args) error {
	switch args.Subcommand {
	case "list", "ls", "l", "":
		return sessionsList(args)
	case "show":
		return sessionsShow(args)
	case "rename":
		return sessionsRename(args)
	case "delete", "rm":
		return sessionsDelete(args)
	case "export":
		if args.SessionID == "" {
			return &ValidationError{Field: "session id", Reason: "usage: ragchat sessions export <id>"}
		}
		return HandleExport(args)
	default:
		return &ValidationError{
			Field:   "subcommand",
			Value:   args.Subcommand,
			Reason:  "unknown sessions subcommand",
			Example: "ragchat sessions list",
		}
	}
}

func sessionsList(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	client := newClient(cfg)

	ctx, cancel := opContext(cfg)
	defer cancel()

	summaries, err := client.ListConversations(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println(DimStyle.Render("no saved conversations"))
		return nil
	}

	fmt.Println(TitleStyle.Render("saved conversations"))
	for _, s := range summaries {
		fmt.Printf("%s  %s\n",
			DimStyle.Render(s.ID),
			ValueStyle.Render(s.Name))
		fmt.Printf("    %s\n",
			DimStyle.Render(fmt.Sprintf("%d messages · %s · updated %s",
				s.MessageCount, s.Model, s.UpdatedTime().Format("2006-01-02 15:04"))))
	}
	return nil
}

func sessionsShow(args Args) error {
	if args.SessionID == "" {
		return &ValidationError{Field: "session id", Reason: "usage: ragchat sessions show <id>"}
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

	fmt.Println(TitleStyle.Render(session.Name))
	for _, msg := range session.Messages {
		label := "you"
		if msg.Role == model.RoleAssistant {
			label = "assistant"
		}
		fmt.Println(SectionStyle.Render(label))
		fmt.Println(render.NeutralizeControls(msg.DisplayContent()))
		fmt.Println()
	}
	return nil
}

func sessionsRename(args Args) error {
	if args.SessionID == "" || args.ConfigVal == "" {
		return &ValidationError{Field: "arguments", Reason: "usage: ragchat sessions rename <id> <new name>"}
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	client := newClient(cfg)

	ctx, cancel := opContext(cfg)
	defer cancel()

	if err := client.RenameConversation(ctx, args.SessionID, args.ConfigVal); err != nil {
		return err
	}
	fmt.Println(SuccessStyle.Render("renamed to " + args.ConfigVal))
	return nil
}

func sessionsDelete(args Args) error {
	if args.SessionID == "" {
		return &ValidationError{Field: "session id", Reason: "usage: ragchat sessions delete <id>"}
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	client := newClient(cfg)

	ctx, cancel := opContext(cfg)
	defer cancel()

	if err := client.DeleteConversation(ctx, args.SessionID); err != nil {
		return err
	}
	fmt.Println(SuccessStyle.Render("deleted " + args.SessionID))
	return nil
}
