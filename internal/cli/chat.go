// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-oriented interactive chat for the ragchat CLI.
//
// Handles `ragchat chat`: a liner-based REPL for terminals where the
// full TUI is unwanted (ssh sessions, minimal terminals, scripting
// around expect). Uses the same coordinator and session store as the
// TUI, so conversations started here show up in `ragchat sessions`.
//
// Slash commands:
//   /help               Show commands
//   /new                Start a fresh conversation
//   /clear              Clear the current conversation
//   /rag                Toggle document retrieval
//   /model [name]       Show or switch the model
//   /models             List available models
//   /sessions           List saved conversations
//   /load <id>          Load a saved conversation
//   /rename <name>      Rename the current conversation
//   /export             Export the current conversation
//   /status             Backend and index status
//   /quit               Exit
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/ragchat-tui/internal/backend"
	"github.com/jeranaias/ragchat-tui/internal/chat"
	"github.com/jeranaias/ragchat-tui/internal/config"
	"github.com/jeranaias/ragchat-tui/internal/export"
	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/store"
)

// historyFileName is the liner history file under the config dir.
const historyFileName = "chat_history"

// chatREPL bundles the pieces one interactive chat needs.
type chatREPL struct {
	cfg    *config.Config
	client *backend.Client
	store  *store.SessionStore
	coord  *chat.Coordinator
	line   *liner.State
	useRAG bool

	// printed tracks how much of the accumulated answer has been
	// written to stdout. Reset before each send.
	printed int
}

// HandleChat runs the interactive chat loop.
func HandleChat(args Args) error {
	if !IsTTY() {
		return &ValidationError{Field: "chat", Reason: "interactive chat needs a terminal; use `ragchat ask` for piped input"}
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	client := newClient(cfg)

	if err := switchModelIfRequested(cfg, client, args.Model); err != nil {
		return err
	}

	sessions := store.NewSessionStore(client)
	repl := &chatREPL{
		cfg:    cfg,
		client: client,
		store:  sessions,
		useRAG: cfg.Chat.UseRAG,
	}

	// Fragments print straight to stdout; completion events only carry
	// the stats line. The REPL is synchronous, so no channel plumbing.
	repl.coord = chat.NewCoordinator(client, sessions, chat.Callbacks{
		OnFragment: func(sessionID, accumulated string) {
			// The callback hands over the full accumulated text; print
			// only the tail not yet written.
			if len(accumulated) > repl.printed {
				fmt.Print(accumulated[repl.printed:])
				repl.printed = len(accumulated)
			}
		},
		OnCompleted: func(sessionID string, message *model.Message, stats *backend.StreamStats) {
			if !args.Quiet && stats != nil {
				fmt.Println()
				fmt.Println(StatsStyle.Render(stats.Format()))
			}
		},
		OnFailed: func(sessionID string, err error) {
			fmt.Println()
			PrintError(err)
		},
		OnCanceled: func(sessionID string, message *model.Message) {
			fmt.Println()
			fmt.Println(DimStyle.Render("(canceled)"))
		},
		OnSaveError: func(sessionID string, err error) {
			fmt.Println(WarningStyle.Render("warning: ") + "auto-save failed: " + err.Error())
		},
	})

	repl.line = liner.NewLiner()
	repl.line.SetCtrlCAborts(true)
	defer repl.close()
	repl.loadHistory()

	repl.printWelcome()

	for {
		input, err := repl.line.Prompt(repl.prompt())
		if err != nil {
			if err == liner.ErrPromptAborted {
				fmt.Println(DimStyle.Render("(ctrl+c again or /quit to exit)"))
				continue
			}
			// io.EOF on ctrl+d: exit cleanly.
			fmt.Println()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		repl.line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			quit, err := repl.handleSlashCommand(input)
			if err != nil {
				PrintError(err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := repl.send(input); err != nil {
			PrintError(err)
		}
	}
}

// prompt renders the REPL prompt with a retrieval marker.
func (r *chatREPL) prompt() string {
	marker := ""
	if r.useRAG {
		marker = "rag "
	}
	return marker + "> "
}

// send runs one generation synchronously, printing fragments as they
// arrive.
func (r *chatREPL) send(text string) error {
	sessionID := r.store.Active().ID
	r.printed = 0

	gen, outcome := r.coord.Send(sessionID, text, r.useRAG)
	switch outcome {
	case chat.SendAccepted:
	case chat.SendRejectedBusy:
		return &CommandError{Command: "chat", Action: "send", Reason: "a generation is already running"}
	default:
		return &CommandError{Command: "chat", Action: "send", Reason: "message rejected"}
	}

	gen.Run(context.Background())
	fmt.Println()
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand executes one slash command. Returns quit=true
// when the REPL should exit.
func (r *chatREPL) handleSlashCommand(input string) (bool, error) {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])
	rest := fields[1:]

	switch cmd {
	case "/quit", "/exit", "/q":
		return true, nil

	case "/help", "/h":
		r.printHelp()
		return false, nil

	case "/new":
		r.store.CreateSession()
		fmt.Println(SuccessStyle.Render("started a new conversation"))
		return false, nil

	case "/clear":
		active := r.store.Active()
		active.ClearMessages()
		ctx, cancel := opContext(r.cfg)
		defer cancel()
		if err := r.client.ClearHistory(ctx, active.ID); err != nil {
			return false, err
		}
		fmt.Println(SuccessStyle.Render("conversation cleared"))
		return false, nil

	case "/rag":
		r.useRAG = !r.useRAG
		if r.useRAG {
			fmt.Println(SuccessStyle.Render("retrieval on"))
		} else {
			fmt.Println(DimStyle.Render("retrieval off"))
		}
		return false, nil

	case "/model":
		return false, r.handleModel(rest)

	case "/models":
		return false, r.printModels()

	case "/sessions":
		return false, r.printSessions()

	case "/load":
		if len(rest) == 0 {
			return false, &ValidationError{Field: "session id", Reason: "usage: /load <id>"}
		}
		return false, r.loadSession(rest[0])

	case "/rename":
		if len(rest) == 0 {
			return false, &ValidationError{Field: "name", Reason: "usage: /rename <new name>"}
		}
		return false, r.renameActive(strings.Join(rest, " "))

	case "/delete":
		id := r.store.Active().ID
		if len(rest) > 0 {
			id = rest[0]
		}
		return false, r.deleteSession(id)

	case "/export":
		return false, r.exportActive()

	case "/status":
		return false, printBackendStatus(r.cfg, r.client)

	default:
		return false, &ValidationError{Field: "command", Value: cmd, Reason: "unknown command, see /help"}
	}
}

func (r *chatREPL) handleModel(rest []string) error {
	ctx, cancel := opContext(r.cfg)
	defer cancel()

	if len(rest) == 0 {
		resp, err := r.client.ListModels(ctx)
		if err != nil {
			return err
		}
		fmt.Println(LabelStyle.Render("model") + ValueStyle.Render(resp.CurrentModel))
		return nil
	}

	name := rest[0]
	resp, err := r.client.SwitchModel(ctx, name)
	if err != nil {
		return err
	}
	r.store.Active().SetModel(resp.CurrentModel)
	fmt.Println(SuccessStyle.Render("switched to " + resp.CurrentModel))
	return nil
}

func (r *chatREPL) printModels() error {
	ctx, cancel := opContext(r.cfg)
	defer cancel()

	resp, err := r.client.ListModels(ctx)
	if err != nil {
		return err
	}
	for _, m := range resp.Models {
		marker := "  "
		if m.Name == resp.CurrentModel {
			marker = SuccessStyle.Render("* ")
		}
		fmt.Println(marker + ValueStyle.Render(m.Name))
	}
	return nil
}

func (r *chatREPL) printSessions() error {
	ctx, cancel := opContext(r.cfg)
	defer cancel()

	summaries, err := r.client.ListConversations(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println(DimStyle.Render("no saved conversations"))
		return nil
	}
	for _, s := range summaries {
		fmt.Printf("%s  %s %s\n",
			DimStyle.Render(s.ID),
			ValueStyle.Render(s.Name),
			DimStyle.Render(fmt.Sprintf("(%d messages)", s.MessageCount)))
	}
	return nil
}

func (r *chatREPL) loadSession(id string) error {
	ctx, cancel := opContext(r.cfg)
	defer cancel()

	session, err := r.store.LoadSession(ctx, id)
	if err != nil {
		return err
	}
	fmt.Println(SuccessStyle.Render("loaded ") + ValueStyle.Render(session.Name))

	// Replay the tail so the user has context.
	for _, msg := range lastMessages(session.Messages, 4) {
		prefix := "you: "
		if msg.Role == model.RoleAssistant {
			prefix = "  ai: "
		}
		fmt.Println(DimStyle.Render(prefix + msg.Preview(70)))
	}
	return nil
}

func (r *chatREPL) renameActive(name string) error {
	ctx, cancel := opContext(r.cfg)
	defer cancel()

	if err := r.store.Rename(ctx, r.store.Active().ID, name); err != nil {
		return err
	}
	fmt.Println(SuccessStyle.Render("renamed to " + name))
	return nil
}

func (r *chatREPL) deleteSession(id string) error {
	ctx, cancel := opContext(r.cfg)
	defer cancel()

	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Println(SuccessStyle.Render("deleted ") + DimStyle.Render(id))
	return nil
}

func (r *chatREPL) exportActive() error {
	active := r.store.Active()
	if active.IsEmpty() {
		return &CommandError{Command: "chat", Action: "export", Reason: "nothing to export yet"}
	}
	path, err := export.ExportSession(active.Clone(), r.cfg.Export.Format, &export.Options{
		OutputDir:         r.cfg.Export.Dir,
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	})
	if err != nil {
		return err
	}
	fmt.Println(SuccessStyle.Render("exported to ") + ValueStyle.Render(path))
	return nil
}

// lastMessages returns up to n trailing messages.
func lastMessages(msgs []*model.Message, n int) []*model.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

// =============================================================================
// HISTORY AND OUTPUT
// =============================================================================

func (r *chatREPL) historyPath() string {
	return filepath.Join(config.ConfigDir(), historyFileName)
}

func (r *chatREPL) loadHistory() {
	f, err := os.Open(r.historyPath())
	if err != nil {
		return
	}
	defer f.Close()
	r.line.ReadHistory(f)
}

func (r *chatREPL) close() {
	if f, err := os.Create(r.historyPath()); err == nil {
		r.line.WriteHistory(f)
		f.Close()
	}
	r.line.Close()
}

func (r *chatREPL) printWelcome() {
	fmt.Println(TitleStyle.Render("ragchat"))
	fmt.Println(DimStyle.Render("type a message, /help for commands, /quit to exit"))
	fmt.Println()
}

func (r *chatREPL) printHelp() {
	rows := []struct{ cmd, desc string }{
		{"/new", "start a fresh conversation"},
		{"/clear", "clear the current conversation"},
		{"/rag", "toggle document retrieval"},
		{"/model [name]", "show or switch the model"},
		{"/models", "list available models"},
		{"/sessions", "list saved conversations"},
		{"/load <id>", "load a saved conversation"},
		{"/rename <name>", "rename the current conversation"},
		{"/delete [id]", "delete a conversation (default: current)"},
		{"/export", "export the current conversation"},
		{"/status", "backend and index status"},
		{"/quit", "exit"},
	}
	for _, row := range rows {
		fmt.Println("  " + LabelStyle.Render(row.cmd) + DimStyle.Render(row.desc))
	}
}
