// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ragchat-tui/internal/chat"
	"github.com/jeranaias/ragchat-tui/internal/export"
	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/render"
)

// opTimeout bounds the request/response calls issued from the UI.
// Streaming is exempt; it runs under its own cancelable context.
const opTimeout = 15 * time.Second

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

// =============================================================================
// GENERATION COMMANDS
// =============================================================================

// runGeneration streams an accepted generation on its own goroutine.
// Results come back through the events channel, not a returned
// message, so the command itself finishes silently.
func (m *Model) runGeneration(gen *chat.Generation) tea.Cmd {
	return func() tea.Msg {
		gen.Run(context.Background())
		return nil
	}
}

// =============================================================================
// BACKEND STATUS COMMANDS
// =============================================================================

// statusTickCmd schedules the next background status poll.
func statusTickCmd(pollSecs int) tea.Cmd {
	if pollSecs <= 0 {
		pollSecs = 5
	}
	return tea.Tick(time.Duration(pollSecs)*time.Second, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}

// fetchStatus fetches the retrieval index status. The client rate
// limits these, so poll ticks inside the window cost nothing.
func (m *Model) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := opContext()
		defer cancel()
		status, err := m.client.GetRAGStatus(ctx)
		return ragStatusMsg{Status: status, Err: err}
	}
}

// fetchModels fetches the model listing.
func (m *Model) fetchModels() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := opContext()
		defer cancel()
		resp, err := m.client.ListModels(ctx)
		return modelsMsg{Resp: resp, Err: err}
	}
}

// switchModel asks the backend to switch the active model.
func (m *Model) switchModel(name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := opContext()
		defer cancel()
		resp, err := m.client.SwitchModel(ctx, name)
		return modelSwitchedMsg{Resp: resp, Err: err}
	}
}

// =============================================================================
// SESSION COMMANDS
// =============================================================================

// listSessions refreshes the conversation summaries.
func (m *Model) listSessions() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := opContext()
		defer cancel()
		summaries, err := m.store.List(ctx)
		return sessionsListedMsg{Summaries: summaries, Err: err}
	}
}

// loadSession fetches a saved conversation and makes it active.
func (m *Model) loadSession(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := opContext()
		defer cancel()
		session, err := m.store.LoadSession(ctx, id)
		return sessionLoadedMsg{ID: id, Session: session, Err: err}
	}
}

// deleteSession removes a saved conversation.
func (m *Model) deleteSession(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := opContext()
		defer cancel()
		err := m.store.Delete(ctx, id)
		return sessionDeletedMsg{ID: id, Err: err}
	}
}

// renameSession renames a saved conversation.
func (m *Model) renameSession(id, name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := opContext()
		defer cancel()
		err := m.store.Rename(ctx, id, name)
		return sessionRenamedMsg{ID: id, Name: name, Err: err}
	}
}

// clearServerContext asks the backend to forget its in-memory context
// for a session. Fire-and-forget: a failure costs nothing locally.
func (m *Model) clearServerContext(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := opContext()
		defer cancel()
		m.client.ClearHistory(ctx, id)
		return nil
	}
}

// =============================================================================
// EXPORT AND CLIPBOARD COMMANDS
// =============================================================================

// exportActiveSession writes the active session to the configured
// export directory in the configured format.
func (m *Model) exportActiveSession() tea.Cmd {
	session := m.store.Active().Clone()
	format := m.cfg.Export.Format
	opts := &export.Options{
		OutputDir:         m.cfg.Export.Dir,
		IncludeMetadata:   true,
		IncludeTimestamps: m.cfg.UI.ShowTimestamps,
	}
	return func() tea.Msg {
		path, err := export.ExportSession(session, format, opts)
		return exportDoneMsg{Path: path, Err: err}
	}
}

// copyLastAnswer puts the last finalized assistant message's raw text
// on the clipboard.
func (m *Model) copyLastAnswer() tea.Cmd {
	text := m.lastAnswerText()
	return func() tea.Msg {
		if text == "" {
			return clipboardMsg{What: "answer", Err: errNothingToCopy}
		}
		return clipboardMsg{What: "answer", Err: clipboard.WriteAll(text)}
	}
}

// copyLastCodeBlock puts the verbatim text of the last code block in
// the last assistant answer on the clipboard. The text comes from the
// parse tree, never from the highlighted rendering.
func (m *Model) copyLastCodeBlock() tea.Cmd {
	blocks := render.Parse(m.lastAnswerText()).CodeSegments()
	return func() tea.Msg {
		if len(blocks) == 0 {
			return clipboardMsg{What: "code block", Err: errNothingToCopy}
		}
		code := blocks[len(blocks)-1].Code
		return clipboardMsg{What: "code block", Err: clipboard.WriteAll(code)}
	}
}

// lastAnswerText returns the content of the most recent finalized
// assistant message in the active session.
func (m *Model) lastAnswerText() string {
	msgs := m.store.Active().MessagesSnapshot()
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		if msg.Role == model.RoleAssistant && !msg.Streaming() {
			return msg.Content
		}
	}
	return ""
}

// errNothingToCopy is reported when a copy chord finds no target.
var errNothingToCopy = &copyError{"nothing to copy"}

type copyError struct{ msg string }

func (e *copyError) Error() string { return e.msg }

// isNothingToCopy distinguishes the empty-target case from a real
// clipboard failure for notice wording.
func isNothingToCopy(err error) bool {
	_, ok := err.(*copyError)
	return ok
}
