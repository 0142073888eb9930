// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// This file defines the Bubble Tea message types used by the chat
// interface. Asynchronous work (generations, backend calls, the config
// watcher) produces these; Update consumes them.
package chat

import (
	"time"

	"github.com/jeranaias/ragchat-tui/internal/backend"
	"github.com/jeranaias/ragchat-tui/internal/chat"
	"github.com/jeranaias/ragchat-tui/internal/config"
	"github.com/jeranaias/ragchat-tui/internal/model"
)

// =============================================================================
// GENERATION MESSAGES
// =============================================================================

// generationFinishedMsg reports that a generation settled, on any
// outcome. The session id is the ORIGINATING session, which may no
// longer be active.
type generationFinishedMsg struct {
	SessionID string
	Outcome   chat.RunOutcome
	Message   *model.Message
	Stats     *backend.StreamStats
	Err       error
}

// saveNoticeMsg reports a failed background auto-save. Non-blocking:
// it surfaces as a status bar notice, never a modal.
type saveNoticeMsg struct {
	SessionID string
	Err       error
}

// streamTickMsg drives coalesced repainting while fragments arrive.
type streamTickMsg time.Time

// =============================================================================
// BACKEND STATUS MESSAGES
// =============================================================================

// statusTickMsg schedules the next background status poll.
type statusTickMsg time.Time

// ragStatusMsg delivers the retrieval index status.
type ragStatusMsg struct {
	Status *backend.RAGStatus
	Err    error
}

// modelsMsg delivers the model listing.
type modelsMsg struct {
	Resp *backend.ModelsResponse
	Err  error
}

// modelSwitchedMsg confirms (or refuses) a model switch.
type modelSwitchedMsg struct {
	Resp *backend.SwitchModelResponse
	Err  error
}

// =============================================================================
// SESSION MESSAGES
// =============================================================================

// sessionsListedMsg delivers fresh conversation summaries.
type sessionsListedMsg struct {
	Summaries []backend.ConversationSummary
	Err       error
}

// sessionLoadedMsg reports a LoadSession outcome.
type sessionLoadedMsg struct {
	ID      string
	Session *model.Session
	Err     error
}

// sessionDeletedMsg reports a Delete outcome.
type sessionDeletedMsg struct {
	ID  string
	Err error
}

// sessionRenamedMsg reports a Rename outcome.
type sessionRenamedMsg struct {
	ID   string
	Name string
	Err  error
}

// =============================================================================
// UTILITY MESSAGES
// =============================================================================

// exportDoneMsg reports an export attempt.
type exportDoneMsg struct {
	Path string
	Err  error
}

// clipboardMsg reports a copy attempt. What names what was copied for
// the confirmation notice ("answer", "code block").
type clipboardMsg struct {
	What string
	Err  error
}

// configReloadedMsg arrives when the config watcher saw the file
// change and the global config was swapped.
type configReloadedMsg struct {
	Cfg *config.Config
}

// noticeExpiredMsg clears a transient status notice. The sequence
// number guards against clearing a newer notice than the one that
// scheduled the expiry.
type noticeExpiredMsg struct {
	Seq int
}
