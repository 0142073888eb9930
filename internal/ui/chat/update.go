// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ragchat-tui/internal/chat"
	"github.com/jeranaias/ragchat-tui/internal/ui/components"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update is the Bubble Tea message dispatcher.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case streamTickMsg:
		return m.handleStreamTick()

	case generationFinishedMsg:
		return m.handleGenerationFinished(msg)

	case saveNoticeMsg:
		cmd := m.setNotice("auto-save failed: "+msg.Err.Error(), true)
		return m, tea.Batch(cmd, m.waitEvent())

	case statusTickMsg:
		return m, tea.Batch(
			m.fetchStatus(),
			m.fetchModels(),
			statusTickCmd(m.cfg.Backend.StatusPollSecs),
		)

	case ragStatusMsg:
		if msg.Err == nil && msg.Status != nil {
			m.ragLoaded = msg.Status.Loaded
			m.chunkCount = msg.Status.ChunkCount
			m.syncStatusBar()
		}
		return m, nil

	case modelsMsg:
		return m.handleModels(msg)

	case modelSwitchedMsg:
		return m.handleModelSwitched(msg)

	case sessionsListedMsg:
		return m.handleSessionsListed(msg)

	case sessionLoadedMsg:
		return m.handleSessionLoaded(msg)

	case sessionDeletedMsg:
		return m.handleSessionDeleted(msg)

	case sessionRenamedMsg:
		return m.handleSessionRenamed(msg)

	case exportDoneMsg:
		if msg.Err != nil {
			return m, m.setNotice("export failed: "+msg.Err.Error(), true)
		}
		return m, m.setNotice("exported to "+msg.Path, false)

	case clipboardMsg:
		return m.handleClipboard(msg)

	case configReloadedMsg:
		return m.handleConfigReloaded(msg)

	case noticeExpiredMsg:
		if msg.Seq == m.noticeSeq {
			m.statusBar.ClearNotice()
		}
		return m, nil
	}

	// Everything else (cursor blink, spinner frames) flows to the
	// focused components.
	return m, m.updateComponents(msg)
}

// updateComponents forwards animation and editing messages.
func (m *Model) updateComponents(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd

	if cmd := m.spinner.Update(msg); cmd != nil {
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	m.viewport, cmd = m.viewport.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	return tea.Batch(cmds...)
}

// =============================================================================
// RESIZE
// =============================================================================

func (m *Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	wrap := m.cfg.UI.WordWrap
	if wrap <= 0 || wrap > msg.Width-4 {
		wrap = msg.Width - 4
	}
	m.renderer.Resize(wrap)

	inputHeight := m.input.Height() + 2
	statusHeight := 1
	viewportHeight := msg.Height - inputHeight - statusHeight - 1
	if viewportHeight < 3 {
		viewportHeight = 3
	}

	if !m.ready {
		m.viewport = viewport.New(msg.Width, viewportHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
	}
	m.input.SetWidth(msg.Width - 2)
	m.statusBar.SetWidth(msg.Width)
	m.sessionList.SetSize(msg.Width, msg.Height)
	m.modelPicker.SetSize(msg.Width)

	m.refreshTranscript(true)
	return m, nil
}

// =============================================================================
// KEYS
// =============================================================================

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Quit always works, even under an overlay or mid-stream.
	if key.Matches(msg, m.keyMap.Quit) {
		m.coord.Cancel()
		return m, tea.Quit
	}

	switch m.overlay {
	case OverlaySessions:
		return m.handleSessionsKey(msg)
	case OverlayModels:
		return m.handleModelsKey(msg)
	case OverlayHelp:
		// Any key closes help.
		m.overlay = OverlayNone
		return m, nil
	case OverlayModal:
		m.overlay = OverlayNone
		m.modalErr = nil
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keyMap.Submit):
		return m.submitInput()

	case key.Matches(msg, m.keyMap.Cancel):
		m.coord.Cancel()
		return m, nil

	case key.Matches(msg, m.keyMap.Regenerate):
		return m.regenerate()

	case key.Matches(msg, m.keyMap.NewSession):
		return m.newSession()

	case key.Matches(msg, m.keyMap.ToggleSessions):
		m.overlay = OverlaySessions
		m.sessionList.Reset()
		m.input.Blur()
		return m, m.listSessions()

	case key.Matches(msg, m.keyMap.ToggleRAG):
		m.useRAG = !m.useRAG
		m.syncStatusBar()
		return m, nil

	case key.Matches(msg, m.keyMap.Models):
		m.overlay = OverlayModels
		m.input.Blur()
		return m, m.fetchModels()

	case key.Matches(msg, m.keyMap.Export):
		return m, m.exportActiveSession()

	case key.Matches(msg, m.keyMap.CopyAnswer):
		return m, m.copyLastAnswer()

	case key.Matches(msg, m.keyMap.CopyCode):
		return m, m.copyLastCodeBlock()

	case key.Matches(msg, m.keyMap.Help):
		m.overlay = OverlayHelp
		return m, nil

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	return m, m.updateComponents(msg)
}

// handleSessionsKey routes keys while the session overlay is open.
func (m *Model) handleSessionsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.sessionList.Mode() == components.SessionListRenaming {
			m.sessionList.EndRename()
			return m, nil
		}
		m.closeOverlay()
		return m, nil

	case "enter":
		if m.sessionList.Mode() == components.SessionListRenaming {
			selected, ok := m.sessionList.Selected()
			name := strings.TrimSpace(m.sessionList.InputValue())
			m.sessionList.EndRename()
			if !ok || name == "" {
				return m, nil
			}
			return m, m.renameSession(selected.ID, name)
		}
		selected, ok := m.sessionList.Selected()
		if !ok {
			return m, nil
		}
		return m, m.loadSession(selected.ID)

	case "ctrl+n":
		m.closeOverlay()
		return m.newSession()

	case "ctrl+r":
		m.sessionList.BeginRename()
		return m, nil

	case "ctrl+x":
		selected, ok := m.sessionList.Selected()
		if !ok {
			return m, nil
		}
		return m, m.deleteSession(selected.ID)
	}

	return m, m.sessionList.Update(msg)
}

// handleModelsKey routes keys while the model picker is open.
func (m *Model) handleModelsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeOverlay()
		return m, nil
	case "enter":
		selected, ok := m.modelPicker.Selected()
		m.closeOverlay()
		if !ok || selected.Name == m.modelName {
			return m, nil
		}
		return m, m.switchModel(selected.Name)
	}
	m.modelPicker.Update(msg)
	return m, nil
}

// closeOverlay returns focus to the message input.
func (m *Model) closeOverlay() {
	m.overlay = OverlayNone
	m.input.Focus()
}

// =============================================================================
// INPUT SUBMISSION
// =============================================================================

// submitInput runs the send pipeline: validate, stage through the
// coordinator, then start the stream and the repaint tick. Rejections
// are silent by design; an in-flight generation or empty input simply
// leaves the view as it is.
func (m *Model) submitInput() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return m, nil
	}

	sessionID := m.activeSessionID()
	gen, outcome := m.coord.Send(sessionID, text, m.useRAG)
	switch outcome {
	case chat.SendAccepted:
		// Staged: user message and placeholder are in the transcript.
	case chat.SendRejectedBusy:
		return m, nil
	default:
		return m, nil
	}

	m.input.Reset()
	delete(m.genErr, sessionID)
	return m, m.startStreaming(gen)
}

// regenerate replaces the last assistant answer in the active session.
func (m *Model) regenerate() (tea.Model, tea.Cmd) {
	sessionID := m.activeSessionID()
	gen, outcome := m.coord.Regenerate(sessionID)
	if outcome != chat.SendAccepted {
		return m, nil
	}
	delete(m.genErr, sessionID)
	return m, m.startStreaming(gen)
}

// startStreaming flips the view into streaming state and launches the
// generation goroutine plus the repaint tick.
func (m *Model) startStreaming(gen *chat.Generation) tea.Cmd {
	m.state = StateStreaming
	m.streamSessionID = gen.SessionID()
	m.streamText = ""
	m.coalescer.Reset()
	m.refreshTranscript(true)
	m.syncStatusBar()

	return tea.Batch(
		m.spinner.Start(),
		m.runGeneration(gen),
		streamTickCmd(m.coalescer.interval),
	)
}

// =============================================================================
// STREAMING
// =============================================================================

// handleStreamTick applies any coalesced fragment text and re-arms the
// tick while the stream is open.
func (m *Model) handleStreamTick() (tea.Model, tea.Cmd) {
	if m.state != StateStreaming {
		return m, nil
	}

	if sessionID, text, ok := m.coalescer.Flush(); ok {
		m.streamText = text
		// Only repaint when the streaming session is on screen.
		if sessionID == m.activeSessionID() {
			m.refreshTranscript(true)
		}
	}

	return m, streamTickCmd(m.coalescer.interval)
}

// handleGenerationFinished settles the view after a generation ends on
// any path. The lock is already released by the time this arrives.
func (m *Model) handleGenerationFinished(msg generationFinishedMsg) (tea.Model, tea.Cmd) {
	m.state = StateReady
	m.spinner.Stop()

	// Apply any text the tick had not painted yet.
	if _, text, ok := m.coalescer.ForceFlush(); ok {
		m.streamText = text
	}
	m.streamText = ""
	m.streamSessionID = ""

	var noticeCmd tea.Cmd
	switch msg.Outcome {
	case chat.RunCompleted:
		if msg.Stats != nil {
			noticeCmd = m.setNotice(msg.Stats.Format(), false)
		}
	case chat.RunFailed:
		m.genErr[msg.SessionID] = msg.Err
	case chat.RunCanceled:
		if msg.Message != nil {
			noticeCmd = m.setNotice("generation canceled, partial answer kept", false)
		} else {
			noticeCmd = m.setNotice("generation canceled", false)
		}
	}

	m.refreshTranscript(msg.SessionID == m.activeSessionID())
	m.syncStatusBar()

	return m, tea.Batch(noticeCmd, m.waitEvent(), m.listSessions())
}

// =============================================================================
// BACKEND STATUS
// =============================================================================

func (m *Model) handleModels(msg modelsMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil || msg.Resp == nil {
		return m, nil
	}
	m.modelName = msg.Resp.CurrentModel
	m.modelPicker.SetModels(msg.Resp.Models, msg.Resp.CurrentModel)
	m.syncStatusBar()
	return m, nil
}

func (m *Model) handleModelSwitched(msg modelSwitchedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		return m, m.setNotice("model switch failed: "+msg.Err.Error(), true)
	}
	if msg.Resp != nil {
		m.modelName = msg.Resp.CurrentModel
		m.store.Active().SetModel(msg.Resp.CurrentModel)
		m.syncStatusBar()
	}
	return m, tea.Batch(
		m.setNotice("switched to "+m.modelName, false),
		m.fetchModels(),
	)
}

// =============================================================================
// SESSIONS
// =============================================================================

func (m *Model) handleSessionsListed(msg sessionsListedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		if m.overlay == OverlaySessions {
			return m, m.setNotice("could not list sessions: "+msg.Err.Error(), true)
		}
		return m, nil
	}
	m.sessionList.SetEntries(msg.Summaries)
	return m, nil
}

func (m *Model) handleSessionLoaded(msg sessionLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		// Load failures block: the user explicitly asked for this
		// session and needs to know it did not appear.
		m.overlay = OverlayModal
		m.modalTitle = "Could not load session"
		m.modalErr = msg.Err
		return m, nil
	}
	m.closeOverlay()
	m.refreshTranscript(true)
	m.viewport.GotoBottom()
	m.syncStatusBar()
	return m, nil
}

func (m *Model) handleSessionDeleted(msg sessionDeletedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.overlay = OverlayModal
		m.modalTitle = "Could not delete session"
		m.modalErr = msg.Err
		return m, nil
	}
	// Deleting the active session created a fresh one in the store;
	// repaint to pick it up either way.
	m.refreshTranscript(true)
	m.syncStatusBar()
	return m, m.listSessions()
}

func (m *Model) handleSessionRenamed(msg sessionRenamedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.overlay = OverlayModal
		m.modalTitle = "Could not rename session"
		m.modalErr = msg.Err
		return m, nil
	}
	m.syncStatusBar()
	return m, m.listSessions()
}

// newSession creates a fresh session, makes it active, and clears the
// backend's in-memory context for the old one.
func (m *Model) newSession() (tea.Model, tea.Cmd) {
	previous := m.activeSessionID()
	m.store.CreateSession()
	m.refreshTranscript(true)
	m.syncStatusBar()
	return m, m.clearServerContext(previous)
}

// =============================================================================
// NOTICES AND CONFIG
// =============================================================================

func (m *Model) handleClipboard(msg clipboardMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Err == nil:
		return m, m.setNotice("copied "+msg.What, false)
	case isNothingToCopy(msg.Err):
		return m, m.setNotice("no "+msg.What+" to copy", false)
	default:
		return m, m.setNotice("copy failed: "+msg.Err.Error(), true)
	}
}

func (m *Model) handleConfigReloaded(msg configReloadedMsg) (tea.Model, tea.Cmd) {
	m.cfg = msg.Cfg

	wrap := msg.Cfg.UI.WordWrap
	if wrap <= 0 || wrap > m.width-4 {
		wrap = m.width - 4
	}
	m.renderer.Resize(wrap)
	m.refreshTranscript(true)

	return m, tea.Batch(
		m.setNotice("configuration reloaded", false),
		m.waitEvent(),
	)
}

// syncStatusBar pushes current state into the status bar.
func (m *Model) syncStatusBar() {
	active := m.store.Active()
	m.statusBar.SetSession(active.DisplayName())
	m.statusBar.SetModel(m.modelName)
	m.statusBar.SetRAG(m.useRAG, m.ragLoaded, m.chunkCount)

	generating := m.state == StateStreaming
	elapsed := ""
	if generating {
		elapsed = m.spinner.Elapsed().String()
	}
	m.statusBar.SetGenerating(generating, elapsed)
}
