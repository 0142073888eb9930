// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/render"
	"github.com/jeranaias/ragchat-tui/internal/ui/components"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the full chat interface.
func (m *Model) View() string {
	if !m.ready {
		return "Starting ragchat..."
	}

	main := lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		m.renderInput(),
		m.statusBar.View(),
	)

	switch m.overlay {
	case OverlaySessions:
		return m.composeOverlay(m.sessionList.View())
	case OverlayModels:
		return m.composeOverlay(m.modelPicker.View())
	case OverlayHelp:
		return m.composeOverlay(m.renderHelp())
	case OverlayModal:
		return m.composeOverlay(
			components.RenderModalNotice(m.theme, m.width, m.modalTitle, m.modalErr))
	}

	return main
}

// composeOverlay centers an overlay box in the window, replacing the
// chat view while it is open.
func (m *Model) composeOverlay(overlay string) string {
	return lipgloss.Place(m.width, m.height,
		lipgloss.Center, lipgloss.Center, overlay)
}

// renderInput draws the message input with a hint line underneath.
func (m *Model) renderInput() string {
	hint := m.renderShortHelp()
	return lipgloss.JoinVertical(lipgloss.Left, m.input.View(), hint)
}

// renderShortHelp draws the one-line shortcut reminder.
func (m *Model) renderShortHelp() string {
	var parts []string
	for _, binding := range m.keyMap.ShortHelp() {
		h := binding.Help()
		parts = append(parts,
			m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
	}
	line := strings.Join(parts, m.theme.ShortcutDesc.Render(" · "))
	if lipgloss.Width(line) > m.width {
		line = m.theme.ShortcutDesc.Render("f1 help")
	}
	return line
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// refreshTranscript re-renders the active session into the viewport.
// Pass scroll=true to pin the view to the newest message.
func (m *Model) refreshTranscript(scroll bool) {
	if !m.ready {
		return
	}

	active := m.store.Active()
	streaming := m.state == StateStreaming && m.streamSessionID == active.ID

	var blocks []string
	msgs := active.MessagesSnapshot()
	for i, msg := range msgs {
		last := i == len(msgs)-1
		if streaming && last && msg.Role == model.RoleAssistant {
			blocks = append(blocks, m.renderStreamingBlock())
			continue
		}
		blocks = append(blocks, m.renderMessage(msg))
	}

	if err, ok := m.genErr[active.ID]; ok {
		blocks = append(blocks, components.RenderErrorNotice(m.theme, m.viewport.Width, err))
	}

	if len(blocks) == 0 {
		blocks = append(blocks, m.renderWelcome())
	}

	separator := "\n\n"
	if m.cfg.UI.CompactMode {
		separator = "\n"
	}
	m.viewport.SetContent(strings.Join(blocks, separator))

	if scroll {
		m.viewport.GotoBottom()
	}
}

// renderMessage draws one settled transcript entry.
func (m *Model) renderMessage(msg *model.Message) string {
	switch msg.Role {
	case model.RoleUser:
		body := render.RenderUserText(msg.DisplayContent())
		block := m.theme.UserBubble.Render(body)
		return m.withMeta(msg, lipgloss.PlaceHorizontal(m.viewport.Width, lipgloss.Right, block))

	case model.RoleAssistant:
		body := m.renderer.Render(msg.DisplayContent())
		block := m.theme.AssistantBubble.Render(strings.TrimRight(body, "\n"))
		if msg.Retrieval {
			block = lipgloss.JoinVertical(lipgloss.Left,
				m.theme.RetrievalTag.Render("via documents"), block)
		}
		return m.withMeta(msg, block)
	}

	return render.RenderUserText(msg.DisplayContent())
}

// withMeta prefixes a rendered block with its timestamp when enabled.
func (m *Model) withMeta(msg *model.Message, block string) string {
	if !m.cfg.UI.ShowTimestamps {
		return block
	}
	meta := m.theme.MessageMeta.Render(msg.Timestamp.Format("15:04"))
	return lipgloss.JoinVertical(lipgloss.Left, meta, block)
}

// renderStreamingBlock draws the in-flight answer: a spinner until the
// first fragment lands, then live-rendered markdown.
func (m *Model) renderStreamingBlock() string {
	if m.streamText == "" {
		return m.spinner.View()
	}
	body := m.renderer.Render(m.streamText)
	return m.theme.AssistantBubble.Render(strings.TrimRight(body, "\n"))
}

// renderWelcome fills an empty transcript.
func (m *Model) renderWelcome() string {
	lines := []string{
		m.theme.HeaderTitle.Render("ragchat"),
		"",
		m.theme.ThinkingText.Render("Ask anything. Answers stream in from the local backend."),
		m.theme.ThinkingText.Render("Press f1 for shortcuts."),
	}
	box := lipgloss.JoinVertical(lipgloss.Center, lines...)
	return lipgloss.Place(m.viewport.Width, m.viewport.Height,
		lipgloss.Center, lipgloss.Center, box)
}

// =============================================================================
// HELP OVERLAY
// =============================================================================

// renderHelp draws the full shortcut listing.
func (m *Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(m.theme.OverlayTitle.Render("Keyboard shortcuts"))
	b.WriteString("\n\n")

	for _, column := range m.keyMap.FullHelp() {
		for _, binding := range column {
			h := binding.Help()
			b.WriteString(m.theme.ShortcutKey.Render(padRight(h.Key, 16)))
			b.WriteString(m.theme.ShortcutDesc.Render(h.Desc))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(m.theme.ShortcutDesc.Render("press any key to close"))
	return m.theme.OverlayBox.Render(b.String())
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s + " "
	}
	return s + strings.Repeat(" ", width-len(s))
}
