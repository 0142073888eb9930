// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
	"github.com/jeranaias/ragchat-tui/internal/util"
)

// =============================================================================
// STATUS BAR
// =============================================================================

// StatusBar renders the single-line footer of the chat view: session
// name, active model, retrieval badge, and a transient notice slot.
type StatusBar struct {
	theme *styles.Theme
	width int

	sessionName string
	modelName   string

	ragEnabled bool
	ragLoaded  bool
	chunkCount int

	generating bool
	elapsed    string

	notice      string
	noticeStyle lipgloss.Style
}

// NewStatusBar creates a status bar styled by the given theme.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		theme:       theme,
		noticeStyle: theme.InfoStyle,
	}
}

// SetWidth updates the bar's render width.
func (s *StatusBar) SetWidth(width int) {
	s.width = width
}

// SetSession updates the displayed session name.
func (s *StatusBar) SetSession(name string) {
	s.sessionName = name
}

// SetModel updates the displayed model name.
func (s *StatusBar) SetModel(name string) {
	s.modelName = name
}

// SetRAG updates the retrieval badge: whether the user has retrieval
// switched on and what the backend's index actually holds.
func (s *StatusBar) SetRAG(enabled, loaded bool, chunkCount int) {
	s.ragEnabled = enabled
	s.ragLoaded = loaded
	s.chunkCount = chunkCount
}

// SetGenerating toggles the streaming indicator. The elapsed string is
// rendered next to it while a generation runs.
func (s *StatusBar) SetGenerating(generating bool, elapsed string) {
	s.generating = generating
	s.elapsed = elapsed
}

// SetNotice shows a transient message in the bar. An empty string
// clears it.
func (s *StatusBar) SetNotice(text string, isError bool) {
	s.notice = text
	if isError {
		s.noticeStyle = s.theme.ErrorStyle
	} else {
		s.noticeStyle = s.theme.InfoStyle
	}
}

// ClearNotice removes the transient message.
func (s *StatusBar) ClearNotice() {
	s.notice = ""
}

// View renders the status bar.
func (s *StatusBar) View() string {
	if s.width <= 0 {
		return ""
	}

	left := s.leftSegment()
	right := s.rightSegment()

	gap := s.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		// Too narrow for both sides; the session/model info wins.
		return s.theme.StatusBar.Width(s.width).Render(left)
	}

	return s.theme.StatusBar.Width(s.width).Render(left + strings.Repeat(" ", gap) + right)
}

// leftSegment shows the session and any transient notice.
func (s *StatusBar) leftSegment() string {
	name := s.sessionName
	if name == "" {
		name = "New Chat"
	}
	maxName := s.width / 3
	if maxName < 12 {
		maxName = 12
	}
	parts := []string{util.TruncateWidth(name, maxName)}

	if s.notice != "" {
		parts = append(parts, s.noticeStyle.Render(s.notice))
	}
	return strings.Join(parts, "  ")
}

// rightSegment shows generation state, the model, and the RAG badge.
func (s *StatusBar) rightSegment() string {
	var parts []string

	if s.generating {
		label := "generating"
		if s.elapsed != "" {
			label += " " + s.elapsed
		}
		parts = append(parts, s.theme.ThinkingText.Render(label))
	}

	if s.modelName != "" {
		parts = append(parts, s.theme.ModelName.Render(s.modelName))
	}

	parts = append(parts, s.ragBadge())
	return strings.Join(parts, "  ")
}

// ragBadge renders the retrieval state. The badge distinguishes
// "on and backed by an index" from "on but nothing loaded": sending
// with an empty index silently behaves like plain chat, which is
// worth a visible warning.
func (s *StatusBar) ragBadge() string {
	switch {
	case s.ragEnabled && s.ragLoaded:
		return s.theme.RAGActive.Render("RAG " + strconv.Itoa(s.chunkCount))
	case s.ragEnabled:
		return s.theme.WarningStyle.Render("RAG no index")
	default:
		return s.theme.RAGInactive.Render("RAG off")
	}
}
