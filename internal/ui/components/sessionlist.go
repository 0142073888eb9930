// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ragchat-tui/internal/backend"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
	"github.com/jeranaias/ragchat-tui/internal/util"
)

// =============================================================================
// SESSION LIST OVERLAY
// =============================================================================

// SessionListMode distinguishes what the overlay's text input edits.
type SessionListMode int

const (
	// SessionListFiltering means the input narrows the listing.
	SessionListFiltering SessionListMode = iota

	// SessionListRenaming means the input holds a new name for the
	// selected session.
	SessionListRenaming
)

// SessionList is the session picker overlay: a filterable listing of
// saved conversations with a selection cursor. The chat view owns the
// backend calls; this component only tracks what is shown and which
// entry the cursor is on.
type SessionList struct {
	theme *styles.Theme

	input   textinput.Model
	mode    SessionListMode
	entries []backend.ConversationSummary
	visible []backend.ConversationSummary
	cursor  int

	width  int
	height int

	// filter is applied by the owner, which has access to the store's
	// folding matcher. The component just remembers the query string.
	applyFilter func(query string) []backend.ConversationSummary
}

// NewSessionList creates a session list overlay. applyFilter maps a
// query string to the summaries to display; it is called on every
// keystroke in filter mode.
func NewSessionList(theme *styles.Theme, applyFilter func(string) []backend.ConversationSummary) *SessionList {
	input := textinput.New()
	input.Prompt = "/ "
	input.Placeholder = "filter sessions"
	input.CharLimit = 120
	input.Focus()

	return &SessionList{
		theme:       theme,
		input:       input,
		applyFilter: applyFilter,
	}
}

// SetSize updates the overlay dimensions.
func (l *SessionList) SetSize(width, height int) {
	l.width = width
	l.height = height
	l.input.Width = width - 8
}

// SetEntries replaces the listing and re-applies the current filter.
func (l *SessionList) SetEntries(entries []backend.ConversationSummary) {
	l.entries = entries
	l.refilter()
}

// Selected returns the summary under the cursor, if any.
func (l *SessionList) Selected() (backend.ConversationSummary, bool) {
	if l.cursor < 0 || l.cursor >= len(l.visible) {
		return backend.ConversationSummary{}, false
	}
	return l.visible[l.cursor], true
}

// Mode reports whether the input is filtering or renaming.
func (l *SessionList) Mode() SessionListMode {
	return l.mode
}

// InputValue returns the current text in the overlay's input.
func (l *SessionList) InputValue() string {
	return l.input.Value()
}

// BeginRename switches the input into rename mode, pre-filled with the
// selected session's current name. Returns false when nothing is
// selected.
func (l *SessionList) BeginRename() bool {
	selected, ok := l.Selected()
	if !ok {
		return false
	}
	l.mode = SessionListRenaming
	l.input.Prompt = "rename: "
	l.input.SetValue(selected.Name)
	l.input.CursorEnd()
	return true
}

// EndRename returns the input to filter mode, discarding the rename
// text.
func (l *SessionList) EndRename() {
	l.mode = SessionListFiltering
	l.input.Prompt = "/ "
	l.input.SetValue("")
	l.refilter()
}

// Reset clears the filter and cursor, keeping the entries.
func (l *SessionList) Reset() {
	l.mode = SessionListFiltering
	l.input.Prompt = "/ "
	l.input.SetValue("")
	l.cursor = 0
	l.refilter()
}

// Update handles cursor movement and feeds everything else to the
// text input. Enter, escape, and the management chords are handled by
// the owner before this is called.
func (l *SessionList) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "up":
			if l.cursor > 0 {
				l.cursor--
			}
			return nil
		case "down":
			if l.cursor < len(l.visible)-1 {
				l.cursor++
			}
			return nil
		}
	}

	var cmd tea.Cmd
	l.input, cmd = l.input.Update(msg)
	if l.mode == SessionListFiltering {
		l.refilter()
	}
	return cmd
}

// refilter recomputes the visible entries and clamps the cursor.
func (l *SessionList) refilter() {
	if l.applyFilter != nil {
		l.visible = l.applyFilter(l.input.Value())
	} else {
		l.visible = l.entries
	}
	if l.cursor >= len(l.visible) {
		l.cursor = len(l.visible) - 1
	}
	if l.cursor < 0 {
		l.cursor = 0
	}
}

// View renders the overlay box.
func (l *SessionList) View() string {
	var b strings.Builder

	b.WriteString(l.theme.OverlayTitle.Render("Sessions"))
	b.WriteString("\n")
	b.WriteString(l.input.View())
	b.WriteString("\n\n")

	if len(l.visible) == 0 {
		b.WriteString(l.theme.SessionMeta.Render("no saved sessions"))
	} else {
		maxRows := l.height - 10
		if maxRows < 3 {
			maxRows = 3
		}
		start := 0
		if l.cursor >= maxRows {
			start = l.cursor - maxRows + 1
		}
		end := start + maxRows
		if end > len(l.visible) {
			end = len(l.visible)
		}

		rows := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			rows = append(rows, l.renderRow(l.visible[i], i == l.cursor))
		}
		b.WriteString(strings.Join(rows, "\n"))
	}

	b.WriteString("\n\n")
	b.WriteString(l.theme.SessionMeta.Render("enter load · ctrl+n new · ctrl+r rename · ctrl+x delete · esc close"))

	boxWidth := l.width - 8
	if boxWidth < 30 {
		boxWidth = 30
	}
	return l.theme.OverlayBox.Width(boxWidth).Render(b.String())
}

// renderRow renders one listing entry: name, message count, and age.
func (l *SessionList) renderRow(entry backend.ConversationSummary, selected bool) string {
	nameWidth := l.width - 30
	if nameWidth < 16 {
		nameWidth = 16
	}
	name := util.TruncateWidth(entry.Name, nameWidth)

	meta := strconv.Itoa(entry.MessageCount) + " msgs"
	if age := relativeAge(entry.UpdatedTime()); age != "" {
		meta += " · " + age
	}

	row := lipgloss.JoinHorizontal(lipgloss.Top,
		name,
		" ",
		l.theme.SessionMeta.Render(meta),
	)

	if selected {
		return l.theme.SessionItemSelected.Render(row)
	}
	return l.theme.SessionItem.Render(row)
}

// relativeAge formats an update stamp as a short age like "3h" or
// "2d". Unparsable stamps render as nothing rather than a bogus age.
func relativeAge(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return strconv.Itoa(int(d.Minutes())) + "m"
	case d < 24*time.Hour:
		return strconv.Itoa(int(d.Hours())) + "h"
	default:
		return strconv.Itoa(int(d.Hours()/24)) + "d"
	}
}
