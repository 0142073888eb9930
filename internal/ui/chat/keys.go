// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP
// =============================================================================

// KeyMap defines the keyboard bindings for the chat interface. Chords
// are used for everything but submit so plain typing always reaches
// the input.
type KeyMap struct {
	Submit     key.Binding
	Newline    key.Binding
	Cancel     key.Binding
	Regenerate key.Binding

	NewSession     key.Binding
	ToggleSessions key.Binding
	ToggleRAG      key.Binding
	Models         key.Binding
	Export         key.Binding

	CopyAnswer key.Binding
	CopyCode   key.Binding

	PageUp   key.Binding
	PageDown key.Binding

	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send message"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter", "ctrl+j"),
			key.WithHelp("alt+enter", "insert newline"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel generation"),
		),
		Regenerate: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "regenerate last answer"),
		),
		NewSession: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "new session"),
		),
		ToggleSessions: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "sessions panel"),
		),
		ToggleRAG: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("ctrl+g", "toggle retrieval"),
		),
		Models: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("ctrl+o", "model selector"),
		),
		Export: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("ctrl+e", "export as markdown"),
		),
		CopyAnswer: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("ctrl+y", "copy last answer"),
		),
		CopyCode: key.NewBinding(
			key.WithKeys("alt+y"),
			key.WithHelp("alt+y", "copy last code block"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdn", "scroll down"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1", "alt+h"),
			key.WithHelp("f1", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the one-line hint under the
// input.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.ToggleSessions, k.ToggleRAG, k.Help, k.Quit}
}

// FullHelp returns the grouped bindings for the help overlay.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Newline, k.Cancel, k.Regenerate},
		{k.NewSession, k.ToggleSessions, k.ToggleRAG, k.Models},
		{k.Export, k.CopyAnswer, k.CopyCode},
		{k.PageUp, k.PageDown, k.Help, k.Quit},
	}
}
