// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
)

// =============================================================================
// GENERATION SPINNER
// =============================================================================

// Spinner is the typing indicator shown in place of the assistant
// answer before the first fragment arrives, and next to the status bar
// while a generation runs.
type Spinner struct {
	spinner   spinner.Model
	theme     *styles.Theme
	message   string
	startTime time.Time
	active    bool
}

// NewSpinner creates an inactive spinner. ASCII frames keep it safe on
// terminals without wide glyph support.
func NewSpinner(theme *styles.Theme) Spinner {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	s.Style = theme.Spinner

	return Spinner{
		spinner: s,
		theme:   theme,
		message: "Thinking",
	}
}

// Start activates the spinner and resets its timer.
func (s *Spinner) Start() tea.Cmd {
	s.active = true
	s.startTime = time.Now()
	return s.spinner.Tick
}

// Stop deactivates the spinner.
func (s *Spinner) Stop() {
	s.active = false
}

// Active reports whether the spinner is running.
func (s *Spinner) Active() bool {
	return s.active
}

// Elapsed returns how long the spinner has been running, rounded to
// whole seconds for display.
func (s *Spinner) Elapsed() time.Duration {
	if !s.active {
		return 0
	}
	return time.Since(s.startTime).Round(time.Second)
}

// Update advances the animation.
func (s *Spinner) Update(msg tea.Msg) tea.Cmd {
	if !s.active {
		return nil
	}
	var cmd tea.Cmd
	s.spinner, cmd = s.spinner.Update(msg)
	return cmd
}

// View renders the spinner with its message and elapsed time.
func (s *Spinner) View() string {
	if !s.active {
		return ""
	}
	label := s.message + "..."
	if elapsed := s.Elapsed(); elapsed >= 2*time.Second {
		label += " (" + elapsed.String() + ")"
	}
	return s.spinner.View() + " " + s.theme.ThinkingText.Render(label)
}
