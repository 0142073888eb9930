// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ragchat-tui/internal/backend"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
	"github.com/jeranaias/ragchat-tui/internal/util"
)

// =============================================================================
// MODEL PICKER OVERLAY
// =============================================================================

// ModelPicker is the model selection overlay. It lists the models the
// backend can serve and marks the one currently active.
type ModelPicker struct {
	theme *styles.Theme

	models  []backend.ModelInfo
	current string
	cursor  int

	width int
}

// NewModelPicker creates an empty model picker.
func NewModelPicker(theme *styles.Theme) *ModelPicker {
	return &ModelPicker{theme: theme}
}

// SetSize updates the overlay width.
func (p *ModelPicker) SetSize(width int) {
	p.width = width
}

// SetModels replaces the listing and moves the cursor to the active
// model so enter-without-moving is a no-op switch.
func (p *ModelPicker) SetModels(models []backend.ModelInfo, current string) {
	p.models = models
	p.current = current
	p.cursor = 0
	for i, m := range models {
		if m.Name == current {
			p.cursor = i
			break
		}
	}
}

// Selected returns the model under the cursor, if any.
func (p *ModelPicker) Selected() (backend.ModelInfo, bool) {
	if p.cursor < 0 || p.cursor >= len(p.models) {
		return backend.ModelInfo{}, false
	}
	return p.models[p.cursor], true
}

// Update handles cursor movement.
func (p *ModelPicker) Update(msg tea.Msg) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return
	}
	switch key.String() {
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.models)-1 {
			p.cursor++
		}
	}
}

// View renders the overlay box.
func (p *ModelPicker) View() string {
	var b strings.Builder

	b.WriteString(p.theme.OverlayTitle.Render("Models"))
	b.WriteString("\n\n")

	if len(p.models) == 0 {
		b.WriteString(p.theme.PickerAnnotation.Render("no models reported by backend"))
	} else {
		rows := make([]string, 0, len(p.models))
		for i, m := range p.models {
			rows = append(rows, p.renderRow(m, i == p.cursor))
		}
		b.WriteString(strings.Join(rows, "\n"))
	}

	b.WriteString("\n\n")
	b.WriteString(p.theme.PickerAnnotation.Render("enter switch · esc close"))

	boxWidth := p.width - 16
	if boxWidth < 30 {
		boxWidth = 30
	}
	return p.theme.OverlayBox.Width(boxWidth).Render(b.String())
}

// renderRow renders one model entry, marking the active one.
func (p *ModelPicker) renderRow(m backend.ModelInfo, selected bool) string {
	nameWidth := p.width - 36
	if nameWidth < 16 {
		nameWidth = 16
	}
	label := util.TruncateWidth(m.Name, nameWidth)
	if m.Name == p.current {
		label += " " + p.theme.PickerAnnotation.Render("(current)")
	}
	if size := formatModelSize(m.Size); size != "" {
		label += " " + p.theme.PickerAnnotation.Render(size)
	}

	if selected {
		return p.theme.PickerSelected.Render(label)
	}
	return p.theme.PickerItem.Render(label)
}

// formatModelSize renders a byte count as a rough GB/MB figure.
func formatModelSize(size int64) string {
	const (
		mb = 1 << 20
		gb = 1 << 30
	)
	switch {
	case size >= gb:
		whole := size / gb
		tenth := (size % gb) * 10 / gb
		return itoa64(whole) + "." + itoa64(tenth) + "GB"
	case size >= mb:
		return itoa64(size/mb) + "MB"
	default:
		return ""
	}
}

func itoa64(n int64) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
