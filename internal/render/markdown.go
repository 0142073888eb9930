// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN RENDERER
// =============================================================================

// minRenderWidth keeps word wrap sane on tiny terminals.
const minRenderWidth = 20

// Renderer produces terminal output for parsed messages. Markdown text
// goes through glamour; code segments get chroma highlighting inside a
// framed block. Re-rendering the same text yields the same output.
type Renderer struct {
	width    int
	markdown *glamour.TermRenderer
}

// NewRenderer creates a renderer wrapping at the given column width.
func NewRenderer(width int) *Renderer {
	r := &Renderer{}
	r.Resize(width)
	return r
}

// Width returns the current wrap width.
func (r *Renderer) Width() int {
	return r.width
}

// Resize rebuilds the markdown renderer for a new terminal width.
// No-op when the width is unchanged.
func (r *Renderer) Resize(width int) {
	if width < minRenderWidth {
		width = minRenderWidth
	}
	if width == r.width && r.markdown != nil {
		return
	}
	r.width = width

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
		glamour.WithPreservedNewLines(),
	)
	if err != nil {
		// Fallback to plain text if renderer initialization fails
		r.markdown = nil
		return
	}
	r.markdown = renderer
}

// Render parses and renders a full message. This is what the chat view
// calls once per streamed fragment on the growing message text.
func (r *Renderer) Render(text string) string {
	return r.RenderTree(Parse(text))
}

// RenderTree renders an already parsed message.
func (r *Renderer) RenderTree(tree *Tree) string {
	parts := make([]string, 0, len(tree.Segments))
	for _, seg := range tree.Segments {
		switch s := seg.(type) {
		case TextSegment:
			parts = append(parts, r.renderMarkdown(s.Text))
		case CodeSegment:
			parts = append(parts, r.renderCode(s))
		}
	}
	return strings.Join(parts, "\n")
}

// renderMarkdown renders markdown content for terminal display.
// Returns the original content if rendering fails or the renderer is
// unavailable.
func (r *Renderer) renderMarkdown(content string) string {
	if r.markdown == nil {
		return content
	}

	rendered, err := r.markdown.Render(content)
	if err != nil {
		return content
	}

	return strings.TrimRight(rendered, "\n")
}
