// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import "strings"

// =============================================================================
// USER TEXT SANITIZER
// =============================================================================

// NeutralizeControls replaces terminal control characters with the
// Unicode replacement character so pasted text cannot inject escape
// sequences into the display. Newlines and tabs pass through, carriage
// returns are dropped so CRLF input collapses to plain newlines.
func NeutralizeControls(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r == '\r':
			// dropped
		case r < 0x20 || r == 0x7F || (r >= 0x80 && r <= 0x9F):
			b.WriteRune('�')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// RenderUserText prepares user-authored text for display. User text is
// never treated as markdown: it shows exactly what was typed, with
// whitespace preserved and control characters neutralized.
func RenderUserText(text string) string {
	return NeutralizeControls(text)
}
