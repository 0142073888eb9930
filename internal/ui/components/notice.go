// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"errors"
	"strings"

	"github.com/jeranaias/ragchat-tui/internal/backend"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
)

// =============================================================================
// NOTICES
// =============================================================================

// RenderErrorNotice renders a failed generation where the assistant
// answer would have been: a title, the error, and a suggestion when
// the failure has an obvious remedy.
func RenderErrorNotice(theme *styles.Theme, width int, err error) string {
	var b strings.Builder

	b.WriteString(theme.ErrorTitle.Render("Generation failed"))
	b.WriteString("\n")
	b.WriteString(theme.ErrorMessage.Render(errorText(err)))

	if hint := errorHint(err); hint != "" {
		b.WriteString("\n")
		b.WriteString(theme.ErrorSuggestion.Render(hint))
	}

	boxWidth := width - 8
	if boxWidth < 24 {
		boxWidth = 24
	}
	return theme.ErrorBox.MaxWidth(boxWidth).Render(b.String())
}

// RenderModalNotice renders a blocking notice box for failed session
// operations (load, rename, delete).
func RenderModalNotice(theme *styles.Theme, width int, title string, err error) string {
	var b strings.Builder
	b.WriteString(theme.ErrorTitle.Render(title))
	b.WriteString("\n\n")
	b.WriteString(theme.ErrorMessage.Render(errorText(err)))
	b.WriteString("\n\n")
	b.WriteString(theme.ErrorSuggestion.Render("press any key to dismiss"))

	boxWidth := width - 16
	if boxWidth < 30 {
		boxWidth = 30
	}
	return theme.OverlayBox.Width(boxWidth).BorderForeground(styles.Rose).Render(b.String())
}

// errorText flattens an error for display.
func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// errorHint suggests a fix for the failures users can act on.
func errorHint(err error) string {
	var clientErr *backend.ClientError
	if !errors.As(err, &clientErr) {
		return ""
	}
	switch clientErr.Type {
	case backend.ErrTypeNotRunning:
		return "Is the chat backend running? Check the base_url in your config."
	case backend.ErrTypeTimeout:
		return "The backend took too long. Try again or raise backend.timeout_secs."
	default:
		return ""
	}
}
