// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual theme for the terminal UI.
//
// All colors are adaptive, with separate values for light and dark
// terminal backgrounds. The Theme struct bundles the lip gloss styles
// used by the chat view, the session sidebar, the model picker, and
// the status bar, and exposes the terminal's detected color profile
// so components can degrade gracefully on limited terminals.
package styles
