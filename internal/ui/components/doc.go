// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the reusable UI pieces of the ragchat
// TUI: the status bar, the session list overlay, the model picker,
// the generation spinner, and inline notices. Components hold their
// own display state and render themselves; all wiring to the backend
// happens in the chat view that owns them.
package components
