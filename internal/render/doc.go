// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns assistant markdown into terminal output.
//
// Parsing and presentation are separate layers. Parse segments a
// message into an ordered tree of text and fenced-code segments; it is
// pure, so re-parsing a growing message during streaming always yields
// a structurally consistent tree, and code bodies are kept verbatim
// for the copy path. The Renderer layers presentation on top: glamour
// for markdown text, chroma syntax highlighting inside a framed block
// for code. Highlighting never touches the stored code text.
//
// User-authored text never goes through markdown rendering. It is
// displayed literally with control characters neutralized.
package render
