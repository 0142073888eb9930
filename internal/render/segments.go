// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import "strings"

// =============================================================================
// SEGMENT TREE
// =============================================================================

// Segment is one piece of a parsed message: either markdown text or a
// fenced code block. The set of variants is closed.
type Segment interface {
	segment()
}

// TextSegment is a run of markdown source between code fences.
type TextSegment struct {
	Text string
}

// CodeSegment is one fenced code block. Code holds the verbatim text
// between the fence markers; nothing downstream may alter it. Closed
// is false when the closing fence has not arrived yet, which is the
// normal mid-stream state.
type CodeSegment struct {
	Language string
	Code     string
	Closed   bool
}

func (TextSegment) segment() {}
func (CodeSegment) segment() {}

// Tree is the parsed form of one message, in source order.
type Tree struct {
	Segments []Segment
}

// CodeSegments returns the code blocks in source order. The copy
// affordance indexes into this slice.
func (t *Tree) CodeSegments() []CodeSegment {
	var blocks []CodeSegment
	for _, seg := range t.Segments {
		if cs, ok := seg.(CodeSegment); ok {
			blocks = append(blocks, cs)
		}
	}
	return blocks
}

// =============================================================================
// FENCE SCANNER
// =============================================================================

// Parse segments markdown text into text and code segments.
// It is pure: the same input always produces a structurally identical
// tree, so it can be called once per streamed fragment on a growing
// message. An unclosed trailing fence yields an open code segment
// holding the remainder.
func Parse(text string) *Tree {
	if text == "" {
		return &Tree{}
	}

	lines := strings.Split(text, "\n")
	var segments []Segment
	var textLines []string
	var codeLines []string
	var language string
	var inCodeBlock bool

	flushText := func() {
		if len(textLines) == 0 {
			return
		}
		segments = append(segments, TextSegment{Text: strings.Join(textLines, "\n")})
		textLines = nil
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			if inCodeBlock {
				// End of code block
				segments = append(segments, CodeSegment{
					Language: language,
					Code:     strings.Join(codeLines, "\n"),
					Closed:   true,
				})
				codeLines = nil
				language = ""
				inCodeBlock = false
			} else {
				// Start of code block
				flushText()
				language = fenceLanguage(line)
				inCodeBlock = true
			}
			continue
		}

		if inCodeBlock {
			codeLines = append(codeLines, line)
		} else {
			textLines = append(textLines, line)
		}
	}

	// An unclosed fence means the rest of the message is code so far.
	if inCodeBlock {
		segments = append(segments, CodeSegment{
			Language: language,
			Code:     strings.Join(codeLines, "\n"),
			Closed:   false,
		})
	} else {
		flushText()
	}

	return &Tree{Segments: segments}
}

// fenceLanguage extracts the declared language from a fence line.
// Only the first word of the info string counts; annotations after it
// are ignored.
func fenceLanguage(line string) string {
	info := strings.TrimSpace(strings.TrimPrefix(line, "```"))
	if info == "" {
		return ""
	}
	return strings.Fields(info)[0]
}
