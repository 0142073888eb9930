// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/ragchat-tui/internal/util"
)

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single entry in a conversation transcript.
//
// Assistant messages are built incrementally while the backend streams:
// fragments accumulate in an internal builder and are promoted to
// Content only when Finalize is called. This keeps per-fragment appends
// cheap (no string reallocation per fragment) and gives the rest of the
// program a single place to ask "what should this message display right
// now" regardless of whether the stream has finished.
//
// The streaming state is mutex-guarded: the generation goroutine
// appends fragments and finalizes while the event loop repaints, so
// readers must go through Streaming/DisplayContent rather than poke
// at fields.
type Message struct {
	// ID uniquely identifies the message within the client.
	ID string `json:"id"`

	// Role identifies the author (user or assistant).
	Role Role `json:"role"`

	// Content is the finalized message text. Empty while streaming.
	Content string `json:"content"`

	// Timestamp records when the message was created.
	Timestamp time.Time `json:"timestamp"`

	// Retrieval marks an assistant message whose answer was generated
	// with document retrieval enabled.
	Retrieval bool `json:"retrieval,omitempty"`

	// mu guards streaming, streamContent and the Content handoff in
	// Finalize.
	mu sync.Mutex

	// streaming is true while fragments are still arriving.
	streaming bool

	// streamContent accumulates fragments during streaming.
	streamContent strings.Builder
}

// NewUserMessage creates a finalized message authored by the user.
func NewUserMessage(content string) *Message {
	return &Message{
		ID:        generateMessageID(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewAssistantPlaceholder creates an empty assistant message in
// streaming mode. Callers append fragments as they arrive and must
// call Finalize when the stream ends.
func NewAssistantPlaceholder() *Message {
	return &Message{
		ID:        generateMessageID(),
		Role:      RoleAssistant,
		Timestamp: time.Now(),
		streaming: true,
	}
}

// NewAssistantMessage creates a finalized assistant message. Used when
// restoring conversations from the backend, where content arrives whole.
func NewAssistantMessage(content string) *Message {
	return &Message{
		ID:        generateMessageID(),
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// =============================================================================
// STREAMING
// =============================================================================

// AppendFragment adds a fragment of streamed text. Fragments arriving
// after Finalize are dropped; a closed message never changes.
func (m *Message) AppendFragment(fragment string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.streaming {
		return
	}
	m.streamContent.WriteString(fragment)
}

// Finalize promotes the accumulated fragments to Content and closes
// the message. Calling Finalize on an already-final message is a no-op.
func (m *Message) Finalize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.streaming {
		return
	}
	m.Content = m.streamContent.String()
	m.streamContent.Reset()
	m.streaming = false
}

// Streaming reports whether fragments are still arriving. Once it
// returns false the message never changes again, so Content is safe to
// read directly afterwards.
func (m *Message) Streaming() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streaming
}

// DisplayContent returns the text to render right now: the builder
// contents while streaming, the final Content afterwards.
func (m *Message) DisplayContent() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.streaming {
		return m.streamContent.String()
	}
	return m.Content
}

// =============================================================================
// HELPERS
// =============================================================================

// Preview returns a single-line summary of the message, truncated to
// maxRunes with an ellipsis. Used for sidebar entries and logs.
func (m *Message) Preview(maxRunes int) string {
	content := strings.ReplaceAll(m.DisplayContent(), "\n", " ")
	return util.TruncateRunes(content, maxRunes)
}

// IsEmpty reports whether the message has no visible content.
func (m *Message) IsEmpty() bool {
	return strings.TrimSpace(m.DisplayContent()) == ""
}

// Clone returns a copy of the message. Streaming state is finalized in
// the copy so snapshots taken mid-stream are stable.
func (m *Message) Clone() *Message {
	return &Message{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.DisplayContent(),
		Timestamp: m.Timestamp,
		Retrieval: m.Retrieval,
	}
}

// generateMessageID returns a unique message identifier.
func generateMessageID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("msg_%d", time.Now().UnixNano())
	}
	return "msg_" + hex.EncodeToString(b)
}
