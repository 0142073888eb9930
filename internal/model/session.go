// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sync"
	"time"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultSessionName is the name given to sessions before the user
	// has said anything. Sessions still carrying this name get a real
	// one derived from the first user message when they are saved.
	DefaultSessionName = "New Chat"

	// nameMaxRunes caps derived session names so sidebar entries stay
	// on one line.
	nameMaxRunes = 50
)

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session is a single conversation: an ordered transcript of messages
// plus the metadata the sidebar shows. The backend owns the persisted
// copy; this struct is the client's working state for one conversation.
//
// The transcript and mutable metadata are mutex-guarded because a
// finishing generation settles the transcript from its own goroutine
// while the event loop repaints. Live sessions are read through the
// methods below (MessagesSnapshot, DisplayName, ModelName, Clone);
// direct field access is only safe on snapshots.
type Session struct {
	// ID is the backend conversation identifier. Immutable.
	ID string `json:"id"`

	// Name is the display name shown in the session list.
	Name string `json:"name"`

	// Model is the backend model this session last used.
	Model string `json:"model,omitempty"`

	// CreatedAt records when the session was created locally.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt records the last mutation, used for list ordering.
	UpdatedAt time.Time `json:"updated_at"`

	// Messages is the ordered transcript, oldest first.
	Messages []*Message `json:"messages"`

	// mu guards Messages, Name, Model and UpdatedAt.
	mu sync.Mutex
}

// NewSession creates an empty session with the default display name.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		Name:      DefaultSessionName,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]*Message, 0, 16),
	}
}

// =============================================================================
// TRANSCRIPT MUTATION
// =============================================================================

// AddUserMessage appends a finalized user message and returns it.
func (s *Session) AddUserMessage(content string) *Message {
	msg := NewUserMessage(content)
	s.mu.Lock()
	s.appendLocked(msg)
	s.mu.Unlock()
	return msg
}

// AddAssistantPlaceholder appends an empty streaming assistant message
// and returns it. The caller feeds it fragments via AppendToLast and
// closes it with FinalizeLast.
func (s *Session) AddAssistantPlaceholder() *Message {
	msg := NewAssistantPlaceholder()
	s.mu.Lock()
	s.appendLocked(msg)
	s.mu.Unlock()
	return msg
}

// AppendToLast adds a fragment to the trailing message if it is still
// streaming. Returns false when there is nothing streaming to append
// to, which callers treat as a stale delivery and drop.
func (s *Session) AppendToLast(fragment string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := s.lastLocked()
	if last == nil || !last.Streaming() {
		return false
	}
	last.AppendFragment(fragment)
	return true
}

// FinalizeLast closes the trailing streaming message and returns it.
// Returns nil when no message is streaming.
func (s *Session) FinalizeLast() *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := s.lastLocked()
	if last == nil || !last.Streaming() {
		return nil
	}
	last.Finalize()
	s.touchLocked()
	return last
}

// DropTrailingPlaceholder removes the trailing assistant message if it
// is still streaming. Used when generation fails: the placeholder must
// not survive as transcript history.
func (s *Session) DropTrailingPlaceholder() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := s.lastLocked()
	if last == nil || !last.Streaming() || last.Role != RoleAssistant {
		return false
	}
	s.Messages = s.Messages[:len(s.Messages)-1]
	return true
}

// PopLastAssistant removes and returns the trailing assistant message
// if it is finalized. Used by regenerate, which discards the previous
// answer and resends the question that produced it.
func (s *Session) PopLastAssistant() (*Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := s.lastLocked()
	if last == nil || last.Streaming() || last.Role != RoleAssistant {
		return nil, false
	}
	s.Messages = s.Messages[:len(s.Messages)-1]
	s.touchLocked()
	return last, true
}

// ClearMessages empties the transcript in place, keeping the session
// identity and name.
func (s *Session) ClearMessages() {
	s.mu.Lock()
	s.Messages = s.Messages[:0]
	s.touchLocked()
	s.mu.Unlock()
}

// Touch bumps UpdatedAt to now.
func (s *Session) Touch() {
	s.mu.Lock()
	s.touchLocked()
	s.mu.Unlock()
}

func (s *Session) touchLocked() {
	s.UpdatedAt = time.Now()
}

func (s *Session) appendLocked(msg *Message) {
	s.Messages = append(s.Messages, msg)
	s.touchLocked()
}

// =============================================================================
// TRANSCRIPT QUERIES
// =============================================================================

// LastMessage returns the trailing message, or nil for an empty session.
func (s *Session) LastMessage() *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLocked()
}

func (s *Session) lastLocked() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// LastUserMessage returns the most recent user message, or nil.
func (s *Session) LastUserMessage() *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i]
		}
	}
	return nil
}

// FirstUserMessage returns the earliest user message, or nil.
func (s *Session) FirstUserMessage() *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstUserLocked()
}

func (s *Session) firstUserLocked() *Message {
	for _, msg := range s.Messages {
		if msg.Role == RoleUser {
			return msg
		}
	}
	return nil
}

// MessageCount returns the number of messages in the transcript.
func (s *Session) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Messages)
}

// IsEmpty reports whether the transcript has no messages.
func (s *Session) IsEmpty() bool {
	return s.MessageCount() == 0
}

// IsGenerating reports whether the trailing message is still streaming.
func (s *Session) IsGenerating() bool {
	last := s.LastMessage()
	return last != nil && last.Streaming()
}

// =============================================================================
// NAMING
// =============================================================================

// HasDefaultName reports whether the session still carries the
// placeholder name.
func (s *Session) HasDefaultName() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasDefaultNameLocked()
}

func (s *Session) hasDefaultNameLocked() bool {
	return s.Name == "" || s.Name == DefaultSessionName
}

// DisplayName returns the current display name.
func (s *Session) DisplayName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Name
}

// SetName installs a new display name and bumps UpdatedAt.
func (s *Session) SetName(name string) {
	s.mu.Lock()
	s.Name = name
	s.touchLocked()
	s.mu.Unlock()
}

// ModelName returns the backend model this session last used.
func (s *Session) ModelName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Model
}

// SetModel records the backend model the session is using.
func (s *Session) SetModel(name string) {
	s.mu.Lock()
	s.Model = name
	s.mu.Unlock()
}

// DeriveName returns the name the session should be saved under. A
// session still carrying the default name takes a single-line preview
// of its first user message; anything the user renamed is kept as-is.
func (s *Session) DeriveName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasDefaultNameLocked() {
		return s.Name
	}
	first := s.firstUserLocked()
	if first == nil || first.IsEmpty() {
		return DefaultSessionName
	}
	return first.Preview(nameMaxRunes)
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// MessagesSnapshot returns a copy of the transcript slice. The
// messages themselves are shared, so callers read them through their
// own guarded methods; the copy only protects against the trailing
// placeholder being dropped mid-iteration.
func (s *Session) MessagesSnapshot() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]*Message, len(s.Messages))
	copy(msgs, s.Messages)
	return msgs
}

// Clone returns a deep copy of the session. Messages are copied with
// any in-flight streaming state finalized, so the snapshot is stable
// while the original keeps streaming.
func (s *Session) Clone() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]*Message, len(s.Messages))
	for i, msg := range s.Messages {
		msgs[i] = msg.Clone()
	}
	return &Session{
		ID:        s.ID,
		Name:      s.Name,
		Model:     s.Model,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Messages:  msgs,
	}
}
