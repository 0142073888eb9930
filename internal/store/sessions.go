// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/ragchat-tui/internal/backend"
	"github.com/jeranaias/ragchat-tui/internal/model"
)

// =============================================================================
// REMOTE INTERFACE
// =============================================================================

// Remote is the slice of the backend client the session store needs.
// The backend owns persisted conversations; the store only decides
// when to call it and what the client-side state becomes afterwards.
type Remote interface {
	ListConversations(ctx context.Context) ([]backend.ConversationSummary, error)
	GetConversation(ctx context.Context, id string) (*backend.ConversationDoc, error)
	SaveConversation(ctx context.Context, id string, save backend.SaveConversationRequest) error
	DeleteConversation(ctx context.Context, id string) error
	RenameConversation(ctx context.Context, id, name string) error
}

// =============================================================================
// SESSION STORE
// =============================================================================

// SessionStore tracks the active session and the locally known
// sessions, delegating persistence to the backend.
//
// The store's own state is guarded by a mutex so the event loop and a
// finishing generation can share it. Backend calls never run under the
// lock. Sessions themselves belong to whoever is writing them: a
// streaming generation writes only its originating session, and the
// UI reads messages once they are finished.
type SessionStore struct {
	remote Remote

	mu        sync.Mutex
	active    *model.Session
	sessions  map[string]*model.Session
	summaries []backend.ConversationSummary
}

// NewSessionStore creates a store with a fresh active session, so
// there is always somewhere for input to go.
func NewSessionStore(remote Remote) *SessionStore {
	s := &SessionStore{
		remote:   remote,
		sessions: make(map[string]*model.Session),
	}
	s.CreateSession()
	return s
}

// =============================================================================
// ACTIVE SESSION
// =============================================================================

// Active returns the current session. Never nil.
func (s *SessionStore) Active() *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// CreateSession starts a new empty session and makes it active. The
// backend learns about it on the first persist.
func (s *SessionStore) CreateSession() *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked()
}

func (s *SessionStore) createLocked() *model.Session {
	session := model.NewSession(uuid.NewString())
	s.sessions[session.ID] = session
	s.active = session
	return session
}

// Get returns a locally known session without touching the backend.
func (s *SessionStore) Get(id string) (*model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	return session, ok
}

// =============================================================================
// LOAD
// =============================================================================

// LoadSession fetches a conversation from the backend and makes it
// active. On any failure, including an unknown id, the previously
// active session stays active and local state is unchanged.
func (s *SessionStore) LoadSession(ctx context.Context, id string) (*model.Session, error) {
	doc, err := s.remote.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}

	// Old stored conversations may lack an id field; the requested id
	// is the one the backend resolved, so keep it as the key.
	if doc.ID == "" {
		doc.ID = id
	}

	session := doc.ToSession()
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.active = session
	s.mu.Unlock()
	return session, nil
}

// =============================================================================
// PERSIST
// =============================================================================

// Persist saves a session to the backend. A session still on its
// default name gets one derived from its first user message before
// saving, so the sidebar never fills up with identical placeholders.
//
// Sessions with nothing in them are not saved at all.
func (s *SessionStore) Persist(ctx context.Context, session *model.Session) error {
	if session == nil {
		return nil
	}

	wire := backend.SessionToWire(session)
	if len(wire) == 0 && session.HasDefaultName() {
		return nil
	}

	if session.HasDefaultName() {
		session.SetName(session.DeriveName())
	}

	err := s.remote.SaveConversation(ctx, session.ID, backend.SaveConversationRequest{
		Name:     session.DisplayName(),
		Model:    session.ModelName(),
		Messages: wire,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return nil
}

// =============================================================================
// RENAME
// =============================================================================

// Rename changes a session's display name locally and on the backend.
// Blank names are rejected before anything is touched. Renaming a
// session the backend has never seen saves it under the new name
// instead, since there is nothing remote to rename yet.
func (s *SessionStore) Rename(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrBlankName
	}

	err := s.remote.RenameConversation(ctx, id, name)
	if backend.IsNotFound(err) {
		session, ok := s.Get(id)
		if !ok {
			return err
		}
		session.SetName(name)
		return s.Persist(ctx, session)
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	if session, ok := s.sessions[id]; ok {
		session.SetName(name)
	}
	for i := range s.summaries {
		if s.summaries[i].ID == id {
			s.summaries[i].Name = name
		}
	}
	s.mu.Unlock()
	return nil
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes a session locally and on the backend. Deleting a
// conversation the backend already lost counts as success; the goal is
// that it is gone. Deleting the active session creates and activates a
// fresh one, so the client never sits on a deleted transcript.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	err := s.remote.DeleteConversation(ctx, id)
	if err != nil && !backend.IsNotFound(err) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	for i := range s.summaries {
		if s.summaries[i].ID == id {
			s.summaries = append(s.summaries[:i], s.summaries[i+1:]...)
			break
		}
	}

	if s.active != nil && s.active.ID == id {
		s.createLocked()
	}
	return nil
}

// =============================================================================
// LIST AND SEARCH
// =============================================================================

// List fetches conversation summaries from the backend, most recently
// updated first, and caches them for filtering.
func (s *SessionStore) List(ctx context.Context) ([]backend.ConversationSummary, error) {
	summaries, err := s.remote.ListConversations(ctx)
	if err != nil {
		return nil, err
	}

	// The backend sorts too, but its stamps are strings; sort on the
	// parsed times so mixed formats still order correctly.
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].UpdatedTime().After(summaries[j].UpdatedTime())
	})

	s.mu.Lock()
	s.summaries = summaries
	s.mu.Unlock()
	return summaries, nil
}

// Summaries returns a copy of the last fetched listing without a
// backend call.
func (s *SessionStore) Summaries() []backend.ConversationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]backend.ConversationSummary, len(s.summaries))
	copy(out, s.summaries)
	return out
}

// Filter returns the cached summaries whose names match the query,
// case-insensitively. An empty query matches everything.
func (s *SessionStore) Filter(query string) []backend.ConversationSummary {
	query = foldForSearch(query)
	summaries := s.Summaries()
	if query == "" {
		return summaries
	}

	var matched []backend.ConversationSummary
	for _, summary := range summaries {
		if strings.Contains(foldForSearch(summary.Name), query) {
			matched = append(matched, summary)
		}
	}
	return matched
}

// foldForSearch normalizes text for matching. Unicode case folding
// handles what ASCII lowering cannot, and NFC keeps composed and
// decomposed spellings of the same name from missing each other.
func foldForSearch(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrBlankName is returned when a rename is submitted with an empty or
// whitespace-only name. Use errors.Is(err, ErrBlankName) to check.
var ErrBlankName = &StoreError{Message: "session name cannot be blank"}

// StoreError represents a session-store error.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
