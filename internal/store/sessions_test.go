// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jeranaias/ragchat-tui/internal/backend"
	"github.com/jeranaias/ragchat-tui/internal/model"
)

// fakeRemote is an in-memory stand-in for the backend client.
type fakeRemote struct {
	docs      map[string]*backend.ConversationDoc
	summaries []backend.ConversationSummary

	saves   []backend.SaveConversationRequest
	renames map[string]string
	deletes []string

	failSave   error
	failDelete error
	failList   error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		docs:    make(map[string]*backend.ConversationDoc),
		renames: make(map[string]string),
	}
}

func (f *fakeRemote) ListConversations(ctx context.Context) ([]backend.ConversationSummary, error) {
	if f.failList != nil {
		return nil, f.failList
	}
	return f.summaries, nil
}

func (f *fakeRemote) GetConversation(ctx context.Context, id string) (*backend.ConversationDoc, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, backend.ErrConversationNotFound
	}
	return doc, nil
}

func (f *fakeRemote) SaveConversation(ctx context.Context, id string, save backend.SaveConversationRequest) error {
	if f.failSave != nil {
		return f.failSave
	}
	f.saves = append(f.saves, save)
	f.docs[id] = &backend.ConversationDoc{
		ID:       id,
		Name:     save.Name,
		Model:    save.Model,
		Messages: save.Messages,
	}
	return nil
}

func (f *fakeRemote) DeleteConversation(ctx context.Context, id string) error {
	if f.failDelete != nil {
		return f.failDelete
	}
	if _, ok := f.docs[id]; !ok {
		return backend.ErrConversationNotFound
	}
	delete(f.docs, id)
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeRemote) RenameConversation(ctx context.Context, id, name string) error {
	if _, ok := f.docs[id]; !ok {
		return backend.ErrConversationNotFound
	}
	f.docs[id].Name = name
	f.renames[id] = name
	return nil
}

// seedConversation registers a saved conversation on the fake backend.
func (f *fakeRemote) seedConversation(id, name string, messages ...backend.WireMessage) {
	f.docs[id] = &backend.ConversationDoc{ID: id, Name: name, Messages: messages}
}

// =============================================================================
// ACTIVE SESSION TESTS
// =============================================================================

func TestNewSessionStore_HasActiveSession(t *testing.T) {
	s := NewSessionStore(newFakeRemote())

	active := s.Active()
	if active == nil {
		t.Fatal("new store should have an active session")
	}
	if active.Name != model.DefaultSessionName {
		t.Errorf("Name = %q, want default", active.Name)
	}
	if !active.IsEmpty() {
		t.Error("initial session should be empty")
	}
	if active.ID == "" {
		t.Error("session should have an id")
	}
}

func TestCreateSession_SwitchesActive(t *testing.T) {
	s := NewSessionStore(newFakeRemote())
	first := s.Active()

	second := s.CreateSession()

	if s.Active() != second {
		t.Error("new session should become active")
	}
	if first.ID == second.ID {
		t.Error("sessions should have distinct ids")
	}
	if _, ok := s.Get(first.ID); !ok {
		t.Error("previous session should remain known")
	}
}

// =============================================================================
// LOAD TESTS
// =============================================================================

func TestLoadSession(t *testing.T) {
	remote := newFakeRemote()
	remote.seedConversation("conv-1", "Saved Chat",
		backend.WireMessage{Role: "user", Content: "hi"},
		backend.WireMessage{Role: "assistant", Content: "hello"},
	)

	s := NewSessionStore(remote)
	loaded, err := s.LoadSession(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("LoadSession() error: %v", err)
	}

	if s.Active() != loaded {
		t.Error("loaded session should become active")
	}
	if loaded.Name != "Saved Chat" || loaded.MessageCount() != 2 {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestLoadSession_DocWithoutIDKeepsRequestedID(t *testing.T) {
	// Conversations saved by old backend versions can come back
	// without an id field; the requested id stays the key.
	remote := newFakeRemote()
	remote.docs["conv-legacy"] = &backend.ConversationDoc{
		Name:     "Old Chat",
		Messages: []backend.WireMessage{{Role: "user", Content: "hi"}},
	}

	s := NewSessionStore(remote)
	loaded, err := s.LoadSession(context.Background(), "conv-legacy")
	if err != nil {
		t.Fatalf("LoadSession() error: %v", err)
	}

	if loaded.ID != "conv-legacy" {
		t.Errorf("loaded ID = %q, want conv-legacy", loaded.ID)
	}
	if got, ok := s.Get("conv-legacy"); !ok || got != loaded {
		t.Error("session must be cached under the requested id")
	}
}

func TestLoadSession_MissingLeavesStateUnchanged(t *testing.T) {
	s := NewSessionStore(newFakeRemote())
	before := s.Active()
	before.AddUserMessage("typed but not sent")

	_, err := s.LoadSession(context.Background(), "no-such-id")
	if !backend.IsNotFound(err) {
		t.Fatalf("error = %v, want not-found", err)
	}

	if s.Active() != before {
		t.Error("active session must not change on a failed load")
	}
	if before.MessageCount() != 1 {
		t.Error("active transcript must be untouched")
	}
}

// =============================================================================
// PERSIST TESTS
// =============================================================================

func TestPersist_DerivesNameOnFirstSave(t *testing.T) {
	remote := newFakeRemote()
	s := NewSessionStore(remote)

	active := s.Active()
	active.AddUserMessage("How do goroutines get scheduled?")
	active.AddAssistantPlaceholder()
	active.AppendToLast("By the runtime.")
	active.FinalizeLast()

	if err := s.Persist(context.Background(), active); err != nil {
		t.Fatalf("Persist() error: %v", err)
	}

	if len(remote.saves) != 1 {
		t.Fatalf("saves = %d, want 1", len(remote.saves))
	}
	saved := remote.saves[0]
	if saved.Name != "How do goroutines get scheduled?" {
		t.Errorf("saved name = %q", saved.Name)
	}
	if len(saved.Messages) != 2 {
		t.Errorf("saved messages = %d, want 2", len(saved.Messages))
	}

	// A renamed session keeps its name on later saves.
	active.Name = "Scheduler Notes"
	active.AddUserMessage("more")
	if err := s.Persist(context.Background(), active); err != nil {
		t.Fatalf("Persist() error: %v", err)
	}
	if remote.saves[1].Name != "Scheduler Notes" {
		t.Errorf("second save name = %q", remote.saves[1].Name)
	}
}

func TestPersist_SkipsEmptyDefaultSession(t *testing.T) {
	remote := newFakeRemote()
	s := NewSessionStore(remote)

	if err := s.Persist(context.Background(), s.Active()); err != nil {
		t.Fatalf("Persist() error: %v", err)
	}
	if len(remote.saves) != 0 {
		t.Error("empty default sessions should not be saved")
	}
}

func TestPersist_SurfacesRemoteFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.failSave = errors.New("disk full")
	s := NewSessionStore(remote)

	active := s.Active()
	active.AddUserMessage("q")

	if err := s.Persist(context.Background(), active); err == nil {
		t.Error("expected error from failing save")
	}
}

// =============================================================================
// RENAME TESTS
// =============================================================================

func TestRename(t *testing.T) {
	remote := newFakeRemote()
	remote.seedConversation("conv-1", "Old Name")
	s := NewSessionStore(remote)
	s.LoadSession(context.Background(), "conv-1")

	if err := s.Rename(context.Background(), "conv-1", "  New Name  "); err != nil {
		t.Fatalf("Rename() error: %v", err)
	}

	if remote.renames["conv-1"] != "New Name" {
		t.Errorf("remote rename = %q, want trimmed name", remote.renames["conv-1"])
	}
	if s.Active().Name != "New Name" {
		t.Errorf("local name = %q", s.Active().Name)
	}
}

func TestRename_BlankRejected(t *testing.T) {
	remote := newFakeRemote()
	remote.seedConversation("conv-1", "Kept")
	s := NewSessionStore(remote)

	err := s.Rename(context.Background(), "conv-1", "   ")
	if !errors.Is(err, ErrBlankName) {
		t.Fatalf("error = %v, want ErrBlankName", err)
	}
	if remote.docs["conv-1"].Name != "Kept" {
		t.Error("blank rename must not reach the backend")
	}
}

func TestRename_UnsavedSessionFallsBackToSave(t *testing.T) {
	remote := newFakeRemote()
	s := NewSessionStore(remote)

	active := s.Active()
	active.AddUserMessage("hello")

	if err := s.Rename(context.Background(), active.ID, "Named Early"); err != nil {
		t.Fatalf("Rename() error: %v", err)
	}

	if active.Name != "Named Early" {
		t.Errorf("local name = %q", active.Name)
	}
	if len(remote.saves) != 1 || remote.saves[0].Name != "Named Early" {
		t.Errorf("saves = %+v, want save under new name", remote.saves)
	}
}

// =============================================================================
// DELETE TESTS
// =============================================================================

func TestDelete_ActiveCreatesReplacement(t *testing.T) {
	remote := newFakeRemote()
	remote.seedConversation("conv-1", "Doomed")
	s := NewSessionStore(remote)
	s.LoadSession(context.Background(), "conv-1")

	if err := s.Delete(context.Background(), "conv-1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	active := s.Active()
	if active == nil {
		t.Fatal("store must always have an active session")
	}
	if active.ID == "conv-1" {
		t.Error("deleted session must not stay active")
	}
	if !active.IsEmpty() || active.Name != model.DefaultSessionName {
		t.Error("replacement should be a fresh session")
	}
	if _, ok := s.Get("conv-1"); ok {
		t.Error("deleted session should be forgotten")
	}
}

func TestDelete_InactiveKeepsActive(t *testing.T) {
	remote := newFakeRemote()
	remote.seedConversation("conv-1", "Other")
	s := NewSessionStore(remote)
	before := s.Active()

	if err := s.Delete(context.Background(), "conv-1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if s.Active() != before {
		t.Error("deleting another session must not switch the active one")
	}
}

func TestDelete_AlreadyGoneIsSuccess(t *testing.T) {
	s := NewSessionStore(newFakeRemote())
	if err := s.Delete(context.Background(), "never-existed"); err != nil {
		t.Errorf("Delete() error = %v, want nil for missing conversation", err)
	}
}

func TestDelete_RemoteFailureBlocks(t *testing.T) {
	remote := newFakeRemote()
	remote.seedConversation("conv-1", "Sticky")
	remote.failDelete = errors.New("backend exploded")
	s := NewSessionStore(remote)
	s.LoadSession(context.Background(), "conv-1")

	if err := s.Delete(context.Background(), "conv-1"); err == nil {
		t.Fatal("expected delete failure to surface")
	}
	if s.Active().ID != "conv-1" {
		t.Error("failed delete must not replace the active session")
	}
}

// =============================================================================
// LIST AND FILTER TESTS
// =============================================================================

func TestList_SortsByUpdatedDescending(t *testing.T) {
	remote := newFakeRemote()
	remote.summaries = []backend.ConversationSummary{
		{ID: "old", Name: "Old", UpdatedAt: "2025-01-01T10:00:00"},
		{ID: "new", Name: "New", UpdatedAt: "2025-06-01T10:00:00"},
		{ID: "mid", Name: "Mid", UpdatedAt: "2025-03-01T10:00:00"},
	}
	s := NewSessionStore(remote)

	got, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if got[0].ID != "new" || got[1].ID != "mid" || got[2].ID != "old" {
		t.Errorf("order = %s, %s, %s", got[0].ID, got[1].ID, got[2].ID)
	}
	if len(s.Summaries()) != 3 {
		t.Error("listing should be cached")
	}
}

func TestFilter(t *testing.T) {
	remote := newFakeRemote()
	remote.summaries = []backend.ConversationSummary{
		{ID: "1", Name: "Goroutine scheduling"},
		{ID: "2", Name: "Café recommendations"},
		{ID: "3", Name: "Channel patterns"},
	}
	s := NewSessionStore(remote)
	s.List(context.Background())

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"   ", 3},
		{"goroutine", 1},
		{"GOROUTINE", 1},
		{"CAFÉ", 1},
		{"café", 1},
		{"nothing", 0},
	}
	for _, tt := range tests {
		if got := len(s.Filter(tt.query)); got != tt.want {
			t.Errorf("Filter(%q) = %d matches, want %d", tt.query, got, tt.want)
		}
	}
}
