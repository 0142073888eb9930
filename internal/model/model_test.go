// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestRoleString(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleUser, "user"},
		{RoleAssistant, "assistant"},
		{Role(99), "role(99)"},
	}
	for _, tt := range tests {
		if got := tt.role.String(); got != tt.want {
			t.Errorf("Role(%d).String() = %q, want %q", tt.role, got, tt.want)
		}
	}
}

func TestRoleDisplayName(t *testing.T) {
	if got := RoleUser.DisplayName(); got != "You" {
		t.Errorf("RoleUser.DisplayName() = %q, want You", got)
	}
	if got := RoleAssistant.DisplayName(); got != "Assistant" {
		t.Errorf("RoleAssistant.DisplayName() = %q, want Assistant", got)
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{"user", RoleUser, false},
		{"assistant", RoleAssistant, false},
		{"system", 0, true},
		{"USER", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRole(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRole(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseRole(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestRoleJSONRoundTrip(t *testing.T) {
	for _, role := range []Role{RoleUser, RoleAssistant} {
		data, err := json.Marshal(role)
		if err != nil {
			t.Fatalf("Marshal(%v) error: %v", role, err)
		}
		var back Role
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", data, err)
		}
		if back != role {
			t.Errorf("round trip changed role: %v -> %v", role, back)
		}
	}
}

func TestRoleUnmarshalRejectsUnknown(t *testing.T) {
	var r Role
	if err := json.Unmarshal([]byte(`"system"`), &r); err == nil {
		t.Error("expected error unmarshaling unknown role string")
	}
	if err := json.Unmarshal([]byte(`42`), &r); err == nil {
		t.Error("expected error unmarshaling non-string role")
	}
}

func TestRoleMarshalRejectsInvalid(t *testing.T) {
	if _, err := json.Marshal(Role(7)); err == nil {
		t.Error("expected error marshaling invalid role")
	}
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("hello")

	if msg.Role != RoleUser {
		t.Errorf("Role = %v, want RoleUser", msg.Role)
	}
	if msg.Content != "hello" {
		t.Errorf("Content = %q, want hello", msg.Content)
	}
	if msg.Streaming() {
		t.Error("user message should not be streaming")
	}
	if !strings.HasPrefix(msg.ID, "msg_") {
		t.Errorf("ID = %q, want msg_ prefix", msg.ID)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestAssistantPlaceholderStreaming(t *testing.T) {
	msg := NewAssistantPlaceholder()

	if !msg.Streaming() {
		t.Fatal("placeholder should start streaming")
	}
	if msg.DisplayContent() != "" {
		t.Errorf("DisplayContent = %q, want empty", msg.DisplayContent())
	}

	msg.AppendFragment("Hello")
	msg.AppendFragment(" world")

	if got := msg.DisplayContent(); got != "Hello world" {
		t.Errorf("DisplayContent while streaming = %q, want Hello world", got)
	}
	if msg.Content != "" {
		t.Errorf("Content should stay empty until Finalize, got %q", msg.Content)
	}

	msg.Finalize()

	if msg.Streaming() {
		t.Error("Finalize should clear streaming state")
	}
	if msg.Content != "Hello world" {
		t.Errorf("Content after Finalize = %q, want Hello world", msg.Content)
	}
	if got := msg.DisplayContent(); got != "Hello world" {
		t.Errorf("DisplayContent after Finalize = %q, want Hello world", got)
	}
}

func TestAppendAfterFinalizeDropped(t *testing.T) {
	msg := NewAssistantPlaceholder()
	msg.AppendFragment("done")
	msg.Finalize()
	msg.AppendFragment(" extra")

	if msg.Content != "done" {
		t.Errorf("Content = %q, want done", msg.Content)
	}
}

func TestFinalizeIdempotent(t *testing.T) {
	msg := NewAssistantPlaceholder()
	msg.AppendFragment("once")
	msg.Finalize()
	msg.Finalize()

	if msg.Content != "once" {
		t.Errorf("Content = %q, want once", msg.Content)
	}
}

func TestMessagePreview(t *testing.T) {
	tests := []struct {
		name    string
		content string
		max     int
		want    string
	}{
		{"short", "hi there", 50, "hi there"},
		{"truncated", strings.Repeat("a", 60), 10, strings.Repeat("a", 7) + "..."},
		{"newlines flattened", "first line\nsecond line", 50, "first line second line"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := NewUserMessage(tt.content)
			if got := msg.Preview(tt.max); got != tt.want {
				t.Errorf("Preview(%d) = %q, want %q", tt.max, got, tt.want)
			}
		})
	}
}

func TestMessageCloneStabilizesStream(t *testing.T) {
	msg := NewAssistantPlaceholder()
	msg.AppendFragment("partial")

	snap := msg.Clone()
	msg.AppendFragment(" more")

	if snap.Content != "partial" {
		t.Errorf("snapshot Content = %q, want partial", snap.Content)
	}
	if snap.Streaming() {
		t.Error("snapshot should be finalized")
	}
	if got := msg.DisplayContent(); got != "partial more" {
		t.Errorf("original DisplayContent = %q, want partial more", got)
	}
}

// =============================================================================
// SESSION TESTS
// =============================================================================

func TestNewSessionDefaults(t *testing.T) {
	s := NewSession("abc-123")

	if s.ID != "abc-123" {
		t.Errorf("ID = %q, want abc-123", s.ID)
	}
	if s.Name != DefaultSessionName {
		t.Errorf("Name = %q, want %q", s.Name, DefaultSessionName)
	}
	if !s.IsEmpty() {
		t.Error("new session should be empty")
	}
	if s.IsGenerating() {
		t.Error("new session should not be generating")
	}
}

func TestSessionExchangeLifecycle(t *testing.T) {
	s := NewSession("s1")

	user := s.AddUserMessage("what is Go?")
	placeholder := s.AddAssistantPlaceholder()

	if s.MessageCount() != 2 {
		t.Fatalf("MessageCount = %d, want 2", s.MessageCount())
	}
	if !s.IsGenerating() {
		t.Error("session with placeholder should report generating")
	}

	if !s.AppendToLast("Go is ") {
		t.Error("AppendToLast should succeed while streaming")
	}
	if !s.AppendToLast("a language.") {
		t.Error("AppendToLast should succeed while streaming")
	}

	final := s.FinalizeLast()
	if final == nil {
		t.Fatal("FinalizeLast returned nil")
	}
	if final.ID != placeholder.ID {
		t.Error("FinalizeLast should close the placeholder")
	}
	if final.Content != "Go is a language." {
		t.Errorf("final Content = %q", final.Content)
	}
	if s.IsGenerating() {
		t.Error("session should be idle after finalize")
	}
	if s.Messages[0].ID != user.ID {
		t.Error("user message should be first")
	}
}

func TestAppendToLastWithoutPlaceholder(t *testing.T) {
	s := NewSession("s1")
	if s.AppendToLast("stray") {
		t.Error("AppendToLast on empty session should return false")
	}

	s.AddUserMessage("hi")
	if s.AppendToLast("stray") {
		t.Error("AppendToLast on finalized message should return false")
	}
	if s.FinalizeLast() != nil {
		t.Error("FinalizeLast with nothing streaming should return nil")
	}
}

func TestDropTrailingPlaceholder(t *testing.T) {
	s := NewSession("s1")
	s.AddUserMessage("question")
	s.AddAssistantPlaceholder()
	s.AppendToLast("partial answer that failed")

	if !s.DropTrailingPlaceholder() {
		t.Fatal("expected placeholder to be dropped")
	}
	if s.MessageCount() != 1 {
		t.Errorf("MessageCount = %d, want 1", s.MessageCount())
	}
	if s.LastMessage().Role != RoleUser {
		t.Error("user message should remain after drop")
	}

	if s.DropTrailingPlaceholder() {
		t.Error("second drop should report false")
	}
}

func TestPopLastAssistant(t *testing.T) {
	s := NewSession("s1")
	s.AddUserMessage("q")
	s.AddAssistantPlaceholder()
	s.AppendToLast("old answer")
	s.FinalizeLast()

	popped, ok := s.PopLastAssistant()
	if !ok {
		t.Fatal("expected PopLastAssistant to succeed")
	}
	if popped.Content != "old answer" {
		t.Errorf("popped Content = %q", popped.Content)
	}
	if s.MessageCount() != 1 {
		t.Errorf("MessageCount = %d, want 1", s.MessageCount())
	}

	// A streaming placeholder must not be popped as an answer.
	s.AddAssistantPlaceholder()
	if _, ok := s.PopLastAssistant(); ok {
		t.Error("PopLastAssistant should refuse a streaming message")
	}
}

func TestSessionDeriveName(t *testing.T) {
	t.Run("from first user message", func(t *testing.T) {
		s := NewSession("s1")
		s.AddUserMessage("Explain the difference between arrays and slices in Go, with examples")
		got := s.DeriveName()
		if got == DefaultSessionName {
			t.Fatal("expected derived name, got default")
		}
		if runeCount := len([]rune(got)); runeCount > nameMaxRunes {
			t.Errorf("derived name has %d runes, want <= %d", runeCount, nameMaxRunes)
		}
		if !strings.HasPrefix(got, "Explain the difference") {
			t.Errorf("derived name = %q", got)
		}
	})

	t.Run("renamed session kept", func(t *testing.T) {
		s := NewSession("s1")
		s.Name = "My Research"
		s.AddUserMessage("something else entirely")
		if got := s.DeriveName(); got != "My Research" {
			t.Errorf("DeriveName = %q, want My Research", got)
		}
	})

	t.Run("empty session keeps default", func(t *testing.T) {
		s := NewSession("s1")
		if got := s.DeriveName(); got != DefaultSessionName {
			t.Errorf("DeriveName = %q, want default", got)
		}
	})
}

func TestClearMessages(t *testing.T) {
	s := NewSession("s1")
	s.AddUserMessage("one")
	s.AddAssistantPlaceholder()
	s.FinalizeLast()
	s.ClearMessages()

	if !s.IsEmpty() {
		t.Error("ClearMessages should empty the transcript")
	}
	if s.ID != "s1" {
		t.Error("ClearMessages should keep identity")
	}
}

func TestSessionCloneIndependence(t *testing.T) {
	s := NewSession("s1")
	s.Name = "Original"
	s.AddUserMessage("q")
	s.AddAssistantPlaceholder()
	s.AppendToLast("streaming answer")

	snap := s.Clone()

	s.AppendToLast(" grows")
	s.Name = "Changed"

	if snap.Name != "Original" {
		t.Errorf("snapshot Name = %q, want Original", snap.Name)
	}
	if snap.MessageCount() != 2 {
		t.Fatalf("snapshot MessageCount = %d, want 2", snap.MessageCount())
	}
	if got := snap.Messages[1].Content; got != "streaming answer" {
		t.Errorf("snapshot answer = %q, want streaming answer", got)
	}
	if snap.IsGenerating() {
		t.Error("snapshot should not report generating")
	}
	if got := s.LastMessage().DisplayContent(); got != "streaming answer grows" {
		t.Errorf("original kept streaming, got %q", got)
	}
}

func TestSessionConcurrentStreamAndReaders(t *testing.T) {
	s := NewSession("s1")
	s.AddUserMessage("q")
	s.AddAssistantPlaceholder()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			s.AppendToLast("x")
		}
		s.FinalizeLast()
	}()

	// Event-loop style reads while the writer streams. Run under -race.
	for i := 0; i < 500; i++ {
		for _, msg := range s.MessagesSnapshot() {
			_ = msg.Streaming()
			_ = msg.DisplayContent()
		}
		_ = s.Clone()
		_ = s.IsGenerating()
		s.SetModel("m")
		_ = s.DisplayName()
	}
	wg.Wait()

	if got := s.LastMessage().Content; got != strings.Repeat("x", 500) {
		t.Errorf("final content length = %d, want 500", len(got))
	}
}

func TestLastUserMessage(t *testing.T) {
	s := NewSession("s1")
	if s.LastUserMessage() != nil {
		t.Error("empty session should have no last user message")
	}
	s.AddUserMessage("first")
	s.AddAssistantPlaceholder()
	s.FinalizeLast()
	s.AddUserMessage("second")

	if got := s.LastUserMessage().Content; got != "second" {
		t.Errorf("LastUserMessage = %q, want second", got)
	}
	if got := s.FirstUserMessage().Content; got != "first" {
		t.Errorf("FirstUserMessage = %q, want first", got)
	}
}
