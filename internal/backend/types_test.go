// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"testing"

	"github.com/jeranaias/ragchat-tui/internal/model"
)

// =============================================================================
// CONVERSION TESTS
// =============================================================================

func TestConversationDocToSession(t *testing.T) {
	doc := &ConversationDoc{
		ID:        "conv-1",
		Name:      "Slices vs Arrays",
		Model:     "llama3.2",
		CreatedAt: "2025-05-01T09:30:00",
		UpdatedAt: "2025-05-02T10:15:00",
		Messages: []WireMessage{
			{Role: "user", Content: "what is a slice?"},
			{Role: "assistant", Content: "a view over an array"},
			{Role: "tool", Content: "roles the client does not know are skipped"},
			{Role: "user", Content: "thanks"},
		},
	}

	s := doc.ToSession()

	if s.ID != "conv-1" || s.Name != "Slices vs Arrays" || s.Model != "llama3.2" {
		t.Errorf("session header = %+v", s)
	}
	if s.MessageCount() != 3 {
		t.Fatalf("MessageCount = %d, want 3 (unknown role skipped)", s.MessageCount())
	}
	if s.Messages[0].Role != model.RoleUser || s.Messages[1].Role != model.RoleAssistant {
		t.Error("roles mapped incorrectly")
	}
	if s.Messages[1].Streaming() {
		t.Error("restored messages must be finalized")
	}
	if s.CreatedAt.IsZero() || s.UpdatedAt.IsZero() {
		t.Error("timestamps should parse")
	}
	if !s.UpdatedAt.After(s.CreatedAt) {
		t.Error("updated_at should be after created_at")
	}
}

func TestConversationDocToSession_EmptyName(t *testing.T) {
	doc := &ConversationDoc{ID: "conv-2"}
	s := doc.ToSession()
	if s.Name != model.DefaultSessionName {
		t.Errorf("Name = %q, want default", s.Name)
	}
}

func TestSessionToWire(t *testing.T) {
	s := model.NewSession("s1")
	s.AddUserMessage("question")
	s.AddAssistantPlaceholder()
	s.AppendToLast("answer")
	s.FinalizeLast()
	s.AddUserMessage("followup")
	s.AddAssistantPlaceholder() // still streaming, must be excluded

	wire := SessionToWire(s)

	if len(wire) != 3 {
		t.Fatalf("len(wire) = %d, want 3 (placeholder excluded)", len(wire))
	}
	if wire[0].Role != "user" || wire[0].Content != "question" {
		t.Errorf("wire[0] = %+v", wire[0])
	}
	if wire[1].Role != "assistant" || wire[1].Content != "answer" {
		t.Errorf("wire[1] = %+v", wire[1])
	}
}

func TestParseBackendTime(t *testing.T) {
	tests := []struct {
		name  string
		input string
		zero  bool
	}{
		{"naive iso", "2025-05-01T09:30:00", false},
		{"naive iso with micros", "2025-05-01T09:30:00.123456", false},
		{"rfc3339", "2025-05-01T09:30:00Z", false},
		{"empty", "", true},
		{"garbage", "yesterday-ish", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseBackendTime(tt.input)
			if got.IsZero() != tt.zero {
				t.Errorf("parseBackendTime(%q).IsZero() = %v, want %v", tt.input, got.IsZero(), tt.zero)
			}
		})
	}
}
