// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"time"

	"github.com/jeranaias/ragchat-tui/internal/model"
)

// =============================================================================
// CHAT TYPES
// =============================================================================

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	// Message is the user's message text.
	Message string `json:"message"`

	// SessionID identifies the conversation on the backend.
	SessionID string `json:"session_id"`

	// UseRAG asks the backend to augment the answer with document
	// retrieval.
	UseRAG bool `json:"use_rag"`
}

// RegenerateRequest is the body of POST /regenerate. The backend
// remembers the last request per session and replays it.
type RegenerateRequest struct {
	SessionID string `json:"session_id"`
}

// ClearRequest is the body of POST /clear.
type ClearRequest struct {
	SessionID string `json:"session_id"`
}

// statusResponse is the generic {"status": "ok"} acknowledgement the
// backend returns for mutations.
type statusResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Error  string `json:"error,omitempty"`
}

// apiError is the generic error body attached to non-200 responses.
type apiError struct {
	Error string `json:"error"`
}

// =============================================================================
// MODEL TYPES
// =============================================================================

// ModelInfo describes one model the backend can serve.
type ModelInfo struct {
	// Name is the model identifier used in switch requests.
	Name string `json:"name"`

	// Size is the model size in bytes.
	Size int64 `json:"size"`

	// ModifiedAt is the backend-reported modification timestamp.
	ModifiedAt string `json:"modified_at"`

	// Digest is the truncated content digest.
	Digest string `json:"digest"`
}

// ModelsResponse is the body of GET /models.
type ModelsResponse struct {
	Models       []ModelInfo `json:"models"`
	CurrentModel string      `json:"current_model"`

	// Error is set when the backend could not reach its model runner.
	Error string `json:"error,omitempty"`
}

// SwitchModelRequest is the body of POST /switch_model.
type SwitchModelRequest struct {
	Model string `json:"model"`
}

// SwitchModelResponse is the body returned by POST /switch_model. The
// backend answers 200 even when the switch fails, reporting the
// failure in Error and the still-active model in CurrentModel.
type SwitchModelResponse struct {
	Status       string `json:"status"`
	CurrentModel string `json:"current_model"`
	Error        string `json:"error,omitempty"`
}

// =============================================================================
// RETRIEVAL TYPES
// =============================================================================

// RAGStatus is the body of GET /rag_status.
type RAGStatus struct {
	// Loaded reports whether a document index is loaded.
	Loaded bool `json:"loaded"`

	// ChunkCount is the number of indexed document chunks.
	ChunkCount int `json:"chunk_count"`

	// CollectionName identifies the loaded index, if any.
	CollectionName string `json:"collection_name,omitempty"`
}

// RAGSource is one citation from the last retrieval-augmented answer.
type RAGSource struct {
	CitationID  int     `json:"citation_id"`
	Source      string  `json:"source"`
	ChunkIndex  int     `json:"chunk_index"`
	FileType    string  `json:"file_type"`
	Score       float64 `json:"score"`
	TextPreview string  `json:"text_preview"`
}

// RAGSourcesResponse is the body of GET /rag_sources.
type RAGSourcesResponse struct {
	SessionID string      `json:"session_id"`
	Sources   []RAGSource `json:"sources"`
	Count     int         `json:"count"`
}

// =============================================================================
// CONVERSATION TYPES
// =============================================================================

// WireMessage is the role/content pair the backend stores per message.
type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationSummary is one entry in the GET /conversations listing.
type ConversationSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	Model        string `json:"model"`
	MessageCount int    `json:"message_count"`
}

// UpdatedTime parses the summary's updated_at stamp for sorting.
// Unparsable stamps sort as the zero time.
func (s ConversationSummary) UpdatedTime() time.Time {
	return parseBackendTime(s.UpdatedAt)
}

// ConversationDoc is the full document returned by
// GET /conversations/{id}.
type ConversationDoc struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at"`
	Model     string        `json:"model"`
	Messages  []WireMessage `json:"messages"`
}

// SaveConversationRequest is the body of POST /conversations/{id}.
type SaveConversationRequest struct {
	Name     string        `json:"name"`
	Model    string        `json:"model"`
	Messages []WireMessage `json:"messages"`
}

// RenameConversationRequest is the body of
// POST /conversations/{id}/rename.
type RenameConversationRequest struct {
	Name string `json:"name"`
}

// ConversationsResponse is the body of GET /conversations.
type ConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
}

// =============================================================================
// MODEL CONVERSIONS
// =============================================================================

// ToSession converts a backend conversation document into a session.
// Messages with roles the client does not know are skipped rather
// than failing the whole load.
func (d *ConversationDoc) ToSession() *model.Session {
	s := model.NewSession(d.ID)
	if d.Name != "" {
		s.Name = d.Name
	}
	s.Model = d.Model
	if t := parseBackendTime(d.CreatedAt); !t.IsZero() {
		s.CreatedAt = t
	}

	for _, wm := range d.Messages {
		role, err := model.ParseRole(wm.Role)
		if err != nil {
			continue
		}
		switch role {
		case model.RoleUser:
			s.AddUserMessage(wm.Content)
		case model.RoleAssistant:
			msg := model.NewAssistantMessage(wm.Content)
			s.Messages = append(s.Messages, msg)
		}
	}

	if t := parseBackendTime(d.UpdatedAt); !t.IsZero() {
		s.UpdatedAt = t
	}
	return s
}

// SessionToWire converts a session transcript into the wire form the
// backend persists. Streaming placeholders are excluded; only settled
// content belongs in a saved conversation.
func SessionToWire(s *model.Session) []WireMessage {
	msgs := s.MessagesSnapshot()
	wire := make([]WireMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Streaming() || msg.IsEmpty() {
			continue
		}
		wire = append(wire, WireMessage{
			Role:    msg.Role.String(),
			Content: msg.Content,
		})
	}
	return wire
}

// parseBackendTime handles the backend's timestamp formats. The
// backend writes naive ISO 8601 stamps without a timezone, so RFC3339
// alone does not cover them.
func parseBackendTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
