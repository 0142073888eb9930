// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL is the chat backend base URL (default: http://127.0.0.1:5000)
	// Note: Uses explicit IPv4 address instead of localhost to avoid IPv6 resolution issues on Windows
	BaseURL string

	// Timeout for non-streaming requests (default: 30s)
	Timeout time.Duration

	// StatusInterval is the minimum spacing between live status polls.
	// Polls inside the window are answered from cache (default: 2s).
	StatusInterval time.Duration

	// MaxRetries is how many times idempotent (GET) requests are retried
	// after a transport failure. Zero disables retries.
	MaxRetries int
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:        "http://127.0.0.1:5000",
		Timeout:        30 * time.Second,
		StatusInterval: 2 * time.Second,
		MaxRetries:     2,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the chat backend.
// It provides methods for streaming chat, conversation management,
// model switching, and retrieval status.
//
// The Client is thread-safe for concurrent use.
//
// Example:
//
//	client := backend.NewClient()
//	if err := client.Ping(ctx); err != nil {
//	    log.Fatal("backend not available:", err)
//	}
//	err := client.ChatStream(ctx, req, func(ev backend.StreamEvent) { ... })
type Client struct {
	config     *ClientConfig
	httpClient *http.Client

	// Status endpoints are polled on a timer by the UI. The limiters
	// keep refresh ticks from turning into a request storm; polls
	// inside the window reuse the last answer.
	statusLimiter *rate.Limiter
	modelsLimiter *rate.Limiter
	cacheMu       sync.Mutex
	cachedStatus  *RAGStatus
	cachedModels  *ModelsResponse
}

// NewClient creates a new backend client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new backend client with custom
// configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:5000"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.StatusInterval == 0 {
		config.StatusInterval = 2 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		statusLimiter: rate.NewLimiter(rate.Every(config.StatusInterval), 1),
		modelsLimiter: rate.NewLimiter(rate.Every(config.StatusInterval), 1),
	}
}

// GetConfig returns the client configuration.
func (c *Client) GetConfig() *ClientConfig {
	return c.config
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// Ping verifies that the backend is reachable. It uses the status
// endpoint because answering it costs the backend nothing.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/rag_status", nil)
	if err != nil {
		return &ClientError{Type: ErrTypeUnknown, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "unexpected status from backend: " + resp.Status,
		}
	}

	return nil
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// ChatStream sends a chat request and calls the callback for each
// decoded stream event. The callback is called synchronously in the
// order events are received. Returns when the stream is complete, the
// backend reports an error event (after delivering it), or the context
// is canceled.
func (c *Client) ChatStream(ctx context.Context, chatReq ChatRequest, callback StreamCallback) error {
	return c.stream(ctx, "/chat", chatReq, callback)
}

// RegenerateStream asks the backend to replay the last request for the
// session and streams the fresh answer. The backend remembers what was
// last asked, so no message text is sent.
func (c *Client) RegenerateStream(ctx context.Context, sessionID string, callback StreamCallback) error {
	return c.stream(ctx, "/regenerate", RegenerateRequest{SessionID: sessionID}, callback)
}

// stream POSTs a request and decodes the framed response stream.
func (c *Client) stream(ctx context.Context, path string, payload any, callback StreamCallback) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &ClientError{Type: ErrTypeUnknown, Message: "failed to marshal request", Cause: err}
	}

	// Use a client without a timeout for streaming. A generation can
	// legitimately run for minutes; the context carries cancellation.
	streamClient := &http.Client{}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return &ClientError{Type: ErrTypeUnknown, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := streamClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.responseError(resp, "stream request failed")
	}

	decoder := NewStreamDecoder(resp.Body)
	if err := decoder.Process(ctx, callback); err != nil {
		return classifyTransportError(err)
	}
	return nil
}

// StreamItem is one delivery on a streaming channel: a decoded event,
// or a transport failure that ended the stream.
type StreamItem struct {
	Event StreamEvent
	Err   error
}

// ChatStreamChan sends a chat request and returns a channel of stream
// items. The channel is closed when streaming completes. Transport
// failures are delivered as the final item with Err set.
func (c *Client) ChatStreamChan(ctx context.Context, chatReq ChatRequest) <-chan StreamItem {
	ch := make(chan StreamItem)

	go func() {
		defer close(ch)

		err := c.ChatStream(ctx, chatReq, func(event StreamEvent) {
			select {
			case ch <- StreamItem{Event: event}:
			case <-ctx.Done():
			}
		})

		if err != nil {
			select {
			case ch <- StreamItem{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return ch
}

// =============================================================================
// CONVERSATION OPERATIONS
// =============================================================================

// ListConversations retrieves summaries of all saved conversations,
// most recently updated first.
func (c *Client) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	var result ConversationsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/conversations", nil, &result); err != nil {
		return nil, err
	}
	return result.Conversations, nil
}

// GetConversation loads one saved conversation in full. Returns
// ErrConversationNotFound if the backend has no conversation with
// this id.
func (c *Client) GetConversation(ctx context.Context, id string) (*ConversationDoc, error) {
	var result ConversationDoc
	if err := c.doJSON(ctx, http.MethodGet, "/conversations/"+id, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SaveConversation creates or updates a saved conversation. The
// backend preserves the original creation stamp on updates.
func (c *Client) SaveConversation(ctx context.Context, id string, save SaveConversationRequest) error {
	var result statusResponse
	return c.doJSON(ctx, http.MethodPost, "/conversations/"+id, save, &result)
}

// DeleteConversation removes a saved conversation. Returns
// ErrConversationNotFound if it does not exist.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	var result statusResponse
	return c.doJSON(ctx, http.MethodDelete, "/conversations/"+id, nil, &result)
}

// RenameConversation changes a conversation's display name. The name
// must be non-blank; the backend rejects empty names.
func (c *Client) RenameConversation(ctx context.Context, id, name string) error {
	if strings.TrimSpace(name) == "" {
		return &ClientError{Type: ErrTypeUnknown, Message: "conversation name cannot be empty"}
	}
	var result statusResponse
	return c.doJSON(ctx, http.MethodPost, "/conversations/"+id+"/rename", RenameConversationRequest{Name: name}, &result)
}

// ClearHistory drops the backend's in-memory context for a session.
// The saved conversation document, if any, is untouched.
func (c *Client) ClearHistory(ctx context.Context, sessionID string) error {
	var result statusResponse
	return c.doJSON(ctx, http.MethodPost, "/clear", ClearRequest{SessionID: sessionID}, &result)
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ListModels retrieves the models the backend can serve plus the one
// currently active. Polls inside the refresh window are answered from
// the last successful response.
func (c *Client) ListModels(ctx context.Context) (*ModelsResponse, error) {
	c.cacheMu.Lock()
	cached := c.cachedModels
	allowed := c.modelsLimiter.Allow()
	c.cacheMu.Unlock()

	if !allowed && cached != nil {
		return cached, nil
	}

	var result ModelsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/models", nil, &result); err != nil {
		return nil, err
	}

	c.cacheMu.Lock()
	c.cachedModels = &result
	c.cacheMu.Unlock()

	return &result, nil
}

// SwitchModel asks the backend to route future generations to a
// different model. The backend answers 200 even on failure, so a
// failed switch is detected from the response body; the returned
// response always carries the model actually active.
func (c *Client) SwitchModel(ctx context.Context, name string) (*SwitchModelResponse, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "no model specified"}
	}

	var result SwitchModelResponse
	if err := c.doJSON(ctx, http.MethodPost, "/switch_model", SwitchModelRequest{Model: name}, &result); err != nil {
		return nil, err
	}

	if result.Error != "" {
		return &result, &ClientError{Type: ErrTypeBackend, Message: result.Error}
	}

	// The active model changed; drop the cached listing.
	c.cacheMu.Lock()
	c.cachedModels = nil
	c.cacheMu.Unlock()

	return &result, nil
}

// =============================================================================
// RETRIEVAL STATUS
// =============================================================================

// GetRAGStatus reports whether the backend has a document index
// loaded. Polls inside the refresh window are answered from the last
// successful response.
func (c *Client) GetRAGStatus(ctx context.Context) (*RAGStatus, error) {
	c.cacheMu.Lock()
	cached := c.cachedStatus
	allowed := c.statusLimiter.Allow()
	c.cacheMu.Unlock()

	if !allowed && cached != nil {
		return cached, nil
	}

	var result RAGStatus
	if err := c.doJSON(ctx, http.MethodGet, "/rag_status", nil, &result); err != nil {
		return nil, err
	}

	c.cacheMu.Lock()
	c.cachedStatus = &result
	c.cacheMu.Unlock()

	return &result, nil
}

// GetRAGSources retrieves the citations behind the last
// retrieval-augmented answer for a session.
func (c *Client) GetRAGSources(ctx context.Context, sessionID string) (*RAGSourcesResponse, error) {
	path := "/rag_sources?session_id=" + sessionID
	var result RAGSourcesResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// doJSON performs one JSON request/response round trip.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var bodyReader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return &ClientError{Type: ErrTypeUnknown, Message: "failed to marshal request", Cause: err}
		}
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bodyReader)
	if err != nil {
		return &ClientError{Type: ErrTypeUnknown, Message: "failed to create request", Cause: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// Only bodyless GETs are retried. Writes may have been applied
	// before the failure, and a consumed body cannot be resent.
	attempts := 1
	if method == http.MethodGet && bodyReader == nil && c.config.MaxRetries > 0 {
		attempts += c.config.MaxRetries
	}

	var resp *http.Response
	for try := 0; ; try++ {
		resp, err = c.httpClient.Do(req)
		if err == nil {
			break
		}
		if try >= attempts-1 || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return classifyTransportError(err)
		}
		select {
		case <-ctx.Done():
			return classifyTransportError(ctx.Err())
		case <-time.After(time.Duration(try+1) * 250 * time.Millisecond):
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		drainAndClose(resp.Body)
		return ErrConversationNotFound
	}

	if resp.StatusCode != http.StatusOK {
		return c.responseError(resp, method+" "+path+" failed")
	}

	if out == nil {
		drainAndClose(resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// responseError turns a non-200 response into a client error,
// preferring the backend's own message when the body carries one.
func (c *Client) responseError(resp *http.Response, fallback string) error {
	var backendErr apiError
	if err := json.NewDecoder(resp.Body).Decode(&backendErr); err == nil && backendErr.Error != "" {
		return &ClientError{
			Type:    ErrTypeBackend,
			Message: backendErr.Error,
		}
	}
	return &ClientError{
		Type:    ErrTypeInvalidResponse,
		Message: fallback + ": " + resp.Status,
	}
}

// classifyTransportError maps low-level request failures onto the
// client error taxonomy.
func classifyTransportError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return ErrCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return &ClientError{Type: ErrTypeNotRunning, Message: "chat backend is not running", Cause: err}
	}
}

// drainAndClose empties and closes a response body so the underlying
// connection can be reused.
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, r)
	r.Close()
}
