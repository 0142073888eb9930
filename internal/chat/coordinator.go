// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/jeranaias/ragchat-tui/internal/backend"
	"github.com/jeranaias/ragchat-tui/internal/model"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Streamer is the backend surface the coordinator needs: opening a
// streamed chat response and a streamed regeneration.
type Streamer interface {
	ChatStream(ctx context.Context, req backend.ChatRequest, callback backend.StreamCallback) error
	RegenerateStream(ctx context.Context, sessionID string, callback backend.StreamCallback) error
}

// SessionDirectory is the session-store surface the coordinator needs:
// resolving a session id and persisting a finished turn.
type SessionDirectory interface {
	Get(id string) (*model.Session, bool)
	Persist(ctx context.Context, session *model.Session) error
}

// =============================================================================
// OUTCOMES
// =============================================================================

// SendOutcome reports how a send or regenerate request was admitted.
type SendOutcome int

const (
	// SendAccepted means a Generation was staged and must be Run.
	SendAccepted SendOutcome = iota

	// SendRejectedEmpty means the input was empty after trimming.
	// Refused locally with no network call and no state change.
	SendRejectedEmpty

	// SendRejectedBusy means a generation is already active. The
	// request is dropped silently rather than queued.
	SendRejectedBusy

	// SendRejectedUnknownSession means the session id resolved to
	// nothing in the store.
	SendRejectedUnknownSession

	// SendRejectedNoAssistantTurn means regenerate found no finished
	// assistant message to replace.
	SendRejectedNoAssistantTurn
)

// RunOutcome reports how an accepted generation ended.
type RunOutcome int

const (
	// RunCompleted means the assistant message was committed and the
	// session queued for persistence.
	RunCompleted RunOutcome = iota

	// RunFailed means a transport or backend error was surfaced and
	// nothing was committed to history.
	RunFailed

	// RunCanceled means the user stopped the generation. Partial text
	// already on screen is committed; an empty placeholder is dropped.
	RunCanceled
)

// =============================================================================
// CALLBACKS
// =============================================================================

// Callbacks are invoked from the goroutine running the generation.
// All fields are optional. OnFragment receives the full accumulated
// text after each fragment so observers never have to read the
// still-streaming message themselves.
type Callbacks struct {
	OnFragment  func(sessionID, accumulated string)
	OnCompleted func(sessionID string, message *model.Message, stats *backend.StreamStats)
	OnFailed    func(sessionID string, err error)
	OnCanceled  func(sessionID string, message *model.Message)
	OnSaveError func(sessionID string, err error)
}

// =============================================================================
// GENERATION COORDINATOR
// =============================================================================

// Coordinator owns the send/regenerate lifecycle: admission control,
// transcript staging, streaming, commit or rollback, and persistence.
// Admission and staging happen synchronously in Send so the caller's
// event loop observes the user message and typing placeholder at once;
// the network part runs in Generation.Run on whatever goroutine the
// caller chooses.
type Coordinator struct {
	client    Streamer
	sessions  SessionDirectory
	callbacks Callbacks
	lock      GenerationLock

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// NewCoordinator creates a coordinator over the given backend client
// and session store.
func NewCoordinator(client Streamer, sessions SessionDirectory, callbacks Callbacks) *Coordinator {
	return &Coordinator{
		client:    client,
		sessions:  sessions,
		callbacks: callbacks,
	}
}

// Generating reports whether a generation is currently active.
func (c *Coordinator) Generating() bool {
	return c.lock.Active()
}

// Cancel aborts the in-flight generation, if any. Returns false when
// nothing was running.
func (c *Coordinator) Cancel() bool {
	c.cancelMu.Lock()
	defer c.cancelMu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel()
	return true
}

// Send stages a user turn in the given session. On SendAccepted the
// user message and an assistant placeholder are already appended, and
// the returned Generation holds the lock: the caller must call Run
// (typically on its own goroutine) to stream the response and release
// it. Every rejection leaves the session untouched.
func (c *Coordinator) Send(sessionID, text string, useRetrieval bool) (*Generation, SendOutcome) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, SendRejectedEmpty
	}

	token, ok := c.lock.TryAcquire()
	if !ok {
		return nil, SendRejectedBusy
	}

	session, ok := c.sessions.Get(sessionID)
	if !ok {
		token.Release()
		return nil, SendRejectedUnknownSession
	}

	session.AddUserMessage(trimmed)
	placeholder := session.AddAssistantPlaceholder()
	placeholder.Retrieval = useRetrieval

	gen := &Generation{
		coord:       c,
		token:       token,
		session:     session,
		placeholder: placeholder,
		open: func(ctx context.Context, callback backend.StreamCallback) error {
			return c.client.ChatStream(ctx, backend.ChatRequest{
				Message:   trimmed,
				SessionID: session.ID,
				UseRAG:    useRetrieval,
			}, callback)
		},
	}
	return gen, SendAccepted
}

// Regenerate replaces the session's last assistant message with a
// fresh answer to the same request. The backend replays the stored
// request itself, so the old message is removed locally and a new
// placeholder streams in its place. Like the original answer, a failed
// regeneration leaves an error notice where the message was.
func (c *Coordinator) Regenerate(sessionID string) (*Generation, SendOutcome) {
	token, ok := c.lock.TryAcquire()
	if !ok {
		return nil, SendRejectedBusy
	}

	session, ok := c.sessions.Get(sessionID)
	if !ok {
		token.Release()
		return nil, SendRejectedUnknownSession
	}

	removed, ok := session.PopLastAssistant()
	if !ok {
		token.Release()
		return nil, SendRejectedNoAssistantTurn
	}

	placeholder := session.AddAssistantPlaceholder()
	placeholder.Retrieval = removed.Retrieval

	gen := &Generation{
		coord:       c,
		token:       token,
		session:     session,
		placeholder: placeholder,
		open: func(ctx context.Context, callback backend.StreamCallback) error {
			return c.client.RegenerateStream(ctx, session.ID, callback)
		},
	}
	return gen, SendAccepted
}

// =============================================================================
// GENERATION
// =============================================================================

// Generation is one accepted send or regenerate. It holds the
// generation lock from staging until Run returns.
type Generation struct {
	coord       *Coordinator
	token       *GenerationToken
	session     *model.Session
	placeholder *model.Message
	open        func(ctx context.Context, callback backend.StreamCallback) error
}

// SessionID returns the id of the session this generation streams into.
func (g *Generation) SessionID() string {
	return g.session.ID
}

// Run streams the response to completion and settles the transcript.
// The lock is released on every exit path, including panics in the
// transport. Fragments are applied to the originating session no
// matter which session is active by the time they arrive.
func (g *Generation) Run(ctx context.Context) RunOutcome {
	defer g.token.Release()

	runCtx, cancel := context.WithCancel(ctx)
	g.coord.setCancel(cancel)
	defer func() {
		g.coord.clearCancel()
		cancel()
	}()

	stats := backend.NewStreamStats()
	var fragments, chars int
	var backendErr error

	streamErr := g.open(runCtx, func(event backend.StreamEvent) {
		switch e := event.(type) {
		case backend.ContentFragment:
			if !g.session.AppendToLast(e.Text) {
				return
			}
			if fragments == 0 {
				stats.RecordFirstFragment()
			}
			fragments++
			chars += len(e.Text)
			g.coord.emitFragment(g.session.ID, g.placeholder.DisplayContent())
		case backend.ErrorEvent:
			backendErr = e.Err()
		}
	})

	stats.Finalize(fragments, chars)

	// A backend-reported error outranks the transport status: the
	// stream that carried it ended cleanly.
	genErr := backendErr
	if genErr == nil {
		genErr = streamErr
	}

	switch {
	case genErr == nil && g.placeholder.IsEmpty():
		// Clean end of stream with nothing in it. Nothing is
		// committed on an empty answer.
		g.session.DropTrailingPlaceholder()
		g.coord.emitFailed(g.session.ID, &backend.ClientError{
			Type:    backend.ErrTypeInvalidResponse,
			Message: "backend returned an empty response",
		})
		return RunFailed

	case genErr == nil:
		message := g.session.FinalizeLast()
		g.persist(ctx)
		g.coord.emitCompleted(g.session.ID, message, stats)
		return RunCompleted

	case backend.IsCanceled(genErr):
		if g.placeholder.IsEmpty() {
			g.session.DropTrailingPlaceholder()
			g.coord.emitCanceled(g.session.ID, nil)
			return RunCanceled
		}
		message := g.session.FinalizeLast()
		g.persist(ctx)
		g.coord.emitCanceled(g.session.ID, message)
		return RunCanceled

	default:
		g.session.DropTrailingPlaceholder()
		g.coord.emitFailed(g.session.ID, genErr)
		return RunFailed
	}
}

// persist saves the finished turn. Auto-save failures are reported as
// a notice, never as a generation failure. A session deleted while its
// answer streamed is not resurrected.
func (g *Generation) persist(ctx context.Context) {
	if _, ok := g.coord.sessions.Get(g.session.ID); !ok {
		return
	}
	if err := g.coord.sessions.Persist(ctx, g.session); err != nil {
		g.coord.emitSaveError(g.session.ID, err)
	}
}

// =============================================================================
// CALLBACK PLUMBING
// =============================================================================

func (c *Coordinator) setCancel(cancel context.CancelFunc) {
	c.cancelMu.Lock()
	c.cancel = cancel
	c.cancelMu.Unlock()
}

func (c *Coordinator) clearCancel() {
	c.cancelMu.Lock()
	c.cancel = nil
	c.cancelMu.Unlock()
}

func (c *Coordinator) emitFragment(sessionID, accumulated string) {
	if c.callbacks.OnFragment != nil {
		c.callbacks.OnFragment(sessionID, accumulated)
	}
}

func (c *Coordinator) emitCompleted(sessionID string, message *model.Message, stats *backend.StreamStats) {
	if c.callbacks.OnCompleted != nil {
		c.callbacks.OnCompleted(sessionID, message, stats)
	}
}

func (c *Coordinator) emitFailed(sessionID string, err error) {
	if c.callbacks.OnFailed != nil {
		c.callbacks.OnFailed(sessionID, err)
	}
}

func (c *Coordinator) emitCanceled(sessionID string, message *model.Message) {
	if c.callbacks.OnCanceled != nil {
		c.callbacks.OnCanceled(sessionID, message)
	}
}

func (c *Coordinator) emitSaveError(sessionID string, err error) {
	if c.callbacks.OnSaveError != nil {
		c.callbacks.OnSaveError(sessionID, err)
	}
}
