// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/jeranaias/ragchat-tui/internal/backend"
	"github.com/jeranaias/ragchat-tui/internal/model"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

// fakeStreamer scripts the transport side of a generation.
type fakeStreamer struct {
	chatCalls  []backend.ChatRequest
	regenCalls []string
	script     func(ctx context.Context, callback backend.StreamCallback) error
}

func (f *fakeStreamer) ChatStream(ctx context.Context, req backend.ChatRequest, callback backend.StreamCallback) error {
	f.chatCalls = append(f.chatCalls, req)
	return f.script(ctx, callback)
}

func (f *fakeStreamer) RegenerateStream(ctx context.Context, sessionID string, callback backend.StreamCallback) error {
	f.regenCalls = append(f.regenCalls, sessionID)
	return f.script(ctx, callback)
}

// fakeDirectory is an in-memory session directory.
type fakeDirectory struct {
	sessions   map[string]*model.Session
	persisted  []string
	persistErr error
}

func newFakeDirectory(sessions ...*model.Session) *fakeDirectory {
	d := &fakeDirectory{sessions: make(map[string]*model.Session)}
	for _, s := range sessions {
		d.sessions[s.ID] = s
	}
	return d
}

func (d *fakeDirectory) Get(id string) (*model.Session, bool) {
	s, ok := d.sessions[id]
	return s, ok
}

func (d *fakeDirectory) Persist(ctx context.Context, session *model.Session) error {
	if d.persistErr != nil {
		return d.persistErr
	}
	d.persisted = append(d.persisted, session.ID)
	return nil
}

// recorder captures callback invocations. Tests run generations on the
// test goroutine (or join them through a channel), so no locking.
type recorder struct {
	fragments []string
	completed []*model.Message
	failed    []error
	canceled  []*model.Message
	saveErrs  []error
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnFragment:  func(_ string, accumulated string) { r.fragments = append(r.fragments, accumulated) },
		OnCompleted: func(_ string, m *model.Message, _ *backend.StreamStats) { r.completed = append(r.completed, m) },
		OnFailed:    func(_ string, err error) { r.failed = append(r.failed, err) },
		OnCanceled:  func(_ string, m *model.Message) { r.canceled = append(r.canceled, m) },
		OnSaveError: func(_ string, err error) { r.saveErrs = append(r.saveErrs, err) },
	}
}

// scriptFragments replays content fragments then ends the stream.
func scriptFragments(texts ...string) func(context.Context, backend.StreamCallback) error {
	return func(_ context.Context, callback backend.StreamCallback) error {
		for _, text := range texts {
			callback(backend.ContentFragment{Text: text})
		}
		return nil
	}
}

func newTestCoordinator(script func(context.Context, backend.StreamCallback) error) (*Coordinator, *fakeStreamer, *fakeDirectory, *model.Session, *recorder) {
	streamer := &fakeStreamer{script: script}
	session := model.NewSession("sess-1")
	dir := newFakeDirectory(session)
	rec := &recorder{}
	coord := NewCoordinator(streamer, dir, rec.callbacks())
	return coord, streamer, dir, session, rec
}

// seedAssistantTurn appends a finished user/assistant exchange.
func seedAssistantTurn(s *model.Session, question, answer string, retrieval bool) {
	s.AddUserMessage(question)
	placeholder := s.AddAssistantPlaceholder()
	placeholder.Retrieval = retrieval
	s.AppendToLast(answer)
	s.FinalizeLast()
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestSend_CommitsAccumulatedText(t *testing.T) {
	coord, streamer, dir, session, rec := newTestCoordinator(scriptFragments("Hello", " world"))

	gen, outcome := coord.Send(session.ID, "hi there", true)
	if outcome != SendAccepted {
		t.Fatalf("outcome = %v, want SendAccepted", outcome)
	}

	// Staging is synchronous: user message and typing placeholder are
	// visible before any network traffic.
	if session.MessageCount() != 2 {
		t.Fatalf("staged message count = %d, want 2", session.MessageCount())
	}
	if len(streamer.chatCalls) != 0 {
		t.Fatal("no request should be issued before Run")
	}
	if !coord.Generating() {
		t.Fatal("lock should be held after acceptance")
	}

	if got := gen.Run(context.Background()); got != RunCompleted {
		t.Fatalf("Run = %v, want RunCompleted", got)
	}

	last := session.LastMessage()
	if last.Role != model.RoleAssistant {
		t.Errorf("last role = %v, want assistant", last.Role)
	}
	if last.Content != "Hello world" {
		t.Errorf("content = %q, want %q", last.Content, "Hello world")
	}
	if !last.Retrieval {
		t.Error("committed message should carry the request's retrieval flag")
	}
	if last.Streaming() {
		t.Error("committed message still marked streaming")
	}

	if len(streamer.chatCalls) != 1 {
		t.Fatalf("chat calls = %d, want 1", len(streamer.chatCalls))
	}
	req := streamer.chatCalls[0]
	if req.Message != "hi there" || req.SessionID != session.ID || !req.UseRAG {
		t.Errorf("request = %+v", req)
	}

	if len(dir.persisted) != 1 || dir.persisted[0] != session.ID {
		t.Errorf("persisted = %v, want [%s]", dir.persisted, session.ID)
	}
	if len(rec.completed) != 1 || rec.completed[0].Content != "Hello world" {
		t.Errorf("completed callbacks = %v", rec.completed)
	}
	if rec.fragments[len(rec.fragments)-1] != "Hello world" {
		t.Errorf("last fragment snapshot = %q", rec.fragments[len(rec.fragments)-1])
	}
	if coord.Generating() {
		t.Error("lock leaked after completion")
	}
}

func TestSend_TrimsInput(t *testing.T) {
	coord, streamer, _, session, _ := newTestCoordinator(scriptFragments("ok"))

	gen, outcome := coord.Send(session.ID, "  question  \n", false)
	if outcome != SendAccepted {
		t.Fatalf("outcome = %v", outcome)
	}
	gen.Run(context.Background())

	if streamer.chatCalls[0].Message != "question" {
		t.Errorf("request message = %q, want trimmed", streamer.chatCalls[0].Message)
	}
	if session.Messages[0].Content != "question" {
		t.Errorf("stored user message = %q, want trimmed", session.Messages[0].Content)
	}
}

func TestSend_RejectsEmptyInput(t *testing.T) {
	coord, streamer, _, session, rec := newTestCoordinator(scriptFragments())

	gen, outcome := coord.Send(session.ID, "   \n\t  ", true)
	if outcome != SendRejectedEmpty || gen != nil {
		t.Fatalf("outcome = %v, gen = %v", outcome, gen)
	}

	if session.MessageCount() != 0 {
		t.Error("rejected send must not touch the session")
	}
	if len(streamer.chatCalls) != 0 {
		t.Error("rejected send must not issue a request")
	}
	if coord.Generating() {
		t.Error("rejected send must not hold the lock")
	}
	if len(rec.failed) != 0 {
		t.Error("validation rejection is silent, not an error callback")
	}
}

func TestSend_RejectsWhileGenerating(t *testing.T) {
	coord, streamer, _, session, _ := newTestCoordinator(scriptFragments("answer"))

	first, outcome := coord.Send(session.ID, "one", false)
	if outcome != SendAccepted {
		t.Fatalf("first send rejected: %v", outcome)
	}

	// Second send while the lock is held: silently dropped, no second
	// user message, no second request.
	if _, outcome := coord.Send(session.ID, "two", false); outcome != SendRejectedBusy {
		t.Fatalf("second send outcome = %v, want SendRejectedBusy", outcome)
	}
	if session.MessageCount() != 2 {
		t.Errorf("message count = %d, want 2 (no second user message)", session.MessageCount())
	}

	first.Run(context.Background())
	if len(streamer.chatCalls) != 1 {
		t.Errorf("chat calls = %d, want 1", len(streamer.chatCalls))
	}

	// Lock is free again after the turn settles.
	if _, outcome := coord.Send(session.ID, "three", false); outcome != SendAccepted {
		t.Errorf("send after completion = %v, want SendAccepted", outcome)
	}
}

func TestSend_UnknownSessionReleasesLock(t *testing.T) {
	coord, _, _, session, _ := newTestCoordinator(scriptFragments("x"))

	if _, outcome := coord.Send("no-such-id", "hello", false); outcome != SendRejectedUnknownSession {
		t.Fatalf("outcome = %v, want SendRejectedUnknownSession", outcome)
	}
	if coord.Generating() {
		t.Fatal("lock leaked on unknown-session rejection")
	}

	if _, outcome := coord.Send(session.ID, "hello", false); outcome != SendAccepted {
		t.Errorf("follow-up send = %v, want SendAccepted", outcome)
	}
}

// =============================================================================
// FAILURE PATH TESTS
// =============================================================================

func TestRun_BackendErrorDropsPlaceholder(t *testing.T) {
	script := func(_ context.Context, callback backend.StreamCallback) error {
		callback(backend.ContentFragment{Text: "partial"})
		callback(backend.ErrorEvent{Message: "model exploded"})
		return nil
	}
	coord, _, dir, session, rec := newTestCoordinator(script)

	gen, _ := coord.Send(session.ID, "hi", false)
	if got := gen.Run(context.Background()); got != RunFailed {
		t.Fatalf("Run = %v, want RunFailed", got)
	}

	// Only the user message survives; nothing was committed.
	if session.MessageCount() != 1 {
		t.Errorf("message count = %d, want 1", session.MessageCount())
	}
	if session.LastMessage().Role != model.RoleUser {
		t.Error("placeholder was not dropped")
	}
	if len(dir.persisted) != 0 {
		t.Error("failed generation must not persist")
	}
	if len(rec.failed) != 1 || !backend.IsBackendReported(rec.failed[0]) {
		t.Errorf("failed callbacks = %v", rec.failed)
	}
	if !strings.Contains(rec.failed[0].Error(), "model exploded") {
		t.Errorf("error text = %q", rec.failed[0].Error())
	}
	if coord.Generating() {
		t.Error("lock leaked on backend error")
	}
}

func TestRun_TransportErrorDropsPlaceholder(t *testing.T) {
	script := func(_ context.Context, _ backend.StreamCallback) error {
		return backend.ErrNotRunning
	}
	coord, _, _, session, rec := newTestCoordinator(script)

	gen, _ := coord.Send(session.ID, "hi", false)
	if got := gen.Run(context.Background()); got != RunFailed {
		t.Fatalf("Run = %v, want RunFailed", got)
	}

	if session.MessageCount() != 1 {
		t.Errorf("message count = %d, want 1", session.MessageCount())
	}
	if len(rec.failed) != 1 || !backend.IsNotRunning(rec.failed[0]) {
		t.Errorf("failed callbacks = %v", rec.failed)
	}
	if coord.Generating() {
		t.Error("lock leaked on transport error")
	}
}

func TestRun_EmptyStreamIsFailure(t *testing.T) {
	coord, _, dir, session, rec := newTestCoordinator(scriptFragments())

	gen, _ := coord.Send(session.ID, "hi", false)
	if got := gen.Run(context.Background()); got != RunFailed {
		t.Fatalf("Run = %v, want RunFailed", got)
	}

	if session.MessageCount() != 1 {
		t.Errorf("message count = %d, want 1", session.MessageCount())
	}
	if len(dir.persisted) != 0 {
		t.Error("empty answer must not persist")
	}
	if len(rec.failed) != 1 || !strings.Contains(rec.failed[0].Error(), "empty response") {
		t.Errorf("failed callbacks = %v", rec.failed)
	}
}

func TestRun_SaveErrorIsNoticeNotFailure(t *testing.T) {
	coord, _, dir, session, rec := newTestCoordinator(scriptFragments("fine"))
	dir.persistErr = &backend.ClientError{Type: backend.ErrTypeNotRunning, Message: "save failed"}

	gen, _ := coord.Send(session.ID, "hi", false)
	if got := gen.Run(context.Background()); got != RunCompleted {
		t.Fatalf("Run = %v, want RunCompleted", got)
	}

	if len(rec.saveErrs) != 1 {
		t.Fatalf("save errors = %v, want 1", rec.saveErrs)
	}
	if len(rec.completed) != 1 {
		t.Error("completion callback missing despite save notice")
	}
	if session.LastMessage().Content != "fine" {
		t.Error("committed message lost")
	}
}

func TestRun_DeletedSessionNotResurrected(t *testing.T) {
	session := model.NewSession("sess-1")
	dir := newFakeDirectory(session)
	rec := &recorder{}

	// The session disappears from the store while the answer streams,
	// as if the user deleted it mid-generation.
	streamer := &fakeStreamer{script: func(_ context.Context, callback backend.StreamCallback) error {
		callback(backend.ContentFragment{Text: "late answer"})
		delete(dir.sessions, session.ID)
		return nil
	}}
	coord := NewCoordinator(streamer, dir, rec.callbacks())

	gen, _ := coord.Send(session.ID, "hi", false)
	if got := gen.Run(context.Background()); got != RunCompleted {
		t.Fatalf("Run = %v, want RunCompleted", got)
	}

	if len(dir.persisted) != 0 {
		t.Error("deleted session was resurrected by auto-save")
	}
	if len(rec.completed) != 1 {
		t.Error("the finished answer still completes in memory")
	}
}

func TestRun_CommitsToOriginSession(t *testing.T) {
	origin := model.NewSession("sess-1")
	other := model.NewSession("sess-2")
	dir := newFakeDirectory(origin, other)
	rec := &recorder{}

	streamer := &fakeStreamer{script: scriptFragments("bound answer")}
	coord := NewCoordinator(streamer, dir, rec.callbacks())

	// The user switches to another session while the answer streams;
	// the result still lands in the session that asked.
	gen, _ := coord.Send(origin.ID, "who asked?", false)
	if gen.SessionID() != origin.ID {
		t.Fatalf("generation bound to %q, want %q", gen.SessionID(), origin.ID)
	}
	if got := gen.Run(context.Background()); got != RunCompleted {
		t.Fatalf("Run = %v, want RunCompleted", got)
	}

	if origin.LastMessage() == nil || origin.LastMessage().Content != "bound answer" {
		t.Error("answer missing from the originating session")
	}
	if len(other.Messages) != 0 {
		t.Errorf("other session gained %d messages", len(other.Messages))
	}
	if len(dir.persisted) != 1 || dir.persisted[0] != origin.ID {
		t.Errorf("persisted sessions = %v, want [%q]", dir.persisted, origin.ID)
	}
}

func TestRun_ConcurrentTranscriptReads(t *testing.T) {
	firstFragment := make(chan struct{})
	script := func(_ context.Context, callback backend.StreamCallback) error {
		for i := 0; i < 200; i++ {
			callback(backend.ContentFragment{Text: "chunk "})
			if i == 0 {
				close(firstFragment)
			}
		}
		return nil
	}
	coord, _, _, session, _ := newTestCoordinator(script)

	gen, outcome := coord.Send(session.ID, "hi", false)
	if outcome != SendAccepted {
		t.Fatalf("Send outcome = %v, want SendAccepted", outcome)
	}

	done := make(chan RunOutcome, 1)
	go func() { done <- gen.Run(context.Background()) }()
	<-firstFragment

	// Mirror what the event loop does while a stream repaints: iterate
	// the transcript, render the in-flight message, snapshot for
	// export. Run under -race.
	for {
		for _, msg := range session.MessagesSnapshot() {
			_ = msg.Streaming()
			_ = msg.DisplayContent()
		}
		_ = session.Clone()
		_ = session.IsGenerating()

		select {
		case got := <-done:
			if got != RunCompleted {
				t.Fatalf("Run = %v, want RunCompleted", got)
			}
			if !strings.HasPrefix(session.LastMessage().Content, "chunk ") {
				t.Error("committed answer missing")
			}
			return
		default:
		}
	}
}

func TestRun_ConcurrentReadsDuringFailureSettle(t *testing.T) {
	firstFragment := make(chan struct{})
	script := func(_ context.Context, callback backend.StreamCallback) error {
		callback(backend.ContentFragment{Text: "partial"})
		close(firstFragment)
		return &backend.ClientError{Type: backend.ErrTypeNotRunning, Message: "gone"}
	}
	coord, _, _, session, rec := newTestCoordinator(script)

	gen, _ := coord.Send(session.ID, "hi", false)
	done := make(chan RunOutcome, 1)
	go func() { done <- gen.Run(context.Background()) }()
	<-firstFragment

	// The failure path truncates the transcript; readers iterating a
	// snapshot must never see a torn slice. Run under -race.
	for {
		msgs := session.MessagesSnapshot()
		for _, msg := range msgs {
			_ = msg.DisplayContent()
		}

		select {
		case got := <-done:
			if got != RunFailed {
				t.Fatalf("Run = %v, want RunFailed", got)
			}
			if len(rec.failed) != 1 {
				t.Fatalf("failures = %d, want 1", len(rec.failed))
			}
			if session.MessageCount() != 1 {
				t.Errorf("messages = %d, want the question alone", session.MessageCount())
			}
			return
		default:
		}
	}
}

// =============================================================================
// CANCELLATION TESTS
// =============================================================================

func TestCancel_PartialTextIsKept(t *testing.T) {
	fragmentSeen := make(chan struct{})
	script := func(ctx context.Context, callback backend.StreamCallback) error {
		callback(backend.ContentFragment{Text: "partial answer"})
		close(fragmentSeen)
		<-ctx.Done()
		return backend.ErrCanceled
	}
	coord, _, dir, session, rec := newTestCoordinator(script)

	gen, _ := coord.Send(session.ID, "hi", false)
	done := make(chan RunOutcome, 1)
	go func() { done <- gen.Run(context.Background()) }()

	<-fragmentSeen
	if !coord.Cancel() {
		t.Fatal("Cancel found nothing to cancel")
	}

	if got := <-done; got != RunCanceled {
		t.Fatalf("Run = %v, want RunCanceled", got)
	}

	last := session.LastMessage()
	if last.Content != "partial answer" {
		t.Errorf("kept content = %q, want the partial text", last.Content)
	}
	if len(dir.persisted) != 1 {
		t.Error("kept partial turn should persist")
	}
	if len(rec.canceled) != 1 || rec.canceled[0] == nil {
		t.Errorf("canceled callbacks = %v", rec.canceled)
	}
	if coord.Generating() {
		t.Error("lock leaked after cancel")
	}
}

func TestCancel_EmptyPlaceholderIsDropped(t *testing.T) {
	started := make(chan struct{})
	script := func(ctx context.Context, _ backend.StreamCallback) error {
		close(started)
		<-ctx.Done()
		return backend.ErrCanceled
	}
	coord, _, dir, session, rec := newTestCoordinator(script)

	gen, _ := coord.Send(session.ID, "hi", false)
	done := make(chan RunOutcome, 1)
	go func() { done <- gen.Run(context.Background()) }()

	<-started
	coord.Cancel()

	if got := <-done; got != RunCanceled {
		t.Fatalf("Run = %v, want RunCanceled", got)
	}

	if session.MessageCount() != 1 {
		t.Errorf("message count = %d, want 1 (placeholder dropped)", session.MessageCount())
	}
	if len(dir.persisted) != 0 {
		t.Error("nothing to persist when nothing was kept")
	}
	if len(rec.canceled) != 1 || rec.canceled[0] != nil {
		t.Errorf("canceled callbacks = %v, want one nil entry", rec.canceled)
	}
}

func TestCancel_IdleReturnsFalse(t *testing.T) {
	coord, _, _, _, _ := newTestCoordinator(scriptFragments())
	if coord.Cancel() {
		t.Error("Cancel with no generation should return false")
	}
}

// =============================================================================
// REGENERATE TESTS
// =============================================================================

func TestRegenerate_ReplacesLastAssistantTurn(t *testing.T) {
	coord, streamer, dir, session, rec := newTestCoordinator(scriptFragments("better answer"))
	seedAssistantTurn(session, "question", "first answer", true)

	gen, outcome := coord.Regenerate(session.ID)
	if outcome != SendAccepted {
		t.Fatalf("outcome = %v, want SendAccepted", outcome)
	}

	if got := gen.Run(context.Background()); got != RunCompleted {
		t.Fatalf("Run = %v, want RunCompleted", got)
	}

	if session.MessageCount() != 2 {
		t.Fatalf("message count = %d, want 2", session.MessageCount())
	}
	last := session.LastMessage()
	if last.Content != "better answer" {
		t.Errorf("content = %q, want the regenerated text", last.Content)
	}
	if !last.Retrieval {
		t.Error("regenerated turn should inherit the replaced turn's retrieval flag")
	}
	if len(streamer.regenCalls) != 1 || streamer.regenCalls[0] != session.ID {
		t.Errorf("regen calls = %v", streamer.regenCalls)
	}
	if len(streamer.chatCalls) != 0 {
		t.Error("regenerate must not use the chat endpoint")
	}
	if len(dir.persisted) != 1 {
		t.Error("regenerated turn should persist")
	}
	if len(rec.completed) != 1 {
		t.Error("completion callback missing")
	}
}

func TestRegenerate_RejectedWithoutAssistantTurn(t *testing.T) {
	coord, _, _, session, _ := newTestCoordinator(scriptFragments("x"))
	session.AddUserMessage("unanswered")

	if _, outcome := coord.Regenerate(session.ID); outcome != SendRejectedNoAssistantTurn {
		t.Fatalf("outcome = %v, want SendRejectedNoAssistantTurn", outcome)
	}
	if coord.Generating() {
		t.Error("lock leaked on regenerate rejection")
	}
	if session.MessageCount() != 1 {
		t.Error("rejected regenerate must not touch the session")
	}
}

func TestRegenerate_RejectedWhileGenerating(t *testing.T) {
	coord, _, _, session, _ := newTestCoordinator(scriptFragments("x"))
	seedAssistantTurn(session, "q", "a", false)

	gen, _ := coord.Send(session.ID, "next", false)
	if _, outcome := coord.Regenerate(session.ID); outcome != SendRejectedBusy {
		t.Errorf("outcome = %v, want SendRejectedBusy", outcome)
	}
	gen.Run(context.Background())
}

func TestRegenerate_FailureLeavesQuestionUnanswered(t *testing.T) {
	script := func(_ context.Context, _ backend.StreamCallback) error {
		return backend.ErrNotRunning
	}
	coord, _, _, session, rec := newTestCoordinator(script)
	seedAssistantTurn(session, "question", "old answer", false)

	gen, _ := coord.Regenerate(session.ID)
	if got := gen.Run(context.Background()); got != RunFailed {
		t.Fatalf("Run = %v, want RunFailed", got)
	}

	// The replaced answer is gone and the retry failed, matching the
	// behavior of the web client this talks to.
	if session.MessageCount() != 1 {
		t.Errorf("message count = %d, want 1", session.MessageCount())
	}
	if session.LastMessage().Role != model.RoleUser {
		t.Error("expected only the user question to remain")
	}
	if len(rec.failed) != 1 {
		t.Errorf("failed callbacks = %v", rec.failed)
	}
	if coord.Generating() {
		t.Error("lock leaked on regenerate failure")
	}
}
