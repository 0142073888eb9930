// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// RENDER COALESCER
// =============================================================================

// RenderCoalescer batches fragment deliveries so the transcript is not
// re-rendered for every token. The generation goroutine publishes the
// full accumulated text after each fragment; the Bubble Tea loop polls
// on a tick and repaints only when enough fragments or enough time has
// passed. Because each publish carries the complete text so far, a
// skipped publish loses nothing: the next flush always reflects every
// fragment in order.
type RenderCoalescer struct {
	mu          sync.Mutex
	sessionID   string
	accumulated string
	pending     int
	lastFlush   time.Time

	batchSize int
	interval  time.Duration
}

// NewRenderCoalescer creates a coalescer. batchSize is how many
// fragments force a repaint regardless of timing; interval is the
// minimum spacing between repaints for slow streams.
func NewRenderCoalescer(batchSize int, interval time.Duration) *RenderCoalescer {
	if batchSize <= 0 {
		batchSize = 16
	}
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	return &RenderCoalescer{
		batchSize: batchSize,
		interval:  interval,
		lastFlush: time.Now(),
	}
}

// Put records the latest accumulated text for a session. Called from
// the generation goroutine.
func (c *RenderCoalescer) Put(sessionID, accumulated string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = sessionID
	c.accumulated = accumulated
	c.pending++
}

// Flush returns the pending text when a repaint is due. Called from
// the Bubble Tea loop on each stream tick.
func (c *RenderCoalescer) Flush() (sessionID, text string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == 0 {
		return "", "", false
	}
	if c.pending < c.batchSize && time.Since(c.lastFlush) < c.interval {
		return "", "", false
	}
	return c.flushLocked()
}

// ForceFlush returns any pending text regardless of thresholds. Called
// when a generation settles so the final repaint reflects the full
// text.
func (c *RenderCoalescer) ForceFlush() (sessionID, text string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == 0 {
		return "", "", false
	}
	return c.flushLocked()
}

func (c *RenderCoalescer) flushLocked() (string, string, bool) {
	c.pending = 0
	c.lastFlush = time.Now()
	return c.sessionID, c.accumulated, true
}

// Reset discards pending state. Used when a new generation starts.
func (c *RenderCoalescer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = ""
	c.accumulated = ""
	c.pending = 0
	c.lastFlush = time.Now()
}

// Pending returns how many publishes are waiting for a flush.
func (c *RenderCoalescer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// =============================================================================
// STREAM TICK
// =============================================================================

// streamTickCmd schedules the next coalesced repaint check.
func streamTickCmd(interval time.Duration) tea.Cmd {
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return streamTickMsg(t)
	})
}
