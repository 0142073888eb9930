// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"sync/atomic"
)

// =============================================================================
// GENERATION LOCK
// =============================================================================

// GenerationLock serializes generations. At most one generation may be
// active at a time; a second send while the lock is held is refused
// rather than queued.
//
// TryAcquire returns a token instead of flipping a bare flag so the
// release is tied to a value the holder must carry. Releasing twice is
// harmless, which keeps deferred releases safe on every exit path.
type GenerationLock struct {
	held atomic.Bool
}

// TryAcquire attempts to take the lock. It returns the release token
// and true on success, nil and false when a generation is active.
func (l *GenerationLock) TryAcquire() (*GenerationToken, bool) {
	if !l.held.CompareAndSwap(false, true) {
		return nil, false
	}
	return &GenerationToken{lock: l}, true
}

// Active reports whether a generation currently holds the lock.
func (l *GenerationLock) Active() bool {
	return l.held.Load()
}

// GenerationToken releases the lock it was acquired from. Exactly one
// release takes effect no matter how many times Release is called.
type GenerationToken struct {
	lock *GenerationLock
	once sync.Once
}

// Release returns the lock. Safe to call more than once.
func (t *GenerationToken) Release() {
	t.once.Do(func() {
		t.lock.held.Store(false)
	})
}
