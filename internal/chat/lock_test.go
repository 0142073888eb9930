// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestGenerationLock_AcquireRelease(t *testing.T) {
	var lock GenerationLock

	if lock.Active() {
		t.Fatal("new lock should be idle")
	}

	token, ok := lock.TryAcquire()
	if !ok || token == nil {
		t.Fatal("first acquire should succeed")
	}
	if !lock.Active() {
		t.Error("lock should be active while held")
	}

	if _, ok := lock.TryAcquire(); ok {
		t.Error("second acquire should fail while held")
	}

	token.Release()
	if lock.Active() {
		t.Error("lock should be idle after release")
	}

	if _, ok := lock.TryAcquire(); !ok {
		t.Error("acquire should succeed after release")
	}
}

func TestGenerationToken_ReleaseIdempotent(t *testing.T) {
	var lock GenerationLock

	first, _ := lock.TryAcquire()
	first.Release()

	second, ok := lock.TryAcquire()
	if !ok {
		t.Fatal("reacquire failed")
	}

	// A stale token released again must not free the new holder's lock.
	first.Release()
	if !lock.Active() {
		t.Error("double release of a stale token freed a held lock")
	}

	second.Release()
	if lock.Active() {
		t.Error("lock should be idle after the holder releases")
	}
}

func TestGenerationLock_SingleWinner(t *testing.T) {
	var lock GenerationLock
	var wins atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := lock.TryAcquire(); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly 1 winner, got %d", wins.Load())
	}
}
