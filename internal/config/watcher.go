// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// CONFIG WATCHER INTERFACE
// =============================================================================

// Watcher is the interface for config file watching implementations
type Watcher interface {
	// Watch starts watching for config changes
	Watch() error

	// Close stops watching and releases resources
	Close() error
}

// activeConfigPath returns the config file the watcher should track,
// following the same precedence Load uses.
func activeConfigPath() string {
	if path := os.Getenv("RAGCHAT_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(ConfigPathTOML()); err == nil {
		return ConfigPathTOML()
	}
	if _, err := os.Stat(ConfigPathJSON()); err == nil {
		return ConfigPathJSON()
	}
	return ConfigPathTOML()
}

// =============================================================================
// FSNOTIFY WATCHER
// =============================================================================

// FsnotifyWatcher implements Watcher using fsnotify
type FsnotifyWatcher struct {
	path     string
	onChange func(*Config)
	watcher  *fsnotify.Watcher
	debounce time.Duration
	mu       sync.Mutex
	pending  time.Time // Zero when no change is waiting
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewFsnotifyWatcher creates a new fsnotify-based config watcher. The
// onChange callback receives the freshly reloaded global config.
func NewFsnotifyWatcher(path string, debounce time.Duration, onChange func(*Config)) (*FsnotifyWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	fw := &FsnotifyWatcher{
		path:     path,
		onChange: onChange,
		watcher:  watcher,
		debounce: debounce,
		ctx:      ctx,
		cancel:   cancel,
	}

	return fw, nil
}

// Watch starts watching for config changes
func (fw *FsnotifyWatcher) Watch() error {
	// Watch the directory rather than the file. Editors and SaveTOML
	// replace the file, which silently drops a watch on the file itself.
	dir := filepath.Dir(fw.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	if err := fw.watcher.Add(dir); err != nil {
		return err
	}

	go fw.processEvents()
	go fw.processPending()

	return nil
}

// processEvents processes file system events
func (fw *FsnotifyWatcher) processEvents() {
	defer func() {
		if r := recover(); r != nil {
			_ = r
		}
	}()

	base := filepath.Base(fw.path)

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				fw.mu.Lock()
				fw.pending = time.Now()
				fw.mu.Unlock()
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			// Non-fatal
			_ = err
		}
	}
}

// processPending fires the reload once changes settle for the debounce window
func (fw *FsnotifyWatcher) processPending() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case <-ticker.C:
			fw.mu.Lock()
			fire := !fw.pending.IsZero() && time.Since(fw.pending) >= fw.debounce
			if fire {
				fw.pending = time.Time{}
			}
			fw.mu.Unlock()

			if fire {
				reloadAndNotify(fw.onChange)
			}
		}
	}
}

// Close stops watching and releases resources
func (fw *FsnotifyWatcher) Close() error {
	fw.cancel()
	if fw.watcher != nil {
		return fw.watcher.Close()
	}
	return nil
}

// =============================================================================
// POLLING WATCHER (FALLBACK)
// =============================================================================

// PollingWatcher implements Watcher using periodic stat polling. Used when
// fsnotify is unavailable, e.g. config on a network filesystem.
type PollingWatcher struct {
	path     string
	onChange func(*Config)
	interval time.Duration
	mu       sync.Mutex
	modTime  time.Time
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewPollingWatcher creates a new polling-based config watcher
func NewPollingWatcher(path string, interval time.Duration, onChange func(*Config)) *PollingWatcher {
	ctx, cancel := context.WithCancel(context.Background())

	return &PollingWatcher{
		path:     path,
		onChange: onChange,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Watch starts watching for config changes
func (pw *PollingWatcher) Watch() error {
	if info, err := os.Stat(pw.path); err == nil {
		pw.mu.Lock()
		pw.modTime = info.ModTime()
		pw.mu.Unlock()
	}

	go pw.poll()

	return nil
}

// poll periodically checks the config file's modification time
func (pw *PollingWatcher) poll() {
	ticker := time.NewTicker(pw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-pw.ctx.Done():
			return

		case <-ticker.C:
			pw.checkChange()
		}
	}
}

// checkChange reloads when the file appeared or its mod time moved
func (pw *PollingWatcher) checkChange() {
	info, err := os.Stat(pw.path)
	if err != nil {
		return
	}

	pw.mu.Lock()
	changed := !info.ModTime().Equal(pw.modTime)
	if changed {
		pw.modTime = info.ModTime()
	}
	pw.mu.Unlock()

	if changed {
		reloadAndNotify(pw.onChange)
	}
}

// Close stops watching
func (pw *PollingWatcher) Close() error {
	pw.cancel()
	return nil
}

// =============================================================================
// WATCHER FACTORY
// =============================================================================

// reloadAndNotify refreshes the global config and invokes the callback.
// A file mid-edit that fails to parse or validate keeps the previous
// config in place.
func reloadAndNotify(onChange func(*Config)) {
	if err := ReloadGlobal(); err != nil {
		return
	}
	if onChange != nil {
		onChange(Global())
	}
}

// StartWatcher watches the active config file and reloads the global
// config when it changes (fsnotify, with a polling fallback).
func StartWatcher(onChange func(*Config)) (Watcher, error) {
	path := activeConfigPath()

	// Try fsnotify first
	fw, err := NewFsnotifyWatcher(path, 500*time.Millisecond, onChange)
	if err == nil {
		if err := fw.Watch(); err == nil {
			return fw, nil
		}
		fw.Close()
	}

	// Fallback to polling
	pw := NewPollingWatcher(path, 2*time.Second, onChange)
	if err := pw.Watch(); err != nil {
		return nil, err
	}
	return pw, nil
}
