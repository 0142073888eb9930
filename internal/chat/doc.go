// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat coordinates message generation against the backend.
//
// The Coordinator admits at most one generation at a time through an
// explicit lock whose release token travels with the generation, so
// the lock cannot leak on any exit path. Send and Regenerate stage the
// transcript synchronously on the caller's goroutine and hand back a
// Generation; Run does the streaming and settles the transcript:
// commit and persist on success, placeholder rollback plus an error
// callback on failure.
//
// A generation is bound to the session it started in. Switching the
// active session mid-stream neither redirects fragments nor blocks;
// the finished answer lands in its originating session.
//
// The package has no UI dependencies. The terminal UI adapts callback
// invocations into its own message loop, and the line-mode client
// calls Run inline.
package chat
