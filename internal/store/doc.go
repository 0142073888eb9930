// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store manages chat sessions on the client side: which
// session is active, which are known locally, and when the backend's
// persisted copy gets written.
//
// The backend is the source of truth for saved conversations. The
// store layers client semantics on top: a fresh session always exists,
// loading a missing conversation never disturbs current state, deleting
// the active session immediately replaces it, and sessions get their
// display name derived from the first user message at save time.
package store
