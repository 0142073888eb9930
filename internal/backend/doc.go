// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the local RAG chat
// backend.
//
// The backend exposes a small JSON API plus a streaming chat endpoint
// that answers with framed records, one JSON object per "data: " line.
// This package owns the wire types, the stream decoder that turns raw
// response bytes into a closed set of events (content fragments and
// backend-reported errors), and a thread-safe Client covering every
// endpoint: chat, regenerate, conversation CRUD, model switching, and
// retrieval status.
//
// Transport failures, backend-reported errors, and undecodable
// responses are distinguished through ClientError types so callers can
// decide what to surface and what to retry.
package backend
