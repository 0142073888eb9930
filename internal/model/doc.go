// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model defines the conversation data structures shared by the
// rest of the client: message roles, streaming-aware messages, and
// sessions (conversations with backend identity and display metadata).
//
// The package has no knowledge of transport or rendering. Assistant
// messages accumulate streamed fragments through an internal builder
// and expose a uniform DisplayContent regardless of stream state, so
// views never care whether a message is finished.
package model
