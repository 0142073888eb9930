// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for the ragchat application:
// crash-safe file writes and Unicode-aware string truncation used by the
// session store, the exporter, and the terminal views.
package util
