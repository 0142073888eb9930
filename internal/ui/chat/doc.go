// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the Bubble Tea chat interface: the
// transcript viewport, the multiline input, the session and model
// overlays, and the status bar.
//
// The package is a thin presentation adapter. All conversation state
// lives in the session store, all generation lifecycle in the
// coordinator; this package translates key presses into coordinator
// and store calls and paints whatever state they produce. Events from
// generation goroutines reach the Bubble Tea loop through a channel
// the model drains with a re-armed wait command.
package chat
