// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role identifies the author of a message. It is a closed set: every
// message in a conversation is authored by either the user or the
// assistant. Code that switches on Role should handle both values and
// treat anything else as a programming error.
type Role uint8

const (
	// RoleUser marks a message typed by the human.
	RoleUser Role = iota

	// RoleAssistant marks a message produced by the backend.
	RoleAssistant
)

// roleWire maps Role values to their JSON wire strings. The backend
// stores and returns these exact strings, so they must never change.
var roleWire = map[Role]string{
	RoleUser:      "user",
	RoleAssistant: "assistant",
}

// String returns the wire string for the role ("user" or "assistant").
func (r Role) String() string {
	if s, ok := roleWire[r]; ok {
		return s
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// DisplayName returns a human-friendly label for UI rendering.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return "Unknown"
	}
}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	_, ok := roleWire[r]
	return ok
}

// ParseRole converts a wire string into a Role. Unknown strings are
// rejected rather than coerced, so corrupt or future payloads surface
// as errors instead of silently misattributed messages.
func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "assistant":
		return RoleAssistant, nil
	default:
		return 0, fmt.Errorf("unknown message role %q", s)
	}
}

// MarshalJSON encodes the role as its wire string.
func (r Role) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid role %d", uint8(r))
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a wire string into a Role, rejecting unknowns.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("role must be a JSON string: %w", err)
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
