// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Unified error handling for the ragchat CLI.
//
// Command handlers ALWAYS return errors and never exit themselves;
// main maps them to exit codes through ExitCodeFor.
package cli

import (
	"errors"
	"fmt"

	"github.com/jeranaias/ragchat-tui/internal/backend"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error.
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments.
	ExitUsageError = 2
	// ExitConfigError indicates a configuration error.
	ExitConfigError = 3
	// ExitBackendError indicates the backend was unreachable or failed.
	ExitBackendError = 5
	// ExitNotFoundError indicates a resource was not found.
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out.
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command failure with context.
type CommandError struct {
	Command string // command that failed (e.g. "sessions")
	Action  string // action being performed (e.g. "delete")
	Reason  string // human-readable reason
	Err     error  // underlying error, if any
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents invalid user input.
type ValidationError struct {
	Field   string // field that failed validation
	Value   string // value that was provided
	Reason  string // why it failed
	Example string // example of a valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// ConfigError represents a configuration load or save failure.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error (%s): %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// ExitCodeFor maps an error to a process exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ExitUsageError
	}

	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return ExitConfigError
	}

	switch {
	case backend.IsNotFound(err):
		return ExitNotFoundError
	case backend.IsTimeout(err):
		return ExitTimeoutError
	case backend.IsNotRunning(err):
		return ExitBackendError
	}

	return ExitGeneralError
}

// PrintError writes an error to stderr in the shared error style, with
// a hint when the backend is simply not running.
func PrintError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(errOut(), ErrorStyle.Render("error: ")+err.Error())
	if backend.IsNotRunning(err) {
		fmt.Fprintln(errOut(), DimStyle.Render("hint: start the backend, then check `ragchat status`"))
	}
}
