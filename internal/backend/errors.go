// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import "errors"

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the backend client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	// ErrTypeUnknown is the zero value for uncategorized failures.
	ErrTypeUnknown ErrorType = iota

	// ErrTypeNotRunning means the backend could not be reached at all.
	ErrTypeNotRunning

	// ErrTypeTimeout means a request exceeded its deadline.
	ErrTypeTimeout

	// ErrTypeCanceled means the caller canceled the request.
	ErrTypeCanceled

	// ErrTypeNotFound means the backend has no such conversation.
	ErrTypeNotFound

	// ErrTypeBackend carries an error the backend itself reported,
	// either as an error stream record or an error JSON body.
	ErrTypeBackend

	// ErrTypeInvalidResponse means the backend answered with something
	// the client could not decode.
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrNotRunning           = &ClientError{Type: ErrTypeNotRunning, Message: "chat backend is not running"}
	ErrTimeout              = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrCanceled             = &ClientError{Type: ErrTypeCanceled, Message: "request canceled"}
	ErrConversationNotFound = &ClientError{Type: ErrTypeNotFound, Message: "conversation not found"}
)

// =============================================================================
// ERROR INSPECTION
// =============================================================================

// IsNotRunning checks if an error indicates the backend is unreachable.
func IsNotRunning(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeNotRunning
	}
	return errors.Is(err, ErrNotRunning)
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeTimeout
	}
	return errors.Is(err, ErrTimeout)
}

// IsCanceled checks if an error came from the caller canceling the
// request. Cancellations are deliberate and are not shown as failures.
func IsCanceled(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeCanceled
	}
	return errors.Is(err, ErrCanceled)
}

// IsNotFound checks if an error means a conversation does not exist.
func IsNotFound(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeNotFound
	}
	return errors.Is(err, ErrConversationNotFound)
}

// IsBackendReported checks if an error was produced by the backend
// itself rather than by transport or decoding.
func IsBackendReported(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeBackend
	}
	return false
}
