package domain

import (
	"errors"
	"time"
)

var (
	// ErrNotFound means the referenced entry does not exist or is not active.
	ErrNotFound = errors.New("queue item not found")
	// ErrConflictingState means the request contradicts the current queue.
	ErrConflictingState = errors.New("conflicting queue state")
	// ErrNoUpdates means an admin update carried no fields.
	ErrNoUpdates = errors.New("no admin updates were provided")
	// ErrUnsupportedAction means a bulk or control action name is unknown.
	ErrUnsupportedAction = errors.New("unsupported action")
)

// ValidationError rejects caller input. Message is safe to show to clients.
type ValidationError struct {
	Field   string
	Message string
	// Err optionally ties the rejection to a sentinel such as ErrNoUpdates.
	Err error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError returns a *ValidationError.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ConflictError is an ErrConflictingState carrying a client-facing message.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// Is matches ErrConflictingState.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflictingState
}

// NewConflictError returns a *ConflictError.
func NewConflictError(message string) error {
	return &ConflictError{Message: message}
}

// RateLimited is the policy answer for a refused submission.
type RateLimited struct {
	RetryAfterSeconds int
	NextAllowedAt     time.Time
}
