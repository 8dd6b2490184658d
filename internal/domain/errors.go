package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest signals malformed or out-of-range input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidTransition signals a backwards or sideways job status change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrJobTerminal signals a write to a completed or failed job.
	ErrJobTerminal = errors.New("job is terminal")
	// ErrResultsOverflow signals more results than questions.
	ErrResultsOverflow = errors.New("results exceed questions")

	// ErrTurnLimitExceeded signals the answering loop hit its round-trip cap.
	ErrTurnLimitExceeded = errors.New("turn limit exceeded")
	// ErrProviderError signals an LLM provider failure.
	ErrProviderError = errors.New("llm provider error")
	// ErrProviderUnavailable marks provider failures worth retrying (5xx, network).
	ErrProviderUnavailable = errors.New("llm provider unavailable")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrTokenBudgetExceeded signals an exhausted token budget.
	ErrTokenBudgetExceeded = errors.New("token budget exceeded")

	// ErrSnapshotUnavailable signals that no exported workspace index exists.
	ErrSnapshotUnavailable = errors.New("workspace snapshot unavailable")
	// ErrWorkspaceUnavailable signals the live workspace API is not configured or failing.
	ErrWorkspaceUnavailable = errors.New("workspace unavailable")
)

// ValidationError is an ErrInvalidRequest carrying the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidRequest.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }

// NewValidationError creates an invalid request error for a field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
