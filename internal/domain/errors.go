package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals an absent resource, or one the actor may not see.
	// Visibility denials use the same error so existence never leaks.
	ErrNotFound = errors.New("not found")
	// ErrForbidden signals a visible resource the actor may not act on.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict signals an optimistic-concurrency conflict.
	ErrConflict = errors.New("conflict")
	// ErrStateMismatch signals a workflow action whose declared from-state
	// does not match the study's current status.
	ErrStateMismatch = errors.New("state mismatch")
	// ErrValidation signals malformed input, rejected before any store call.
	ErrValidation = errors.New("validation failed")
	// ErrUpstream signals a store failure or malformed store response.
	ErrUpstream = errors.New("upstream store error")
)

// TokenConflictError wraps ErrConflict with the token currently stored so
// callers can re-read fresh state and retry. The engine itself never
// retries: a retry must re-validate business rules first.
type TokenConflictError struct {
	Current Token
}

func (e *TokenConflictError) Error() string {
	return fmt.Sprintf("%s: current token is %s", ErrConflict.Error(), e.Current)
}

func (e *TokenConflictError) Unwrap() error { return ErrConflict }

// NewTokenConflict creates a conflict error carrying the stored token.
func NewTokenConflict(current Token) error {
	return &TokenConflictError{Current: current}
}

// StateMismatchError reports the expected and actual study status for a
// rejected workflow action.
type StateMismatchError struct {
	Action string
	Want   Status
	Got    Status
}

func (e *StateMismatchError) Error() string {
	return fmt.Sprintf("%s: action %q requires status %q, study is %q",
		ErrStateMismatch.Error(), e.Action, e.Want, e.Got)
}

func (e *StateMismatchError) Unwrap() error { return ErrStateMismatch }
