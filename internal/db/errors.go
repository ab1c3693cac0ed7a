package db

import (
	"errors"
	"fmt"
)

// Sentinel errors for store operations.
var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrKeyExists     = errors.New("db: key already exists")
	ErrTokenMismatch = errors.New("db: version token mismatch")
)

// Op constants name store operations for error context.
const (
	OpGet            = "get"
	OpMultiGet       = "multi-get"
	OpSearch         = "search"
	OpCreate         = "create"
	OpWrite          = "write"
	OpDelete         = "delete"
	OpDeleteByFilter = "delete-by-filter"
	OpPing           = "ping"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// TokenMismatchError wraps ErrTokenMismatch with the token currently stored,
// so callers can re-read and retry against fresh state.
type TokenMismatchError struct {
	Current Token
}

func (e *TokenMismatchError) Error() string {
	return fmt.Sprintf("%s: current is %d-%d", ErrTokenMismatch.Error(), e.Current.Seq, e.Current.Term)
}

func (e *TokenMismatchError) Unwrap() error { return ErrTokenMismatch }

// NewTokenMismatch creates a token mismatch error carrying the stored token.
func NewTokenMismatch(current Token) error {
	return &TokenMismatchError{Current: current}
}
