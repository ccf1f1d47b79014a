package storage

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an insert would give a server a second active match.
	ErrConflict = errors.New("server already has an active match")
)

// PersistenceError wraps a failed round trip to Postgres.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistenceErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// MalformedDataWarning describes a stored JSON column that could not be decoded. It is logged and the
// column falls back to its empty value; it is never returned to callers.
type MalformedDataWarning struct {
	MatchID string
	Column  string
	Err     error
}

func (w MalformedDataWarning) Error() string {
	return fmt.Sprintf("malformed %s for match %s: %v", w.Column, w.MatchID, w.Err)
}
