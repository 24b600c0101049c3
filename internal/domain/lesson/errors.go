package lesson

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package. Typed errors below match them via errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("lesson conflict")
	ErrPersistence = errors.New("persistence failed")
)

// Validation reasons.
const (
	ReasonEmptyStudent   = "empty student"
	ReasonInvalidTime    = "invalid time"
	ReasonEndBeforeStart = "end before start"
)

// ValidationError rejects a form before anything is written.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return "validation failed: " + e.Reason
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConflictError names the existing lesson a candidate collides with.
type ConflictError struct {
	With Lesson
}

func (e *ConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("conflicts with %s at %s", e.With.Title(), e.With.Start.Format("Mon Jan 2 15:04"))
}

// Is matches ErrConflict.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// PersistenceError wraps a failed store write. Op is create, update or delete.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("persistence failed: %s: %v", e.Op, e.Err)
}

// Is matches ErrPersistence.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func (e *PersistenceError) Unwrap() error { return e.Err }

// Reason extracts the validation reason, or "conflict" for conflicts, or "" otherwise.
func Reason(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	if errors.Is(err, ErrConflict) {
		return "conflict"
	}
	return ""
}
