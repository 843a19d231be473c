package model

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain failure wraps exactly one of them so callers can
// match with errors.Is.
var (
	// ErrNotFound is returned when a referenced event, request or user does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrConditionsNotMet is returned when a transition is attempted from a
	// state that forbids it.
	ErrConditionsNotMet = errors.New("conditions not met")

	// ErrLimitReached is returned when an event has no capacity left.
	ErrLimitReached = errors.New("participant limit reached")

	// ErrIncorrectRequest is returned for structurally invalid input.
	ErrIncorrectRequest = errors.New("incorrect request")
)

// Error is a domain failure tagged with its kind and the operation that
// produced it.
type Error struct {
	Kind error
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Msg
	}
	return e.Op + ": " + e.Msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Errorf builds an *Error of the given kind.
func Errorf(kind error, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}
