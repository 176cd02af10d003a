package store

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a store failure independent of the SQL error text that caused it.
type Kind string

const (
	KindNotFound = Kind("not_found")
	KindConflict = Kind("conflict")
	KindLimit    = Kind("limit")
)

// Error is a store failure the caller can act on. Errors that are not *Error are storage
// faults.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so copies made with WithMessage still match their
// sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// HTTPCode returns the HTTP status a bare store error maps to.
func (e *Error) HTTPCode() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindLimit:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// WithMessage returns a copy with a specific message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Kind: e.Kind, Message: msg, Err: e.Err}
}

// WithCause returns a copy wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Err: err}
}

var (
	ErrNotFound      = &Error{Kind: KindNotFound, Message: "resource not found"}
	ErrAlreadyExists = &Error{Kind: KindConflict, Message: "resource already exists"}

	// ErrLimitReached is returned when a conditional insert finds a per-user quota already met.
	ErrLimitReached = &Error{Kind: KindLimit, Message: "limit reached"}
)
