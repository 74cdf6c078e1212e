// Package service holds the booking and event business rules. Services
// depend on small store interfaces and return *Error values whose Kind the
// HTTP layer maps to a status code.
package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified failure with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func validation(msg string) error { return &Error{Kind: KindValidation, Message: msg} }
func notFound(msg string, err error) error {
	return &Error{Kind: KindNotFound, Message: msg, Err: err}
}
func forbidden(msg string) error { return &Error{Kind: KindForbidden, Message: msg} }
func conflict(msg string, err error) error {
	return &Error{Kind: KindConflict, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or KindInternal when err is not a
// service error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message carried by err, or "" when err
// is not a service error.
func MessageOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return ""
}
