// Package apierr defines the structured failures surfaced to query layer callers.
package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure
type Kind string

const (
	KindInvalidTime     Kind = "InvalidTime"
	KindInvalidRange    Kind = "InvalidRange"
	KindNotFound        Kind = "NotFound"
	KindUnavailable     Kind = "Unavailable"
	KindValidationError Kind = "ValidationError"
	KindInvalidParams   Kind = "InvalidParams"
	KindInternal        Kind = "Internal"
)

// Error carries a kind and a human-readable message
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error of the same kind, so errors.Is(err, apierr.NotFound("")) works
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func InvalidTime(format string, args ...interface{}) *Error {
	return newError(KindInvalidTime, format, args...)
}

func InvalidRange(format string, args ...interface{}) *Error {
	return newError(KindInvalidRange, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

func Unavailable(format string, args ...interface{}) *Error {
	return newError(KindUnavailable, format, args...)
}

func InvalidParams(format string, args ...interface{}) *Error {
	return newError(KindInvalidParams, format, args...)
}

// Validation wraps the reason an item was rejected
func Validation(cause error) *Error {
	return &Error{Kind: KindValidationError, Message: cause.Error(), cause: cause}
}

// Internal wraps an unexpected failure
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: cause.Error(), cause: cause}
}

// KindOf reports the kind of err, Internal for errors of foreign origin
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
