// Package errors provides sentinel errors that can carry a wrapped
// cause, without resorting to fmt.Errorf("%w", err) at the call site.
//
// Sentinels declared with New are comparable with the standard
// errors.Is, and keep their identity when a cause is attached with
// Wrap.
package errors

import (
	stderr "errors"
)

var _ error = New("")

// New creates a sentinel error with a fixed message.
func New(msg string) *Error {
	return &Error{msg: msg}
}

// Error is a sentinel error that may wrap a cause.
type Error struct {
	msg string
	err error
}

// Error yields the sentinel's message.
func (e *Error) Error() string {
	return e.msg
}

// Unwrap yields the wrapped cause, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Wrap attaches a cause to the sentinel and returns the result.
//
// Wrap copies the sentinel, so package-level sentinel values stay
// pristine and safe for concurrent use.
func (e *Error) Wrap(err error) *Error {
	return &Error{msg: e.msg, err: err}
}

// Is reports whether target is this sentinel, a copy of it, or its cause.
func (e *Error) Is(target error) bool {
	if e == target {
		return true
	}
	if other, ok := target.(*Error); ok {
		return other.msg == e.msg && other.err == nil
	}
	return false
}

// As is a shortcut to the standard library errors.As.
func As(err error, target interface{}) bool {
	return stderr.As(err, target)
}

// Is is a shortcut to the standard library errors.Is.
func Is(err, target error) bool {
	return stderr.Is(err, target)
}
