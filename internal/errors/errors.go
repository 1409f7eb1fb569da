// Package errors implements the fixed error taxonomy of the engine: every
// failure the core produces carries one of a small set of stable codes
// suitable for machine matching by the client.
package errors

import (
	"fmt"
	"time"
)

// Code is one of the fixed error kinds the engine can report.
type Code string

const (
	Validation        Code = "Validation"
	CircularDependency Code = "CircularDependency"
	NotFound           Code = "NotFound"
	PermissionDenied   Code = "PermissionDenied"
	OutOfWorkspace     Code = "OutOfWorkspace"
	Conflict           Code = "Conflict"
	ParseError         Code = "ParseError"
	Transaction        Code = "Transaction"
	Timeout            Code = "Timeout"
	Cancelled          Code = "Cancelled"
	Io                 Code = "Io"
	Internal           Code = "Internal"
)

// Error is the single structured error type the engine raises. It wraps an
// underlying cause and carries enough context to render the error envelope
// of the response shape.
type Error struct {
	Code       Code
	Op         string
	Path       string
	Underlying error
	Timestamp  time.Time
	Details    map[string]interface{}
}

// New creates an Error with the given code and operation context.
func New(code Code, op string, err error) *Error {
	return &Error{
		Code:      code,
		Op:        op,
		Underlying: err,
		Timestamp: time.Now(),
	}
}

// WithPath attaches the file path relevant to the error.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithDetails attaches structured machine-readable context.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s failed for %s: %v", e.Code, e.Op, e.Path, e.Underlying)
	}
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s failed: %v", e.Code, e.Op, e.Underlying)
	}
	return fmt.Sprintf("%s: %s failed", e.Code, e.Op)
}

// Unwrap supports errors.Is/errors.As against the underlying cause.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is allows errors.Is(err, &Error{Code: X}) style matching on code alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// CodeOf extracts the Code from err, defaulting to Internal when err is not
// one of ours — every unexpected error still renders a valid envelope.
func CodeOf(err error) Code {
	var e *Error
	if As(err, &e) {
		return e.Code
	}
	return Internal
}

// As walks err's single-error Unwrap chain and reports the first *Error it
// finds. It does not descend into a MultiError's members.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// MultiError aggregates several independent errors, e.g. from undo replay
// where one failed step must not hide the others.
type MultiError struct {
	Errors []error
}

// NewMultiError filters nils and wraps the rest.
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// Error implements the error interface.
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap supports errors.Is/errors.As traversal of every wrapped error.
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// HasErrors reports whether any error was recorded.
func (e *MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}
