// Package errs defines the error-kind taxonomy shared by every manager.
//
// Kinds are values, not exception classes: callers switch on Kind rather than
// on concrete Go types, and every error that crosses a manager boundary is
// wrapped so the operation name and target path survive up to the façade.
package errs

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy shared by every manager.
type Kind string

const (
	InvalidInput    Kind = "invalid_input"
	NotFound        Kind = "not_found"
	Conflict        Kind = "conflict"
	MalformedConfig Kind = "malformed_config"
	TemplateError   Kind = "template_error"
	IOFailure       Kind = "io_failure"
	Cancelled       Kind = "cancelled"
	ProbeFailure    Kind = "probe_failure"
)

// Error is the concrete error type produced by every manager. Op names the
// operation that failed (e.g. "configops.Create"), Target is the file or
// domain the operation was acting on, and Field (optional) names the
// specific input field that failed validation.
type Error struct {
	Kind   Kind
	Op     string
	Target string
	Field  string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Target != "" {
		msg += fmt.Sprintf(" (target=%s)", e.Target)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" (field=%s)", e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error carrying a plain message, no wrapped cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// Newf is New with fmt.Sprintf formatting.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// FieldErr builds an InvalidInput error naming the offending field.
func FieldErr(op, field, msg string) *Error {
	return &Error{Kind: InvalidInput, Op: op, Field: field, Err: errors.New(msg)}
}

// Target builds an error that names the file or domain being operated on.
func Target(kind Kind, op, target string, err error) *Error {
	return &Error{Kind: kind, Op: op, Target: target, Err: err}
}

// Wrap re-tags an arbitrary error with a kind, operation, and target,
// preserving the original as the cause. If err is already an *Error, its own
// Kind and Field are kept (kind is ignored) and it becomes the cause of the
// new Error carrying op and target.
func Wrap(kind Kind, op, target string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Kind: existing.Kind, Op: op, Target: target, Field: existing.Field, Err: existing}
	}
	return &Error{Kind: kind, Op: op, Target: target, Err: err}
}

// Is reports whether the first *Error found in err's chain carries the given
// Kind; *Errors nested deeper in the chain are not consulted.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
