package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure by how the run must react to it.
type ErrorKind string

const (
	// ErrorKindValidation is malformed or out-of-range input, detected before any side effect.
	ErrorKindValidation ErrorKind = "VALIDATION"
	// ErrorKindTransient is a single failed git or API call; the run may continue.
	ErrorKindTransient ErrorKind = "TRANSIENT_OPERATION"
	// ErrorKindFatal is a failure whose continuation would corrupt state; the run aborts.
	ErrorKindFatal ErrorKind = "FATAL_SEQUENCE"
	// ErrorKindCleanup is a failure during branch cleanup; it is logged, never escalated.
	ErrorKindCleanup ErrorKind = "CLEANUP"
)

// Error is the application error carried across package boundaries.
type Error struct {
	Kind   ErrorKind
	Op     string
	Result *ExecutionResult
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Op)
	if e.Result != nil && !e.Result.Succeeded {
		msg = fmt.Sprintf("%s: %s", msg, e.Result.Diagnostic())
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError creates a validation error for the named field.
func NewValidationError(field string, err error) *Error {
	return &Error{Kind: ErrorKindValidation, Op: field, Err: err}
}

// NewOperationError creates a transient error from a failed result.
func NewOperationError(op string, res ExecutionResult) *Error {
	return &Error{Kind: ErrorKindTransient, Op: op, Result: &res, Err: res.Err}
}

// NewFatalError creates an error that aborts the whole run.
func NewFatalError(op string, res *ExecutionResult, err error) *Error {
	if err == nil && res != nil {
		err = res.Err
	}
	return &Error{Kind: ErrorKindFatal, Op: op, Result: res, Err: err}
}

// NewCleanupError creates an error raised while cleaning up a lifecycle.
func NewCleanupError(op string, res ExecutionResult) *Error {
	return &Error{Kind: ErrorKindCleanup, Op: op, Result: &res, Err: res.Err}
}

func kindOf(err error) (ErrorKind, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind, true
	}
	return "", false
}

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ErrorKindValidation
}

// IsTransient checks if the error is a transient operation error
func IsTransient(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ErrorKindTransient
}

// IsFatal checks if the error is a fatal sequence error
func IsFatal(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ErrorKindFatal
}

// IsCleanup checks if the error is a cleanup error
func IsCleanup(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ErrorKindCleanup
}
