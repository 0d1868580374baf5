// Package apperr provides structured error types shared across formcoach.
//
// Per-frame numeric problems never become errors; these types cover
// session-level setup, dispatch and storage failures.
package apperr

import (
	"errors"
	"fmt"
)

// Code categorizes an error.
type Code string

const (
	CodeDetectorStart  Code = "DETECTOR_START"
	CodeDetectorStream Code = "DETECTOR_STREAM"
	CodeDispatchBusy   Code = "DISPATCH_BUSY"
	CodeDispatchFailed Code = "DISPATCH_FAILED"
	CodeStorage        Code = "STORAGE_ERROR"
	CodeValidation     Code = "VALIDATION_ERROR"
	CodeNotFound       Code = "NOT_FOUND"
	CodeConflict       Code = "CONFLICT"
	CodeInternal       Code = "INTERNAL_ERROR"
)

// Error is the structured error type. It supports errors.Is against the
// predefined sentinels by code.
type Error struct {
	Code      Code
	Message   string
	Cause     error
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	return &Error{
		Code:      e.Code,
		Message:   e.Message,
		Cause:     cause,
		Retryable: e.Retryable,
	}
}

// Sentinels for errors.Is checks.
var (
	ErrDetectorStart  = &Error{Code: CodeDetectorStart, Message: "pose detector failed to start"}
	ErrDispatchBusy   = &Error{Code: CodeDispatchBusy, Message: "feedback dispatch busy", Retryable: true}
	ErrDispatchFailed = &Error{Code: CodeDispatchFailed, Message: "feedback dispatch failed", Retryable: true}
	ErrStorage        = &Error{Code: CodeStorage, Message: "storage error", Retryable: true}
	ErrValidation     = &Error{Code: CodeValidation, Message: "validation error"}
	ErrNotFound       = &Error{Code: CodeNotFound, Message: "not found"}
	ErrConflict       = &Error{Code: CodeConflict, Message: "conflict"}
)

// New creates a non-retryable error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap wraps cause with a non-retryable error.
func Wrap(cause error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WrapRetryable wraps cause with a retryable error.
func WrapRetryable(cause error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Cause: cause, Retryable: true}
}

// IsRetryable reports whether any *Error in err's chain is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetCode extracts the code of the first *Error in err's chain.
func GetCode(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
