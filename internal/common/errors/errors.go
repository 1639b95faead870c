// Package errors provides the coded error taxonomy shared by the planner
// core, the persistence bridges and the HTTP handlers.
//
// Codes:
//   - VALIDATION: a coordinate payload or attribute does not match the shape kind
//   - NOT_FOUND: an operation referenced a shape or document that does not exist
//   - UNKNOWN_KIND: a registry lookup for an unrecognized shape type
//   - CONFLICT: a persistence write lost against a newer revision
//   - INTERNAL: anything else
//
// Usage:
//
//	err := errors.New(errors.CodeNotFound, "shape %s", id)
//	if errors.Is(err, errors.CodeNotFound) {
//	    // 404
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a machine-readable error code.
type Code string

const (
	CodeValidation  Code = "VALIDATION"
	CodeNotFound    Code = "NOT_FOUND"
	CodeUnknownKind Code = "UNKNOWN_KIND"
	CodeConflict    Code = "CONFLICT"
	CodeInternal    Code = "INTERNAL"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Validation is shorthand for New(CodeValidation, ...).
func Validation(format string, args ...any) *Error {
	return New(CodeValidation, format, args...)
}

// NotFound is shorthand for New(CodeNotFound, ...).
func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, format, args...)
}

// UnknownKind reports a shape type the registry does not know.
func UnknownKind(kind string) *Error {
	return New(CodeUnknownKind, "unknown shape kind %q", kind)
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Errors outside the taxonomy report CodeInternal.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// UserMessage returns the message without the code prefix.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps an error to the status code the handlers answer with.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case CodeValidation, CodeUnknownKind:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
