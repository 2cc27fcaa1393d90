// Package apperr is the error taxonomy shared by the services and the API.
//
// Every error carries a machine-readable Code and a Message that is safe to
// show to a person. Handlers never build messages of their own; they render
// whatever the service returned.
package apperr

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeInvalidInput      Code = "INVALID_INPUT"
	CodeAlreadyInFamily   Code = "ALREADY_IN_FAMILY"
	CodeNotInFamily       Code = "NOT_IN_FAMILY"
	CodeInvalidInviteCode Code = "INVALID_INVITE_CODE"
	CodeAlreadyMember     Code = "ALREADY_MEMBER"
	CodeForbidden         Code = "FORBIDDEN"
	CodeStorage           Code = "STORAGE_ERROR"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeUnauthenticated   Code = "UNAUTHENTICATED"
	CodeMalformedDocument Code = "MALFORMED_DOCUMENT"
)

// HTTPStatus maps a code to the status the API answers with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidInput, CodeInvalidInviteCode:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyInFamily, CodeNotInFamily, CodeAlreadyMember, CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is the domain error type.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Wrapped underlying error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Storage wraps a store failure. The cause stays available to logs through
// Unwrap but never reaches the message shown to users.
func Storage(message string, cause error) *Error {
	return Wrap(CodeStorage, message, cause)
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeStorage for anything unclassified.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeStorage
}

// MessageOf returns the human-readable message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "something went wrong, please try again"
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return errors.Is(err, &Error{Code: code})
}
