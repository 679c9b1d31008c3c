// Package derrors defines the coded domain errors shared across services and
// transport. Services create these at the point where an infrastructure fact or
// a rule violation becomes a caller-visible outcome; handlers translate codes
// to HTTP statuses without inspecting messages.
package derrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for callers and the transport layer.
type Code string

const (
	// CodeInvalidInput marks malformed or missing input fields. Recoverable by
	// the caller, never retried automatically.
	CodeInvalidInput Code = "invalid_input"
	// CodeNotFound marks a referenced claim or patient that does not exist.
	CodeNotFound Code = "not_found"
	// CodeForbidden marks a role insufficient for the requested operation.
	CodeForbidden Code = "forbidden"
	// CodeInvalidState marks a status change not permitted from the claim's
	// current state, including the already-processed and finalized cases.
	CodeInvalidState Code = "invalid_state"
	// CodeConflict marks an optimistic-concurrency violation that survived
	// bounded automatic retry.
	CodeConflict Code = "conflict"
	// CodeDependency marks an infrastructure-level failure in the repository,
	// cache, or medical-record lookup.
	CodeDependency Code = "dependency_failure"
	// CodeInternal marks everything else.
	CodeInternal Code = "internal"
)

// Error carries a code alongside a human-readable message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, message string, err error) error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the message from err, defaulting to a generic one so raw
// infrastructure detail never leaks through transport.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a code to the HTTP status the transport layer should emit.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeInvalidState:
		return http.StatusUnprocessableEntity
	case CodeConflict:
		return http.StatusConflict
	case CodeDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
