// Package domainerrors defines the typed error taxonomy shared by services and
// transports. Services return *Error values; transports translate the Code to
// a status without inspecting messages.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code identifies a class of failure. Codes are stable and appear on the wire.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeValidation   Code = "validation_error"
	CodeInvalidInput Code = "invalid_input"
	CodeInvalidRange Code = "invalid_range"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeTimeout      Code = "timeout"
	CodeRateLimited  Code = "rate_limit_exceeded"
	CodeInternal     Code = "internal_error"

	// CodeFrozen is returned to write paths while the maintenance freeze is held.
	CodeFrozen Code = "maintenance_frozen"

	CodeNoSamplesInWindow           Code = "no_samples_in_window"
	CodeGIBelowHalt                 Code = "gi_below_halt"
	CodeSignatureVerificationFailed Code = "signature_verification_failed"
	CodeProviderUnavailable         Code = "provider_unavailable"
	CodeDispatchTimeout             Code = "dispatch_timeout"
	CodeInvariantViolation          Code = "invariant_violation"
)

// Error is a domain error carrying a Code, a client-safe message and an
// optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error without a cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// From extracts the outermost domain error from a chain.
func From(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Is reports whether any domain error in the chain carries code.
func Is(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// CodeOf returns the code of the outermost domain error, or CodeInternal.
func CodeOf(err error) Code {
	if de, ok := From(err); ok {
		return de.Code
	}
	return CodeInternal
}

// IsRetryable reports whether the failure is transient and may be retried by
// the caller without changing its input.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeNoSamplesInWindow, CodeProviderUnavailable, CodeDispatchTimeout, CodeTimeout, CodeFrozen:
		return true
	default:
		return false
	}
}

// ToHTTPStatus maps a code to the status used by the HTTP transport.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeInvalidInput, CodeInvalidRange:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeSignatureVerificationFailed:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeGIBelowHalt:
		return http.StatusLocked
	case CodeNoSamplesInWindow, CodeFrozen:
		return http.StatusServiceUnavailable
	case CodeProviderUnavailable:
		return http.StatusBadGateway
	case CodeDispatchTimeout, CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
