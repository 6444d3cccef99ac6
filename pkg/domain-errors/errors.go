// Package domainerrors defines the error taxonomy shared by services and
// transports. Every error a service returns carries exactly one Code plus a
// human-readable message; stores return sentinel facts that services translate.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code is a stable, machine-readable error kind.
type Code string

const (
	// Registry taxonomy.
	CodeStorageUnavailable   Code = "storage_unavailable"
	CodeUnsupportedSubDomain Code = "unsupported_sub_domain"
	CodeEncodingOverflow     Code = "encoding_overflow"
	CodeCalculationFailed    Code = "calculation_failed"
	CodeNoChange             Code = "no_change"
	CodeStaleStatus          Code = "stale_status"
	CodeInvalidTransition    Code = "invalid_transition"

	// General purpose.
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeInvariantViolation Code = "invariant_violation"
	CodeUnauthorized       Code = "unauthorized"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
)

// Error is a coded domain error. Err, when set, is the underlying cause and is
// never shown to API clients.
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

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error without a cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
// Wrapping a nil error returns nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether the outermost coded error in the chain has code.
func HasCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// Is is an alias of HasCode kept for handler readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of the outermost coded error in the chain.
func CodeOf(err error) (Code, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

// Message returns the client-safe message of a coded error, or a generic one.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a code to the HTTP status used by handlers.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeInvalidInput, CodeNoChange, CodeUnsupportedSubDomain:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeStaleStatus:
		return http.StatusConflict
	case CodeInvalidTransition, CodeEncodingOverflow, CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case CodeCalculationFailed:
		return http.StatusBadGateway
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
