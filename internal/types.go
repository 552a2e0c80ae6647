// internal/types.go - Common types for internal packages
package internal

import (
	"context"
	"errors"
)

// Provider identifies an elevation data provider
type Provider string

const (
	ProviderGPXZ     Provider = "gpxz"
	ProviderUSGS     Provider = "usgs"
	ProviderBaseline Provider = "baseline"
)

// Error represents application-specific errors
type Error struct {
	Code    string
	Message string
	Cause   error
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

// NewError creates a new application error
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrorCode constants for common error types
const (
	ErrorCodeNetwork    = "NETWORK_ERROR"
	ErrorCodeRateLimit  = "RATE_LIMIT_ERROR"
	ErrorCodeValidation = "VALIDATION_ERROR"
	ErrorCodeConfig     = "CONFIG_ERROR"
	ErrorCodeDecode     = "DECODE_ERROR"
	ErrorCodeNotFound   = "NOT_FOUND"
	ErrorCodeTimeout    = "TIMEOUT_ERROR"
	ErrorCodeProvider   = "PROVIDER_ERROR"
	ErrorCodeCanceled   = "CANCELED"
)

// IsCanceled reports whether err represents a user-initiated cancellation.
// Cancellation must never be interpreted as a provider failure: the
// orchestrator checks this before deciding on source fallback. Deadline
// expiry is deliberately excluded; a timed-out provider call is a failure
// to retry or fall back from, not a request to stop.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
