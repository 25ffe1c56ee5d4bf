// Package errors defines the error taxonomy shared by the verifier service
// and the timing probe.
package errors

import (
	"errors"
	"fmt"
)

// Verifier errors. None of them crosses the network boundary: the HTTP layer
// collapses every one of them into the same rejected response.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMalformedRequest   = errors.New("malformed request")
	ErrProvisioning       = errors.New("credential provisioning failed")
	ErrDuplicateIdentity  = errors.New("identity provisioned twice")
)

// Probe errors.
var (
	// ErrNoSamples is returned when every measurement for one identity failed.
	ErrNoSamples = errors.New("no successful samples")
	// ErrInsufficientData is returned when the timing profile is empty.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrNoAnomaly is returned when the detector flags no identity.
	ErrNoAnomaly = errors.New("no timing anomaly detected")
	// ErrTargetUnavailable wraps transport failures talking to the target.
	ErrTargetUnavailable = errors.New("target unavailable")
	// ErrUnexpectedResponse is returned for a response that is neither the
	// accepted nor the rejected shape.
	ErrUnexpectedResponse = errors.New("unexpected response from target")
)

// Configuration errors.
var (
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrConfigLoadFailed = errors.New("failed to load configuration")
)

// Error codes
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInsufficientData   = "INSUFFICIENT_DATA"
	CodeNoAnomaly          = "NO_ANOMALY"
	CodeTargetUnavailable  = "TARGET_UNAVAILABLE"
	CodeConfigError        = "CONFIG_ERROR"
	CodeInternalError      = "INTERNAL_ERROR"
)

// Error is a structured error carrying a code and optional details.
type Error struct {
	// Code is the error code
	Code string `json:"code"`

	// Message is the error message
	Message string `json:"message"`

	// Details contains additional error details
	Details map[string]any `json:"details,omitempty"`

	// Cause is the underlying error
	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new structured Error.
func New(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join joins errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
