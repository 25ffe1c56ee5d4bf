package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name: "without cause",
			err: &Error{
				Code:    CodeNoAnomaly,
				Message: "nothing flagged",
			},
			expected: "NO_ANOMALY: nothing flagged",
		},
		{
			name: "with cause",
			err: &Error{
				Code:    CodeTargetUnavailable,
				Message: "verification request failed",
				Cause:   errors.New("connection refused"),
			},
			expected: "TARGET_UNAVAILABLE: verification request failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	err := New(CodeInsufficientData, "empty profile", ErrInsufficientData)

	assert.Equal(t, ErrInsufficientData, err.Unwrap())
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestError_Unwrap_NilCause(t *testing.T) {
	err := New(CodeInternalError, "boom", nil)

	assert.Nil(t, err.Unwrap())
}

func TestError_WithDetail(t *testing.T) {
	err := New(CodeNoAnomaly, "nothing flagged", ErrNoAnomaly)

	result := err.WithDetail("baseline", 0.2).WithDetail("threshold", 0.3)

	require.NotNil(t, result.Details)
	assert.Equal(t, 0.2, result.Details["baseline"])
	assert.Equal(t, 0.3, result.Details["threshold"])
	assert.Same(t, err, result)
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   error
		expected bool
	}{
		{"match", ErrNoSamples, ErrNoSamples, true},
		{"no match", ErrNoSamples, ErrInsufficientData, false},
		{"wrapped match", Wrap(ErrTargetUnavailable, "identity 1001"), ErrTargetUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Is(tt.err, tt.target))
		})
	}
}

func TestAs(t *testing.T) {
	var target *Error

	assert.True(t, As(Wrap(New(CodeConfigError, "bad", nil), "load"), &target))
	assert.Equal(t, CodeConfigError, target.Code)

	target = nil
	assert.False(t, As(errors.New("plain"), &target))
}

func TestWrap_NilError(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context message"))
}

func TestStandardErrorsUnique(t *testing.T) {
	standardErrors := []error{
		ErrInvalidCredentials,
		ErrMalformedRequest,
		ErrProvisioning,
		ErrDuplicateIdentity,
		ErrNoSamples,
		ErrInsufficientData,
		ErrNoAnomaly,
		ErrTargetUnavailable,
		ErrUnexpectedResponse,
		ErrConfigInvalid,
		ErrConfigLoadFailed,
	}

	seen := make(map[string]bool)
	for _, err := range standardErrors {
		msg := err.Error()
		assert.False(t, seen[msg], "duplicate error: %s", msg)
		seen[msg] = true
	}
}

func BenchmarkError_Error(b *testing.B) {
	err := New(CodeTargetUnavailable, "request failed", errors.New("timeout"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = err.Error()
	}
}
