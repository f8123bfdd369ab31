package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrNotFound_Error(t *testing.T) {
	err := &ErrNotFound{Entity: "error report", ID: "12345"}
	assert.Equal(t, "error report not found with ID: 12345", err.Error())
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("limit must be positive")
	assert.Equal(t, "validation error: limit must be positive", err.Error())

	var verr ValidationError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &verr))
	assert.Equal(t, "limit must be positive", verr.Message)
}

func TestConfigurationFault(t *testing.T) {
	byCode := &ConfigurationFault{Code: 9999, Reason: "error code is outside all defined ranges"}
	assert.Equal(t, "configuration fault [code 9999]: error code is outside all defined ranges", byCode.Error())

	byCategory := &ConfigurationFault{Category: "billing", Reason: "no recovery strategy registered for category"}
	assert.Equal(t, "configuration fault [category billing]: no recovery strategy registered for category", byCategory.Error())

	wrapped := fmt.Errorf("startup: %w", byCode)
	assert.ErrorIs(t, wrapped, ErrConfiguration)
	assert.True(t, IsConfigurationFault(wrapped))
	assert.False(t, IsCircuitOpen(wrapped))
	assert.False(t, IsConfigurationFault(errors.New("other")))
}

func TestCircuitOpenFault(t *testing.T) {
	err := &CircuitOpenFault{Code: CodeExternalUnavailable, RetryAfter: 1500*time.Millisecond + 300*time.Microsecond}
	assert.Equal(t, "circuit open for code 5001: retry after 1.5s", err.Error())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.NotErrorIs(t, err, ErrConfiguration)
	assert.True(t, IsCircuitOpen(fmt.Errorf("call failed: %w", err)))
}

func TestFallbackTimeoutFault(t *testing.T) {
	err := &FallbackTimeoutFault{Timeout: 5 * time.Second}
	assert.Equal(t, "fallback timed out after 5s", err.Error())
	assert.ErrorIs(t, err, ErrFallbackTimeout)
	assert.NotErrorIs(t, err, ErrCircuitOpen)
}
