package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinels usable with errors.Is against the fault types below
var (
	ErrConfiguration   = errors.New("configuration fault")
	ErrCircuitOpen     = errors.New("circuit open")
	ErrFallbackTimeout = errors.New("fallback timeout")
)

// ConfigurationFault is raised for an error code outside all defined ranges
// or a category missing from the strategy table. It is never retried or
// recovered: it indicates a deployment or programming defect.
type ConfigurationFault struct {
	Code     ErrorCode
	Category ErrorCategory
	Reason   string
}

func (e *ConfigurationFault) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("configuration fault [category %s]: %s", e.Category, e.Reason)
	}
	return fmt.Sprintf("configuration fault [code %d]: %s", e.Code, e.Reason)
}

func (e *ConfigurationFault) Is(target error) bool {
	return target == ErrConfiguration
}

// CircuitOpenFault is returned without invoking the operation while the
// breaker for Code is open and its recovery window has not elapsed.
type CircuitOpenFault struct {
	Code       ErrorCode
	RetryAfter time.Duration
}

func (e *CircuitOpenFault) Error() string {
	return fmt.Sprintf("circuit open for code %d: retry after %s", e.Code, e.RetryAfter.Round(time.Millisecond))
}

func (e *CircuitOpenFault) Is(target error) bool {
	return target == ErrCircuitOpen
}

// FallbackTimeoutFault is returned when a fallback handler loses the race
// against its timeout.
type FallbackTimeoutFault struct {
	Timeout time.Duration
}

func (e *FallbackTimeoutFault) Error() string {
	return fmt.Sprintf("fallback timed out after %s", e.Timeout)
}

func (e *FallbackTimeoutFault) Is(target error) bool {
	return target == ErrFallbackTimeout
}

// IsConfigurationFault reports whether err carries a ConfigurationFault
func IsConfigurationFault(err error) bool {
	var fault *ConfigurationFault
	return errors.As(err, &fault)
}

// IsCircuitOpen reports whether err carries a CircuitOpenFault
func IsCircuitOpen(err error) bool {
	var fault *CircuitOpenFault
	return errors.As(err, &fault)
}

// ErrNotFound is returned by repositories for missing entities
type ErrNotFound struct {
	Entity string
	ID     string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found with ID: %s", e.Entity, e.ID)
}

// ValidationError represents an error that occurs due to invalid input or parameters
type ValidationError struct {
	Message string
}

// Error implements the error interface
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a new validation error with the given message
func NewValidationError(message string) error {
	return ValidationError{
		Message: message,
	}
}
