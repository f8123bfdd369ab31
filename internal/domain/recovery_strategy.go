package domain

import (
	"context"
	"errors"
	"time"
)

// LogLevel used when a terminal failure of a category is logged
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// RetryPredicate decides whether a failure may be retried
type RetryPredicate func(err error) bool

// RetryPolicy configures the retry executor
type RetryPolicy struct {
	Enabled           bool           `json:"enabled"`
	MaxAttempts       int            `json:"max_attempts"`
	BaseDelay         time.Duration  `json:"base_delay"`
	MaxDelay          time.Duration  `json:"max_delay"`
	BackoffMultiplier float64        `json:"backoff_multiplier"`
	Jitter            bool           `json:"jitter"`
	RetryPredicate    RetryPredicate `json:"-"`
}

// CircuitBreakerPolicy configures a circuit breaker
type CircuitBreakerPolicy struct {
	Enabled          bool          `json:"enabled"`
	FailureThreshold int           `json:"failure_threshold"`
	RecoveryTimeout  time.Duration `json:"recovery_timeout"`
	SuccessThreshold int           `json:"success_threshold"`
	MonitoringPeriod time.Duration `json:"monitoring_period"`
}

// FallbackPolicy enables the fallback path. The handler itself is given per
// call since the strategy table is static.
type FallbackPolicy struct {
	Enabled bool          `json:"enabled"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// RecoveryStrategy is the immutable recovery bundle of a category
type RecoveryStrategy struct {
	Category       ErrorCategory        `json:"category"`
	Retry          RetryPolicy          `json:"retry"`
	CircuitBreaker CircuitBreakerPolicy `json:"circuit_breaker"`
	Fallback       FallbackPolicy       `json:"fallback"`
	AutoRecovery   bool                 `json:"auto_recovery"`
	NotifyUser     bool                 `json:"notify_user"`
	LogLevel       LogLevel             `json:"log_level"`
}

// DefaultRetryPredicate refuses to retry faults raised by the recovery
// engine itself, cancelled contexts, and classified errors whose category is
// not retryable.
func DefaultRetryPredicate(err error) bool {
	if err == nil {
		return false
	}
	if IsCircuitOpen(err) || IsConfigurationFault(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return IsRetryableByDefault(appErr.Category)
	}
	return true
}

var noRetry = RetryPolicy{Enabled: false, MaxAttempts: 1}

var noBreaker = CircuitBreakerPolicy{Enabled: false}

// strategyTable holds one row per category. Adding a category means adding a row.
var strategyTable = [...]RecoveryStrategy{
	{
		Category:       CategoryAuth,
		Retry:          noRetry,
		CircuitBreaker: noBreaker,
		AutoRecovery:   false,
		NotifyUser:     true,
		LogLevel:       LogLevelWarn,
	},
	{
		Category:       CategoryValidation,
		Retry:          noRetry,
		CircuitBreaker: noBreaker,
		AutoRecovery:   false,
		NotifyUser:     true,
		LogLevel:       LogLevelInfo,
	},
	{
		Category: CategoryStorage,
		Retry: RetryPolicy{
			Enabled:           true,
			MaxAttempts:       3,
			BaseDelay:         1 * time.Second,
			MaxDelay:          10 * time.Second,
			BackoffMultiplier: 2,
			Jitter:            true,
			RetryPredicate:    DefaultRetryPredicate,
		},
		CircuitBreaker: CircuitBreakerPolicy{
			Enabled:          true,
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
			SuccessThreshold: 2,
			MonitoringPeriod: 1 * time.Minute,
		},
		AutoRecovery: true,
		NotifyUser:   true,
		LogLevel:     LogLevelError,
	},
	{
		Category:       CategoryBusinessRule,
		Retry:          noRetry,
		CircuitBreaker: noBreaker,
		AutoRecovery:   false,
		NotifyUser:     true,
		LogLevel:       LogLevelInfo,
	},
	{
		Category: CategoryExternal,
		Retry: RetryPolicy{
			Enabled:           true,
			MaxAttempts:       3,
			BaseDelay:         2 * time.Second,
			MaxDelay:          15 * time.Second,
			BackoffMultiplier: 2,
			Jitter:            true,
			RetryPredicate:    DefaultRetryPredicate,
		},
		CircuitBreaker: CircuitBreakerPolicy{
			Enabled:          true,
			FailureThreshold: 2,
			RecoveryTimeout:  2 * time.Minute,
			SuccessThreshold: 3,
			MonitoringPeriod: 5 * time.Minute,
		},
		Fallback: FallbackPolicy{
			Enabled: true,
			Timeout: 5 * time.Second,
		},
		AutoRecovery: true,
		NotifyUser:   false,
		LogLevel:     LogLevelWarn,
	},
	{
		Category: CategorySystem,
		Retry: RetryPolicy{
			Enabled:           true,
			MaxAttempts:       2,
			BaseDelay:         500 * time.Millisecond,
			MaxDelay:          5 * time.Second,
			BackoffMultiplier: 2,
			Jitter:            true,
			RetryPredicate:    DefaultRetryPredicate,
		},
		CircuitBreaker: CircuitBreakerPolicy{
			Enabled:          true,
			FailureThreshold: 5,
			RecoveryTimeout:  1 * time.Minute,
			SuccessThreshold: 2,
			MonitoringPeriod: 2 * time.Minute,
		},
		AutoRecovery: true,
		NotifyUser:   true,
		LogLevel:     LogLevelError,
	},
	{
		Category: CategoryRateLimit,
		Retry: RetryPolicy{
			Enabled:           true,
			MaxAttempts:       5,
			BaseDelay:         5 * time.Second,
			MaxDelay:          1 * time.Minute,
			BackoffMultiplier: 2,
			Jitter:            true,
			RetryPredicate:    DefaultRetryPredicate,
		},
		CircuitBreaker: CircuitBreakerPolicy{
			Enabled:          true,
			FailureThreshold: 3,
			RecoveryTimeout:  5 * time.Minute,
			SuccessThreshold: 1,
			MonitoringPeriod: 10 * time.Minute,
		},
		AutoRecovery: true,
		NotifyUser:   true,
		LogLevel:     LogLevelWarn,
	},
}

// PolicyFor returns the recovery strategy of a category. The returned value
// is a copy; callers may not alter the table through it.
func PolicyFor(category ErrorCategory) (RecoveryStrategy, error) {
	for _, s := range strategyTable {
		if s.Category == category {
			return s, nil
		}
	}
	return RecoveryStrategy{}, &ConfigurationFault{
		Category: category,
		Reason:   "no recovery strategy registered for category",
	}
}

// PolicyForCode classifies code and returns its category's strategy
func PolicyForCode(code ErrorCode) (RecoveryStrategy, error) {
	category, err := Classify(code)
	if err != nil {
		return RecoveryStrategy{}, err
	}
	return PolicyFor(category)
}

// Strategies returns a copy of the whole table, in category order
func Strategies() []RecoveryStrategy {
	out := make([]RecoveryStrategy, len(strategyTable))
	copy(out, strategyTable[:])
	return out
}

// ShouldNotify reports whether a terminal failure under this strategy must
// surface a visible notice. High and critical severities always do.
func (s RecoveryStrategy) ShouldNotify(severity Severity) bool {
	return s.NotifyUser || severity.AtLeast(SeverityHigh)
}
