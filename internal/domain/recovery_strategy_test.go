package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withoutPredicate(s RecoveryStrategy) RecoveryStrategy {
	s.Retry.RetryPredicate = nil
	return s
}

func TestPolicyFor_EveryCategory(t *testing.T) {
	for _, c := range Categories() {
		t.Run(string(c), func(t *testing.T) {
			s, err := PolicyFor(c)
			require.NoError(t, err)
			assert.Equal(t, c, s.Category)
			assert.Equal(t, IsRetryableByDefault(c), s.Retry.Enabled, "retry switch follows the category")
			assert.Equal(t, s.Retry.Enabled, s.AutoRecovery)

			again, err := PolicyFor(c)
			require.NoError(t, err)
			assert.Equal(t, withoutPredicate(s), withoutPredicate(again))

			if s.Retry.Enabled {
				assert.NotNil(t, s.Retry.RetryPredicate)
				assert.GreaterOrEqual(t, s.Retry.MaxAttempts, 2)
				assert.LessOrEqual(t, s.Retry.BaseDelay, s.Retry.MaxDelay)
				assert.Greater(t, s.Retry.BackoffMultiplier, 1.0)
			}
			if s.CircuitBreaker.Enabled {
				assert.Positive(t, s.CircuitBreaker.FailureThreshold)
				assert.Positive(t, s.CircuitBreaker.SuccessThreshold)
				assert.Positive(t, s.CircuitBreaker.RecoveryTimeout)
			}
		})
	}
}

func TestPolicyFor_UnknownCategory(t *testing.T) {
	_, err := PolicyFor("billing")
	require.Error(t, err)

	var fault *ConfigurationFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, ErrorCategory("billing"), fault.Category)
}

func TestPolicyFor_ReturnsCopy(t *testing.T) {
	s, err := PolicyFor(CategoryStorage)
	require.NoError(t, err)
	s.Retry.MaxAttempts = 100
	s.CircuitBreaker.Enabled = false

	fresh, err := PolicyFor(CategoryStorage)
	require.NoError(t, err)
	assert.Equal(t, 3, fresh.Retry.MaxAttempts)
	assert.True(t, fresh.CircuitBreaker.Enabled)

	all := Strategies()
	all[0].NotifyUser = false
	auth, _ := PolicyFor(CategoryAuth)
	assert.True(t, auth.NotifyUser)
}

func TestPolicyFor_Table(t *testing.T) {
	storage, _ := PolicyFor(CategoryStorage)
	assert.Equal(t, 3, storage.Retry.MaxAttempts)
	assert.Equal(t, time.Second, storage.Retry.BaseDelay)
	assert.Equal(t, 10*time.Second, storage.Retry.MaxDelay)
	assert.Equal(t, 5, storage.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, storage.CircuitBreaker.RecoveryTimeout)
	assert.False(t, storage.Fallback.Enabled)
	assert.Equal(t, LogLevelError, storage.LogLevel)

	external, _ := PolicyFor(CategoryExternal)
	assert.Equal(t, 2, external.CircuitBreaker.FailureThreshold)
	assert.True(t, external.Fallback.Enabled)
	assert.Equal(t, 5*time.Second, external.Fallback.Timeout)
	assert.False(t, external.NotifyUser)

	// external recovers slowest of the breaker-enabled categories
	for _, s := range Strategies() {
		if s.CircuitBreaker.Enabled && s.Category != CategoryExternal {
			assert.GreaterOrEqual(t, external.CircuitBreaker.SuccessThreshold, s.CircuitBreaker.SuccessThreshold, s.Category)
		}
	}

	rateLimit, _ := PolicyFor(CategoryRateLimit)
	assert.Equal(t, 3, rateLimit.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 5, rateLimit.Retry.MaxAttempts)

	for _, c := range []ErrorCategory{CategoryAuth, CategoryValidation, CategoryBusinessRule} {
		s, _ := PolicyFor(c)
		assert.False(t, s.Retry.Enabled, c)
		assert.False(t, s.CircuitBreaker.Enabled, c)
		assert.False(t, s.Fallback.Enabled, c)
	}
}

func TestPolicyForCode(t *testing.T) {
	s, err := PolicyForCode(CodeExternalAIProvider)
	require.NoError(t, err)
	assert.Equal(t, CategoryExternal, s.Category)

	_, err = PolicyForCode(9999)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestDefaultRetryPredicate(t *testing.T) {
	storageErr, err := NewAppError("e1", CodeStorageQuery, "", ErrorMetadata{}, RecoverySnapshot{}, nil)
	require.NoError(t, err)
	authErr, err := NewAppError("e2", CodeAuthForbidden, "", ErrorMetadata{}, RecoverySnapshot{}, nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("connection reset"), true},
		{"circuit open", &CircuitOpenFault{Code: CodeStorageQuery}, false},
		{"wrapped circuit open", fmt.Errorf("call: %w", &CircuitOpenFault{}), false},
		{"configuration fault", &ConfigurationFault{Code: 1}, false},
		{"cancelled", context.Canceled, false},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), false},
		{"retryable app error", storageErr, true},
		{"terminal app error", authErr, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultRetryPredicate(tt.err))
		})
	}
}

func TestRecoveryStrategy_ShouldNotify(t *testing.T) {
	external, _ := PolicyFor(CategoryExternal)
	assert.False(t, external.ShouldNotify(SeverityMedium))
	assert.True(t, external.ShouldNotify(SeverityHigh))
	assert.True(t, external.ShouldNotify(SeverityCritical))

	validation, _ := PolicyFor(CategoryValidation)
	assert.True(t, validation.ShouldNotify(SeverityLow))
}
