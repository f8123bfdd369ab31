package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/t3-nico/boxlog-app-sub014/internal/domain"
	"github.com/t3-nico/boxlog-app-sub014/internal/domain/mocks"
	"github.com/t3-nico/boxlog-app-sub014/pkg/cache"
	"github.com/t3-nico/boxlog-app-sub014/pkg/logger"
)

type orchestratorFixture struct {
	o       *Orchestrator
	clock   *fakeClock
	sleeper *recordingSleeper
	log     *logger.TestLogger
}

func newOrchestratorFixture(t *testing.T, opts ...Option) *orchestratorFixture {
	clock := newFakeClock()
	sleeper := &recordingSleeper{clock: clock}
	log := logger.NewTestLogger(t)

	var seq int64
	base := []Option{
		WithClock(clock.Now),
		WithLogger(log),
		WithRetrier(newTestRetrier(sleeper)),
		WithIDGenerator(func() string {
			return fmt.Sprintf("id-%d", atomic.AddInt64(&seq, 1))
		}),
	}
	return &orchestratorFixture{
		o:       NewOrchestrator(append(base, opts...)...),
		clock:   clock,
		sleeper: sleeper,
		log:     log,
	}
}

func alwaysFail[T any](err error, calls *int64) Operation[T] {
	return func(ctx context.Context) (T, error) {
		atomic.AddInt64(calls, 1)
		var zero T
		return zero, err
	}
}

func TestExecuteWithRecovery_Success(t *testing.T) {
	fx := newOrchestratorFixture(t)

	out, err := ExecuteWithRecovery(context.Background(), fx.o, func(ctx context.Context) (string, error) {
		return "row", nil
	}, domain.CodeStorageQuery, Options[string]{})

	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "row", out.Value)
	assert.Nil(t, out.Error)
	assert.Equal(t, 0, out.RetryCount)
	assert.False(t, out.RecoveryApplied)
	assert.False(t, out.FallbackUsed)
	assert.Equal(t, int64(0), fx.o.GetStats().TotalErrors)
}

func TestExecuteWithRecovery_RecoversByRetry(t *testing.T) {
	fx := newOrchestratorFixture(t)

	calls := 0
	out, err := ExecuteWithRecovery(context.Background(), fx.o, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errUpstream
		}
		return 12, nil
	}, domain.CodeStorageConnection, Options[int]{})

	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 12, out.Value)
	assert.Equal(t, 1, out.RetryCount)
	assert.True(t, out.RecoveryApplied)
	assert.Equal(t, fx.sleeper.Delays()[0], out.ElapsedTime)
}

// code 3001 with three attempts backing off ~1s then ~2s
func TestExecuteWithRecovery_StorageExhaustsRetries(t *testing.T) {
	fx := newOrchestratorFixture(t)

	var calls int64
	out, err := ExecuteWithRecovery(context.Background(), fx.o, alwaysFail[string](errUpstream, &calls),
		domain.CodeStorageConnection, Options[string]{
			Metadata: domain.ErrorMetadata{Source: "task-service", UserID: "user_1"},
		})
	require.NoError(t, err)

	assert.Equal(t, int64(3), calls)
	delays := fx.sleeper.Delays()
	require.Len(t, delays, 2)
	assert.InDelta(t, float64(time.Second), float64(delays[0]), float64(250*time.Millisecond))
	assert.InDelta(t, float64(2*time.Second), float64(delays[1]), float64(500*time.Millisecond))

	assert.False(t, out.Success)
	assert.Equal(t, 2, out.RetryCount)
	assert.True(t, out.RecoveryApplied)
	assert.False(t, out.FallbackUsed)
	assert.Equal(t, delays[0]+delays[1], out.ElapsedTime)

	appErr := out.Error
	require.NotNil(t, appErr)
	assert.Equal(t, domain.CodeStorageConnection, appErr.Code)
	assert.Equal(t, domain.CategoryStorage, appErr.Category)
	assert.Equal(t, domain.SeverityHigh, appErr.Severity)
	assert.Equal(t, domain.DefaultMessage(domain.CategoryStorage), appErr.Message)
	assert.ErrorIs(t, appErr, errUpstream, "the last failure is preserved as the cause")
	assert.Equal(t, "task-service", appErr.Metadata.Source)
	assert.NotEmpty(t, appErr.Metadata.CorrelationID)
	assert.Equal(t, fx.clock.Now(), appErr.Metadata.Timestamp)
	assert.Equal(t, 2, appErr.Recovery.RetryCount)
	assert.Equal(t, 3, appErr.Recovery.MaxAttempts)
	assert.Equal(t, string(StateClosed), appErr.Recovery.BreakerState)

	assert.GreaterOrEqual(t, fx.log.Count("error"), 1, fx.log.String())
}

// 7001 trips after three failures; the next call never reaches the operation
func TestExecuteWithRecovery_RateLimitBreakerRejects(t *testing.T) {
	fx := newOrchestratorFixture(t)
	ctx := context.Background()

	var calls int64
	out, err := ExecuteWithRecovery(ctx, fx.o, alwaysFail[int](errUpstream, &calls),
		domain.CodeRateLimitTooManyRequests, Options[int]{})
	require.NoError(t, err)

	assert.Equal(t, int64(3), calls)
	assert.Equal(t, 3, out.RetryCount)
	require.NotNil(t, out.Error)
	assert.True(t, domain.IsCircuitOpen(out.Error))
	assert.Equal(t, string(StateOpen), out.Error.Recovery.BreakerState)

	out, err = ExecuteWithRecovery(ctx, fx.o, alwaysFail[int](errUpstream, &calls),
		domain.CodeRateLimitTooManyRequests, Options[int]{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), calls, "rejected without invoking the operation")
	assert.Equal(t, 0, out.RetryCount)
	assert.ErrorIs(t, out.Error, domain.ErrCircuitOpen)

	stats := fx.o.GetStats()
	assert.Equal(t, 1, stats.PerBreakerState[StateOpen])
	assert.Equal(t, int64(2), stats.PerCode[domain.CodeRateLimitTooManyRequests])
}

func TestRateLimitPolicy_FourthCallRejected(t *testing.T) {
	strategy, err := domain.PolicyFor(domain.CategoryRateLimit)
	require.NoError(t, err)
	require.Equal(t, 3, strategy.CircuitBreaker.FailureThreshold)

	clock := newFakeClock()
	cb := NewCircuitBreaker(domain.CodeRateLimitTooManyRequests, strategy.CircuitBreaker, clock.Now, nil)

	calls := 0
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(context.Background(), failing(errUpstream, &calls)), errUpstream)
	}
	err = cb.Execute(context.Background(), failing(errUpstream, &calls))
	assert.ErrorIs(t, err, domain.ErrCircuitOpen)
	assert.Equal(t, 3, calls)

	clock.Advance(strategy.CircuitBreaker.RecoveryTimeout)
	require.NoError(t, cb.Execute(context.Background(), succeed))
	assert.Equal(t, StateClosed, cb.State(), "a single success closes the rate-limit breaker")
}

// an external call that exhausts retries is rescued by its fallback
func TestExecuteWithRecovery_ExternalFallback(t *testing.T) {
	fx := newOrchestratorFixture(t)

	var calls int64
	out, err := ExecuteWithRecovery(context.Background(), fx.o, alwaysFail[string](errUpstream, &calls),
		domain.CodeExternalUnavailable, Options[string]{
			Fallback: func(ctx context.Context) (string, error) {
				return "canned suggestion", nil
			},
		})
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.True(t, out.FallbackUsed)
	assert.True(t, out.RecoveryApplied)
	assert.Equal(t, "canned suggestion", out.Value)
	assert.Nil(t, out.Error)
	// the breaker trips on the second failure, so the third attempt is rejected
	assert.Equal(t, int64(2), calls)
	assert.Equal(t, 2, out.RetryCount)
	assert.Equal(t, int64(0), fx.o.GetStats().TotalErrors)
	assert.Equal(t, 1, fx.log.Count("warn")-countMessage(fx.log, "Circuit breaker opened"))
}

func countMessage(l *logger.TestLogger, msg string) int {
	n := 0
	for _, e := range l.Entries() {
		if e.Message == msg {
			n++
		}
	}
	return n
}

func TestExecuteWithRecovery_FallbackFailure(t *testing.T) {
	fx := newOrchestratorFixture(t)
	fallbackErr := errors.New("fallback store empty")

	var calls int64
	out, err := ExecuteWithRecovery(context.Background(), fx.o, alwaysFail[string](errUpstream, &calls),
		domain.CodeExternalBadResponse, Options[string]{
			Fallback: func(ctx context.Context) (string, error) { return "", fallbackErr },
		})
	require.NoError(t, err)

	assert.False(t, out.Success)
	assert.True(t, out.FallbackUsed)
	require.NotNil(t, out.Error)
	assert.ErrorIs(t, out.Error, fallbackErr)
	assert.True(t, out.Error.Recovery.FallbackTried)
	assert.Equal(t, domain.SeverityMedium, out.Error.Severity)
}

func TestExecuteWithRecovery_FallbackTimeout(t *testing.T) {
	fx := newOrchestratorFixture(t, WithFallbackTimeout(10*time.Millisecond))
	release := make(chan struct{})
	defer close(release)

	var calls int64
	out, err := ExecuteWithRecovery(context.Background(), fx.o, alwaysFail[int](errUpstream, &calls),
		domain.CodeExternalTimeout, Options[int]{
			Fallback: func(ctx context.Context) (int, error) {
				<-release
				return 1, nil
			},
		})
	require.NoError(t, err)

	assert.False(t, out.Success)
	assert.True(t, out.FallbackUsed)
	assert.ErrorIs(t, out.Error, domain.ErrFallbackTimeout)
}

func TestExecuteWithRecovery_FallbackIgnoredWhenCategoryDisablesIt(t *testing.T) {
	fx := newOrchestratorFixture(t)
	fallbackCalls := 0

	var calls int64
	out, err := ExecuteWithRecovery(context.Background(), fx.o, alwaysFail[int](errUpstream, &calls),
		domain.CodeSystemInternal, Options[int]{
			Fallback: func(ctx context.Context) (int, error) {
				fallbackCalls++
				return 1, nil
			},
		})
	require.NoError(t, err)

	assert.False(t, out.Success)
	assert.False(t, out.FallbackUsed)
	assert.Equal(t, 0, fallbackCalls)
	assert.Equal(t, int64(2), calls, "system retries twice in total")
	assert.Equal(t, domain.SeverityCritical, out.Error.Severity)
}

// code 9999 is outside every range
func TestExecuteWithRecovery_UndefinedCode(t *testing.T) {
	fx := newOrchestratorFixture(t)

	var calls int64
	out, err := ExecuteWithRecovery(context.Background(), fx.o, alwaysFail[int](errUpstream, &calls),
		domain.ErrorCode(9999), Options[int]{})

	require.Error(t, err)
	assert.True(t, domain.IsConfigurationFault(err))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Equal(t, int64(0), calls)
	assert.Equal(t, 0, out.RetryCount)
	assert.False(t, out.Success)
	assert.Empty(t, fx.sleeper.Delays())
	assert.Equal(t, int64(0), fx.o.GetStats().TotalErrors)
	assert.Empty(t, fx.o.GetStats().Breakers)
}

func TestExecuteWithRecovery_InvalidMetadata(t *testing.T) {
	fx := newOrchestratorFixture(t)

	var calls int64
	_, err := ExecuteWithRecovery(context.Background(), fx.o, alwaysFail[int](errUpstream, &calls),
		domain.CodeStorageQuery, Options[int]{
			Metadata: domain.ErrorMetadata{CorrelationID: "bad id with spaces"},
		})

	require.Error(t, err)
	var verr domain.ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, int64(0), calls)
}

func TestExecuteWithRecovery_NonRetryableCategory(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	notifier := mocks.NewMockNoticeNotifier(ctrl)
	reporter := mocks.NewMockObservabilityReporter(ctrl)
	reports := mocks.NewMockErrorReportRepository(ctrl)

	fx := newOrchestratorFixture(t,
		WithNotifier(notifier),
		WithReporter(reporter),
		WithReportRepository(reports),
	)

	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, n domain.UserNotice) error {
		assert.Equal(t, domain.CodeAuthSessionExpired, n.Code)
		assert.Equal(t, "user_9", n.UserID)
		assert.False(t, n.Retryable)
		return nil
	})
	reporter.EXPECT().Report(gomock.Any(), gomock.Any(), gomock.Any()).Do(func(_ context.Context, e *domain.AppError, oc domain.ObservabilityContext) {
		assert.Equal(t, domain.LogLevelError, oc.Level)
		assert.Equal(t, "1002", oc.Tags["error_code"])
		assert.Equal(t, "auth", oc.Tags["error_category"])
	})
	reports.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, r *domain.ErrorReport) error {
		assert.Equal(t, domain.CodeAuthSessionExpired, r.Code)
		assert.Equal(t, "user_9", r.UserID)
		return nil
	})

	var calls int64
	out, err := ExecuteWithRecovery(context.Background(), fx.o, alwaysFail[int](errUpstream, &calls),
		domain.CodeAuthSessionExpired, Options[int]{
			Metadata: domain.ErrorMetadata{UserID: "user_9"},
		})
	require.NoError(t, err)

	assert.Equal(t, int64(1), calls)
	assert.Equal(t, 0, out.RetryCount)
	assert.False(t, out.RecoveryApplied)
	assert.Empty(t, fx.sleeper.Delays())
	assert.Empty(t, out.Error.Recovery.BreakerState, "auth has no breaker")
	assert.Equal(t, 1, fx.log.Count("warn"), "auth failures log at warn")
}

func TestExecuteWithRecovery_QuietCategoryIsNotNotified(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// no expectations: any Notify call fails the test
	notifier := mocks.NewMockNoticeNotifier(ctrl)
	fx := newOrchestratorFixture(t, WithNotifier(notifier))

	var calls int64
	out, err := ExecuteWithRecovery(context.Background(), fx.o, alwaysFail[int](errUpstream, &calls),
		domain.CodeExternalAIProvider, Options[int]{})
	require.NoError(t, err)
	assert.False(t, out.Success)
}

func TestExecuteWithRecovery_SideChannelFailuresAreLogged(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	notifier := mocks.NewMockNoticeNotifier(ctrl)
	reports := mocks.NewMockErrorReportRepository(ctrl)
	fx := newOrchestratorFixture(t, WithNotifier(notifier), WithReportRepository(reports))

	reports.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("db down"))
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("socket closed"))

	var calls int64
	out, err := ExecuteWithRecovery(context.Background(), fx.o, alwaysFail[int](errUpstream, &calls),
		domain.CodeValidationRequired, Options[int]{})
	require.NoError(t, err)
	require.NotNil(t, out.Error)

	assert.Equal(t, 1, countMessage(fx.log, "Failed to store error report"))
	assert.Equal(t, 1, countMessage(fx.log, "Failed to deliver user notice"))
}

func TestExecuteWithRecovery_StaleCacheFallback(t *testing.T) {
	c := cache.NewInMemoryCache(0)
	defer c.Stop()
	fx := newOrchestratorFixture(t, WithStaleCache(c, time.Hour))
	ctx := context.Background()
	opts := Options[[]string]{CacheKey: "weather:tokyo"}

	out, err := ExecuteWithRecovery(ctx, fx.o, func(ctx context.Context) ([]string, error) {
		return []string{"sunny"}, nil
	}, domain.CodeExternalUnavailable, opts)
	require.NoError(t, err)
	require.True(t, out.Success)

	var calls int64
	out, err = ExecuteWithRecovery(ctx, fx.o, alwaysFail[[]string](errUpstream, &calls), domain.CodeExternalUnavailable, opts)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.True(t, out.FallbackUsed)
	assert.Equal(t, []string{"sunny"}, out.Value)

	// nothing cached for this key
	out, err = ExecuteWithRecovery(ctx, fx.o, alwaysFail[[]string](errUpstream, &calls),
		domain.CodeExternalTimeout, Options[[]string]{CacheKey: "weather:osaka"})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Error, ErrNoStaleValue)

	// storage does not enable fallback, so the cache is not consulted
	c.Set("orders", []string{"stale"}, time.Hour)
	out, err = ExecuteWithRecovery(ctx, fx.o, alwaysFail[[]string](errUpstream, &calls),
		domain.CodeStorageQuery, Options[[]string]{CacheKey: "orders"})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.False(t, out.FallbackUsed)
}

func TestExecuteWithRecovery_StaleCacheTypeMismatch(t *testing.T) {
	c := cache.NewInMemoryCache(0)
	defer c.Stop()
	fx := newOrchestratorFixture(t, WithStaleCache(c, time.Hour))
	c.Set("k", "a string", time.Hour)

	var calls int64
	out, err := ExecuteWithRecovery(context.Background(), fx.o, alwaysFail[int](errUpstream, &calls),
		domain.CodeExternalUnavailable, Options[int]{CacheKey: "k"})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Contains(t, out.Error.Error(), "has type string")
}

func TestExecuteWithRecovery_CancelledContext(t *testing.T) {
	fx := newOrchestratorFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	var calls int64
	out, err := ExecuteWithRecovery(ctx, fx.o, func(ctx context.Context) (int, error) {
		atomic.AddInt64(&calls, 1)
		cancel()
		return 0, errUpstream
	}, domain.CodeStorageConnection, Options[int]{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), calls, "a pending backoff is abandoned on cancel")
	assert.ErrorIs(t, out.Error, context.Canceled)
	assert.Equal(t, 0, out.RetryCount)
}

func TestExecuteWithRecovery_Concurrent(t *testing.T) {
	fx := newOrchestratorFixture(t)

	var calls int64
	var g errgroup.Group
	for i := 0; i < 25; i++ {
		g.Go(func() error {
			out, err := ExecuteWithRecovery(context.Background(), fx.o, alwaysFail[int](errUpstream, &calls),
				domain.CodeStorageTimeout, Options[int]{})
			if err != nil {
				return err
			}
			if out.Success {
				return errors.New("unexpected success")
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	stats := fx.o.GetStats()
	assert.Equal(t, int64(25), stats.TotalErrors)
	assert.Equal(t, int64(25), stats.PerCategory[domain.CategoryStorage])
	require.Len(t, stats.Breakers, 1)
	assert.Equal(t, domain.CodeStorageTimeout, stats.Breakers[0].Code)
	assert.LessOrEqual(t, atomic.LoadInt64(&calls), int64(25*3))
}

func TestOrchestrator_CreateError(t *testing.T) {
	fx := newOrchestratorFixture(t)

	appErr, err := fx.o.CreateError("", domain.CodeBusinessQuotaExceeded, domain.ErrorMetadata{Source: "planner"}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryBusinessRule, appErr.Category)
	assert.Equal(t, domain.SeverityMedium, appErr.Severity)
	assert.Equal(t, domain.DefaultMessage(domain.CategoryBusinessRule), appErr.Message)
	assert.Equal(t, "id-2", appErr.ID, "correlation id is generated first")
	assert.Equal(t, "id-1", appErr.Metadata.CorrelationID)
	assert.False(t, appErr.Recovery.RetryEnabled)
	assert.Nil(t, appErr.Unwrap())

	appErr, err = fx.o.CreateError("Disk full", domain.CodeSystemOutOfMemory, domain.ErrorMetadata{CorrelationID: "req-1"}, errUpstream)
	require.NoError(t, err)
	assert.Equal(t, "Disk full", appErr.Message)
	assert.Equal(t, "req-1", appErr.Metadata.CorrelationID)
	assert.ErrorIs(t, appErr, errUpstream)
	assert.True(t, appErr.Recovery.RetryEnabled)
	assert.Equal(t, 2, appErr.Recovery.MaxAttempts)

	_, err = fx.o.CreateError("nope", domain.ErrorCode(42), domain.ErrorMetadata{}, nil)
	assert.True(t, domain.IsConfigurationFault(err))

	_, err = fx.o.CreateError("nope", domain.CodeStorageQuery, domain.ErrorMetadata{UserID: "a/b"}, nil)
	assert.Error(t, err)

	stats := fx.o.GetStats()
	assert.Equal(t, int64(2), stats.TotalErrors)
	assert.Equal(t, int64(1), stats.PerCategory[domain.CategoryBusinessRule])
	assert.Equal(t, int64(1), stats.PerCategory[domain.CategorySystem])
	assert.Equal(t, int64(1), stats.PerCode[domain.CodeSystemOutOfMemory])
}

func TestOrchestrator_StatsAndResets(t *testing.T) {
	fx := newOrchestratorFixture(t)
	ctx := context.Background()

	var calls int64
	for i := 0; i < 2; i++ {
		_, err := ExecuteWithRecovery(ctx, fx.o, alwaysFail[int](errUpstream, &calls), domain.CodeExternalUnavailable, Options[int]{})
		require.NoError(t, err)
	}
	_, err := ExecuteWithRecovery(ctx, fx.o, func(ctx context.Context) (int, error) { return 1, nil }, domain.CodeStorageQuery, Options[int]{})
	require.NoError(t, err)

	stats := fx.o.GetStats()
	assert.Equal(t, int64(2), stats.TotalErrors)
	assert.Equal(t, map[BreakerState]int{StateClosed: 1, StateOpen: 1, StateHalfOpen: 0}, stats.PerBreakerState)

	// the returned maps are copies
	stats.PerCode[domain.CodeExternalUnavailable] = 100
	assert.Equal(t, int64(2), fx.o.GetStats().PerCode[domain.CodeExternalUnavailable])

	fx.o.ResetStats()
	stats = fx.o.GetStats()
	assert.Equal(t, int64(0), stats.TotalErrors)
	assert.Empty(t, stats.PerCode)
	assert.Equal(t, 1, stats.PerBreakerState[StateOpen], "breakers survive a stats reset")

	assert.True(t, fx.o.ResetBreaker(domain.CodeExternalUnavailable))
	assert.False(t, fx.o.ResetBreaker(domain.CodeRateLimitQuotaWindow))
	assert.Equal(t, 0, fx.o.GetStats().PerBreakerState[StateOpen])

	cb, found := fx.o.Breakers().Lookup(domain.CodeExternalUnavailable)
	require.True(t, found)
	assert.Equal(t, StateClosed, cb.State())
}

func TestOrchestrator_BreakerTransitionsAreLogged(t *testing.T) {
	fx := newOrchestratorFixture(t)

	var calls int64
	_, err := ExecuteWithRecovery(context.Background(), fx.o, alwaysFail[int](errUpstream, &calls), domain.CodeExternalUnavailable, Options[int]{})
	require.NoError(t, err)
	assert.Equal(t, 1, countMessage(fx.log, "Circuit breaker opened"))

	fx.clock.Advance(2 * time.Minute)
	_, err = ExecuteWithRecovery(context.Background(), fx.o, func(ctx context.Context) (int, error) { return 1, nil }, domain.CodeExternalUnavailable, Options[int]{})
	require.NoError(t, err)
	assert.Equal(t, 1, countMessage(fx.log, "Circuit breaker state changed"), "open to half-open")
}

func TestExecuteWithRecovery_TracesTerminalFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tracer := mocks.NewMockTracer(ctrl)
	ctx := context.Background()
	tracer.EXPECT().StartServiceSpan(gomock.Any(), "RecoveryOrchestrator", "ExecuteWithRecovery").Return(ctx, nil)
	tracer.EXPECT().AddAttribute(ctx, "error_code", int(domain.CodeValidationRequired))
	tracer.EXPECT().AddAttribute(ctx, "error_category", string(domain.CategoryValidation))
	tracer.EXPECT().EndSpan(gomock.Nil(), gomock.Not(gomock.Nil()))

	fx := newOrchestratorFixture(t, WithTracer(tracer))

	var calls int64
	out, err := ExecuteWithRecovery(ctx, fx.o, alwaysFail[int](errUpstream, &calls),
		domain.CodeValidationRequired, Options[int]{})

	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, int64(1), calls)
}
