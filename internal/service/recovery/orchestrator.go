package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/t3-nico/boxlog-app-sub014/internal/domain"
	"github.com/t3-nico/boxlog-app-sub014/pkg/cache"
	"github.com/t3-nico/boxlog-app-sub014/pkg/logger"
	"github.com/t3-nico/boxlog-app-sub014/pkg/tracing"
)

// ErrNoStaleValue is returned by the cache-backed fallback when nothing was stored for the key
var ErrNoStaleValue = errors.New("no cached value available for fallback")

// Operation is a unit of work guarded by the recovery engine
type Operation[T any] func(ctx context.Context) (T, error)

// Options are the per-call inputs of ExecuteWithRecovery
type Options[T any] struct {
	Metadata domain.ErrorMetadata

	// Fallback runs when the primary path is exhausted and the category
	// enables fallback
	Fallback Operation[T]

	// CacheKey stores each successful value and serves it as the fallback
	// when Fallback is nil
	CacheKey string
}

// RecoveryOutcome is the caller-facing result of one orchestrated call
type RecoveryOutcome[T any] struct {
	Success         bool             `json:"success"`
	Value           T                `json:"value,omitempty"`
	Error           *domain.AppError `json:"error,omitempty"`
	RetryCount      int              `json:"retry_count"`
	RecoveryApplied bool             `json:"recovery_applied"`
	FallbackUsed    bool             `json:"fallback_used"`
	ElapsedTime     time.Duration    `json:"elapsed_time"`
}

// Stats is a snapshot of error frequencies and breaker states
type Stats struct {
	TotalErrors     int64                          `json:"total_errors"`
	PerCategory     map[domain.ErrorCategory]int64 `json:"per_category"`
	PerCode         map[domain.ErrorCode]int64     `json:"per_code"`
	PerBreakerState map[BreakerState]int           `json:"per_breaker_state"`
	Breakers        []CircuitBreakerStats          `json:"breakers"`
}

// Orchestrator composes the breaker, retry and fallback executors behind a
// single entry point and keeps error statistics.
type Orchestrator struct {
	registry *BreakerRegistry
	retrier  *Retrier
	fallback *FallbackExecutor

	logger   logger.Logger
	tracer   tracing.Tracer
	clock    func() time.Time
	newID    func() string
	stale    cache.Cache
	staleTTL time.Duration

	fallbackTimeout time.Duration

	notifier domain.NoticeNotifier
	reporter domain.ObservabilityReporter
	reports  domain.ErrorReportRepository

	statsMu     sync.RWMutex
	totalErrors int64
	perCategory map[domain.ErrorCategory]int64
	perCode     map[domain.ErrorCode]int64
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithTracer(t tracing.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithClock drives breaker windows, metadata timestamps and elapsed time
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithRetrier replaces the default retrier, typically to inject a seeded
// random source and a fake sleeper
func WithRetrier(r *Retrier) Option {
	return func(o *Orchestrator) { o.retrier = r }
}

func WithIDGenerator(f func() string) Option {
	return func(o *Orchestrator) { o.newID = f }
}

// WithStaleCache enables the last-good-value fallback
func WithStaleCache(c cache.Cache, ttl time.Duration) Option {
	return func(o *Orchestrator) {
		o.stale = c
		o.staleTTL = ttl
	}
}

// WithFallbackTimeout overrides the per-category fallback timeout
func WithFallbackTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.fallbackTimeout = d }
}

func WithNotifier(n domain.NoticeNotifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

func WithReporter(r domain.ObservabilityReporter) Option {
	return func(o *Orchestrator) { o.reporter = r }
}

func WithReportRepository(r domain.ErrorReportRepository) Option {
	return func(o *Orchestrator) { o.reports = r }
}

// NewOrchestrator creates an Orchestrator owning a fresh breaker registry
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fallback:    NewFallbackExecutor(),
		tracer:      tracing.NewTracer(),
		clock:       time.Now,
		newID:       uuid.NewString,
		perCategory: make(map[domain.ErrorCategory]int64),
		perCode:     make(map[domain.ErrorCode]int64),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.NewLogger()
	}
	if o.retrier == nil {
		o.retrier = NewRetrier(WithRetryLogger(o.logger))
	}
	o.registry = NewBreakerRegistry(o.clock, o.onTransition)
	return o
}

func (o *Orchestrator) onTransition(code domain.ErrorCode, from, to BreakerState) {
	recordTransition(code, to)

	l := o.logger.WithFields(map[string]interface{}{
		"error_code": int(code),
		"from":       string(from),
		"to":         string(to),
	})
	if to == StateOpen {
		l.Warn("Circuit breaker opened")
		return
	}
	l.Info("Circuit breaker state changed")
}

// Breakers exposes the registry, mainly for inspection and admin resets
func (o *Orchestrator) Breakers() *BreakerRegistry {
	return o.registry
}

// CreateError classifies code, attaches the category's recovery snapshot and
// counts the error. An undefined code returns a ConfigurationFault.
func (o *Orchestrator) CreateError(message string, code domain.ErrorCode, metadata domain.ErrorMetadata, cause error) (*domain.AppError, error) {
	strategy, err := domain.PolicyForCode(code)
	if err != nil {
		return nil, err
	}
	if err := metadata.Validate(); err != nil {
		return nil, err
	}
	return o.buildError(message, code, metadata, o.snapshot(strategy, code, 0, false), cause)
}

func (o *Orchestrator) snapshot(strategy domain.RecoveryStrategy, code domain.ErrorCode, retries int, fallbackTried bool) domain.RecoverySnapshot {
	snap := domain.RecoverySnapshot{
		AutoRecovery:    strategy.AutoRecovery,
		NotifyUser:      strategy.NotifyUser,
		RetryEnabled:    strategy.Retry.Enabled,
		MaxAttempts:     strategy.Retry.MaxAttempts,
		RetryCount:      retries,
		BreakerEnabled:  strategy.CircuitBreaker.Enabled,
		FallbackEnabled: strategy.Fallback.Enabled,
		FallbackTried:   fallbackTried,
	}
	if cb, ok := o.registry.Lookup(code); ok && strategy.CircuitBreaker.Enabled {
		snap.BreakerState = string(cb.State())
	}
	return snap
}

func (o *Orchestrator) buildError(message string, code domain.ErrorCode, metadata domain.ErrorMetadata, snap domain.RecoverySnapshot, cause error) (*domain.AppError, error) {
	if metadata.Timestamp.IsZero() {
		metadata.Timestamp = o.clock().UTC()
	}
	if metadata.CorrelationID == "" {
		metadata.CorrelationID = o.newID()
	}

	appErr, err := domain.NewAppError(o.newID(), code, message, metadata, snap, cause)
	if err != nil {
		return nil, err
	}

	o.statsMu.Lock()
	o.totalErrors++
	o.perCategory[appErr.Category]++
	o.perCode[appErr.Code]++
	o.statsMu.Unlock()

	return appErr, nil
}

// GetStats returns error counts since the last reset and the state of every breaker
func (o *Orchestrator) GetStats() Stats {
	o.statsMu.RLock()
	s := Stats{
		TotalErrors: o.totalErrors,
		PerCategory: make(map[domain.ErrorCategory]int64, len(o.perCategory)),
		PerCode:     make(map[domain.ErrorCode]int64, len(o.perCode)),
	}
	for k, v := range o.perCategory {
		s.PerCategory[k] = v
	}
	for k, v := range o.perCode {
		s.PerCode[k] = v
	}
	o.statsMu.RUnlock()

	s.Breakers = o.registry.Stats()
	s.PerBreakerState = map[BreakerState]int{
		StateClosed:   0,
		StateOpen:     0,
		StateHalfOpen: 0,
	}
	for _, b := range s.Breakers {
		s.PerBreakerState[b.State]++
	}
	return s
}

// ResetStats clears the error counters. Breakers keep their state.
func (o *Orchestrator) ResetStats() {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()

	o.totalErrors = 0
	o.perCategory = make(map[domain.ErrorCategory]int64)
	o.perCode = make(map[domain.ErrorCode]int64)
}

// ResetBreaker closes the breaker of code. It returns false if none was created yet.
func (o *Orchestrator) ResetBreaker(code domain.ErrorCode) bool {
	return o.registry.Reset(code)
}

// ExecuteWithRecovery runs op under the recovery strategy of code's category:
// breaker, then retry when enabled, then fallback when enabled. Unrecovered
// failures are returned as a classified AppError inside the outcome.
//
// The error return is reserved for faults of the call itself: an undefined
// code (ConfigurationFault) or invalid metadata. op is not invoked then.
func ExecuteWithRecovery[T any](ctx context.Context, o *Orchestrator, op Operation[T], code domain.ErrorCode, opts Options[T]) (RecoveryOutcome[T], error) {
	start := o.clock()

	strategy, err := domain.PolicyForCode(code)
	if err != nil {
		o.logger.WithField("error_code", int(code)).Error("Cannot execute with recovery: " + err.Error())
		return RecoveryOutcome[T]{}, err
	}
	if err := opts.Metadata.Validate(); err != nil {
		return RecoveryOutcome[T]{}, err
	}

	ctx, span := o.tracer.StartServiceSpan(ctx, "RecoveryOrchestrator", "ExecuteWithRecovery")
	o.tracer.AddAttribute(ctx, "error_code", int(code))
	o.tracer.AddAttribute(ctx, "error_category", string(strategy.Category))

	breaker := o.registry.Get(code, strategy.CircuitBreaker)
	guarded := func(ctx context.Context) (T, error) {
		var value T
		err := breaker.Execute(ctx, func(ctx context.Context) error {
			v, err := op(ctx)
			if err != nil {
				return err
			}
			value = v
			return nil
		})
		return value, err
	}

	var retries int
	var primaryErr error
	primary := func(ctx context.Context) (T, error) {
		v, n, err := ExecuteWithRetry(ctx, o.retrier, strategy.Retry, guarded)
		retries = n
		primaryErr = err
		return v, err
	}

	fbPolicy := strategy.Fallback
	if o.fallbackTimeout > 0 {
		fbPolicy.Timeout = o.fallbackTimeout
	}
	value, fallbackUsed, err := ExecuteWithFallback(ctx, o.fallback, primary, fbPolicy, fallbackHandler(o, opts))

	if retries > 0 {
		recordRetries(ctx, strategy.Category, retries)
	}
	if fallbackUsed {
		recordFallback(ctx, strategy.Category, err)
	}

	outcome := RecoveryOutcome[T]{
		RetryCount:      retries,
		RecoveryApplied: retries > 0 || fallbackUsed,
		FallbackUsed:    fallbackUsed,
	}

	if err == nil {
		if !fallbackUsed && opts.CacheKey != "" && o.stale != nil {
			o.stale.Set(opts.CacheKey, value, o.staleTTL)
		}
		if fallbackUsed {
			o.logger.WithFields(map[string]interface{}{
				"error_code": int(code),
				"retries":    retries,
				"error":      primaryErr.Error(),
			}).Warn("Primary path failed, fallback succeeded")
		}
		outcome.Success = true
		outcome.Value = value
		outcome.ElapsedTime = o.clock().Sub(start)
		recordLatency(ctx, strategy.Category, true, outcome.ElapsedTime)
		o.tracer.EndSpan(span, nil)
		return outcome, nil
	}

	snap := o.snapshot(strategy, code, retries, fallbackUsed)
	appErr, buildErr := o.buildError("", code, opts.Metadata, snap, err)
	if buildErr != nil {
		// code was classified above; only a broken table reaches this
		o.tracer.EndSpan(span, buildErr)
		return RecoveryOutcome[T]{}, fmt.Errorf("failed to build recovery error: %w", buildErr)
	}

	o.handleTerminal(ctx, strategy, appErr, primaryErr)

	outcome.Error = appErr
	outcome.ElapsedTime = o.clock().Sub(start)
	recordLatency(ctx, strategy.Category, false, outcome.ElapsedTime)
	o.tracer.EndSpan(span, appErr)
	return outcome, nil
}

// fallbackHandler picks the caller's handler, else the stale cache
func fallbackHandler[T any](o *Orchestrator, opts Options[T]) Operation[T] {
	if opts.Fallback != nil {
		return opts.Fallback
	}
	if opts.CacheKey == "" || o.stale == nil {
		return nil
	}
	key := opts.CacheKey
	return func(ctx context.Context) (T, error) {
		var zero T
		v, ok := o.stale.Get(key)
		if !ok {
			return zero, ErrNoStaleValue
		}
		typed, ok := v.(T)
		if !ok {
			return zero, fmt.Errorf("cached value for %q has type %T", key, v)
		}
		return typed, nil
	}
}

// handleTerminal logs, reports, stores and notifies an unrecovered failure.
// Side channel failures are logged and never change the outcome.
func (o *Orchestrator) handleTerminal(ctx context.Context, strategy domain.RecoveryStrategy, appErr *domain.AppError, primaryErr error) {
	recordError(ctx, appErr)

	fields := map[string]interface{}{
		"error_id":       appErr.ID,
		"error_code":     int(appErr.Code),
		"error_category": string(appErr.Category),
		"error_severity": string(appErr.Severity),
		"retry_count":    appErr.Recovery.RetryCount,
		"fallback_tried": appErr.Recovery.FallbackTried,
		"correlation_id": appErr.Metadata.CorrelationID,
	}
	if appErr.Metadata.Source != "" {
		fields["source"] = appErr.Metadata.Source
	}
	if cause := appErr.Cause(); cause != nil {
		fields["cause"] = cause.Error()
	}
	if appErr.Recovery.FallbackTried && primaryErr != nil {
		fields["primary_error"] = primaryErr.Error()
	}
	logAt(o.logger.WithFields(fields), strategy.LogLevel, "Operation failed after recovery: "+appErr.Message)

	if o.reporter != nil {
		o.reporter.Report(ctx, appErr, appErr.ObservabilityContext())
	}

	if o.reports != nil {
		if err := o.reports.Save(ctx, domain.NewErrorReport(appErr)); err != nil {
			o.logger.WithFields(map[string]interface{}{
				"error_id": appErr.ID,
				"error":    err.Error(),
			}).Error("Failed to store error report")
		}
	}

	if o.notifier != nil && strategy.ShouldNotify(appErr.Severity) {
		if err := o.notifier.Notify(ctx, domain.NewUserNotice(appErr)); err != nil {
			o.logger.WithFields(map[string]interface{}{
				"error_id": appErr.ID,
				"error":    err.Error(),
			}).Warn("Failed to deliver user notice")
		}
	}
}

func logAt(l logger.Logger, level domain.LogLevel, msg string) {
	switch level {
	case domain.LogLevelDebug:
		l.Debug(msg)
	case domain.LogLevelInfo:
		l.Info(msg)
	case domain.LogLevelWarn:
		l.Warn(msg)
	default:
		l.Error(msg)
	}
}
