package recovery

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/t3-nico/boxlog-app-sub014/internal/domain"
	"github.com/t3-nico/boxlog-app-sub014/pkg/logger"
)

// JitterRatio bounds the random factor applied to a backoff delay: [1-r, 1+r]
const JitterRatio = 0.25

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepWithContext is the default Sleeper
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BackoffDelay returns min(base * multiplier^(attempt-1), max) for a
// 1-indexed attempt, without jitter.
func BackoffDelay(policy domain.RetryPolicy, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	multiplier := policy.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	delay := float64(policy.BaseDelay) * math.Pow(multiplier, float64(attempt-1))
	if policy.MaxDelay > 0 && delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}
	return time.Duration(delay)
}

// RetryObserver is told about every scheduled retry
type RetryObserver func(attempt int, delay time.Duration, err error)

// Retrier runs operations with bounded retries. It is safe for concurrent use.
type Retrier struct {
	sleep    Sleeper
	logger   logger.Logger
	observer RetryObserver

	randMu sync.Mutex
	rand   *rand.Rand
}

// RetrierOption configures a Retrier
type RetrierOption func(*Retrier)

// WithRandSource injects the jitter source, typically rand.NewSource(seed) in tests
func WithRandSource(src rand.Source) RetrierOption {
	return func(r *Retrier) {
		r.rand = rand.New(src)
	}
}

// WithSleeper replaces the ctx-aware timer sleep
func WithSleeper(s Sleeper) RetrierOption {
	return func(r *Retrier) {
		r.sleep = s
	}
}

// WithRetryLogger sets the logger used for retry debug messages
func WithRetryLogger(l logger.Logger) RetrierOption {
	return func(r *Retrier) {
		r.logger = l
	}
}

// WithRetryObserver registers a callback for scheduled retries
func WithRetryObserver(o RetryObserver) RetrierOption {
	return func(r *Retrier) {
		r.observer = o
	}
}

// NewRetrier creates a Retrier seeded from the clock unless a source is given
func NewRetrier(opts ...RetrierOption) *Retrier {
	r := &Retrier{sleep: SleepWithContext}
	for _, opt := range opts {
		opt(r)
	}
	if r.rand == nil {
		r.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return r
}

// Delay returns the wait before the attempt following attempt, jittered if enabled
func (r *Retrier) Delay(policy domain.RetryPolicy, attempt int) time.Duration {
	delay := BackoffDelay(policy, attempt)
	if !policy.Jitter {
		return delay
	}

	r.randMu.Lock()
	factor := 1 - JitterRatio + r.rand.Float64()*2*JitterRatio
	r.randMu.Unlock()

	return time.Duration(math.Floor(float64(delay) * factor))
}

// Do runs op up to policy.MaxAttempts times and returns the number of
// retries performed. When retries are exhausted or the predicate refuses,
// the last failure is returned unchanged. A cancelled ctx aborts a pending
// backoff and returns ctx.Err().
func (r *Retrier) Do(ctx context.Context, policy domain.RetryPolicy, op func(ctx context.Context) error) (int, error) {
	maxAttempts := policy.MaxAttempts
	if !policy.Enabled || maxAttempts < 1 {
		maxAttempts = 1
	}

	retries := 0
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return retries, nil
		}

		if attempt >= maxAttempts {
			return retries, err
		}
		if policy.RetryPredicate != nil && !policy.RetryPredicate(err) {
			return retries, err
		}

		delay := r.Delay(policy, attempt)
		if r.observer != nil {
			r.observer(attempt, delay, err)
		}
		if r.logger != nil {
			r.logger.WithFields(map[string]interface{}{
				"attempt":      attempt,
				"max_attempts": maxAttempts,
				"delay_ms":     delay.Milliseconds(),
				"error":        err.Error(),
			}).Debug("Retrying operation after backoff")
		}

		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			return retries, sleepErr
		}
		retries++
	}
}

// ExecuteWithRetry is the value-returning form of Retrier.Do
func ExecuteWithRetry[T any](ctx context.Context, r *Retrier, policy domain.RetryPolicy, op Operation[T]) (T, int, error) {
	var result T
	retries, err := r.Do(ctx, policy, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, retries, err
	}
	return result, retries, nil
}
