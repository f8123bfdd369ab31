package recovery

import (
	"context"
	"time"

	"github.com/t3-nico/boxlog-app-sub014/internal/domain"
)

// FallbackExecutor runs a secondary path once the primary one is exhausted
type FallbackExecutor struct{}

// NewFallbackExecutor creates a FallbackExecutor
func NewFallbackExecutor() *FallbackExecutor {
	return &FallbackExecutor{}
}

// Execute attempts primary and, on failure, the handler. fallbackUsed is
// true whenever the handler was invoked. A nil handler or disabled policy
// propagates the primary failure.
func (f *FallbackExecutor) Execute(
	ctx context.Context,
	primary func(ctx context.Context) error,
	policy domain.FallbackPolicy,
	handler func(ctx context.Context) error,
) (fallbackUsed bool, err error) {
	primaryErr := primary(ctx)
	if primaryErr == nil {
		return false, nil
	}
	if !policy.Enabled || handler == nil {
		return false, primaryErr
	}
	return true, f.run(ctx, policy.Timeout, handler)
}

// run races handler against timeout. The losing handler keeps running and
// its result is dropped.
func (f *FallbackExecutor) run(ctx context.Context, timeout time.Duration, handler func(ctx context.Context) error) error {
	if timeout <= 0 {
		return handler(ctx)
	}

	done := make(chan error, 1)
	go func() {
		done <- handler(ctx)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return &domain.FallbackTimeoutFault{Timeout: timeout}
	}
}

// ExecuteWithFallback is the value-returning form of FallbackExecutor.Execute
func ExecuteWithFallback[T any](
	ctx context.Context,
	f *FallbackExecutor,
	primary Operation[T],
	policy domain.FallbackPolicy,
	handler Operation[T],
) (T, bool, error) {
	var primaryValue T
	var handlerFn func(ctx context.Context) error
	resultCh := make(chan T, 1)
	if handler != nil {
		handlerFn = func(ctx context.Context) error {
			v, err := handler(ctx)
			if err != nil {
				return err
			}
			resultCh <- v
			return nil
		}
	}

	used, err := f.Execute(ctx, func(ctx context.Context) error {
		v, err := primary(ctx)
		if err != nil {
			return err
		}
		primaryValue = v
		return nil
	}, policy, handlerFn)

	var zero T
	if err != nil {
		return zero, used, err
	}
	if used {
		return <-resultCh, true, nil
	}
	return primaryValue, false, nil
}
