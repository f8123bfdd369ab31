package recovery

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingSleeper records requested delays and advances clock instead of waiting
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	clock  *fakeClock
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	if s.clock != nil {
		s.clock.Advance(d)
	}
	return nil
}

func (s *recordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.delays))
	copy(out, s.delays)
	return out
}

func newTestRetrier(s *recordingSleeper) *Retrier {
	return NewRetrier(WithRandSource(rand.NewSource(42)), WithSleeper(s.Sleep))
}

// failing returns an op that fails with err and counts its calls
func failing(err error, calls *int) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		*calls++
		return err
	}
}
