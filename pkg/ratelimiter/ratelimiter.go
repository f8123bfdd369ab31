package ratelimiter

import (
	"strings"
	"sync"
	"time"
)

// RatePolicy is the sliding-window limit of a namespace
type RatePolicy struct {
	MaxEvents int
	Window    time.Duration
}

// RateLimiter counts events per namespace:key in a sliding window.
//
//	rl := ratelimiter.NewRateLimiter()
//	rl.SetPolicy("notice", 3, time.Minute)
//	if rl.Allow("notice", "3001") { ... }
type RateLimiter struct {
	mu       sync.Mutex
	events   map[string][]time.Time
	policies map[string]RatePolicy
	clock    func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// Option configures a RateLimiter
type Option func(*RateLimiter)

// WithClock replaces time.Now
func WithClock(clock func() time.Time) Option {
	return func(rl *RateLimiter) {
		rl.clock = clock
	}
}

// WithCleanupInterval starts a goroutine pruning idle keys every interval
func WithCleanupInterval(interval time.Duration) Option {
	return func(rl *RateLimiter) {
		if interval > 0 {
			go rl.pruneLoop(interval)
		}
	}
}

// NewRateLimiter creates a limiter with no policies. Namespaces without a
// policy deny every event.
func NewRateLimiter(opts ...Option) *RateLimiter {
	rl := &RateLimiter{
		events:   make(map[string][]time.Time),
		policies: make(map[string]RatePolicy),
		clock:    time.Now,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// SetPolicy sets the limit for namespace
func (rl *RateLimiter) SetPolicy(namespace string, maxEvents int, window time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.policies[namespace] = RatePolicy{MaxEvents: maxEvents, Window: window}
}

// Allow records an event for namespace:key and reports whether it fits the limit.
// Rejected events are not recorded.
func (rl *RateLimiter) Allow(namespace, key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	policy, ok := rl.policies[namespace]
	if !ok {
		return false
	}

	now := rl.clock()
	k := compositeKey(namespace, key)
	live := liveEvents(rl.events[k], now.Add(-policy.Window))

	if len(live) >= policy.MaxEvents {
		rl.events[k] = live
		return false
	}
	rl.events[k] = append(live, now)
	return true
}

// Reset forgets the events of namespace:key
func (rl *RateLimiter) Reset(namespace, key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	delete(rl.events, compositeKey(namespace, key))
}

// RetryAfter returns how long until namespace:key admits another event.
// Zero means an event would be allowed now.
func (rl *RateLimiter) RetryAfter(namespace, key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	policy, ok := rl.policies[namespace]
	if !ok {
		return 0
	}

	now := rl.clock()
	live := liveEvents(rl.events[compositeKey(namespace, key)], now.Add(-policy.Window))
	if len(live) < policy.MaxEvents || len(live) == 0 {
		return 0
	}

	// the oldest live event is the next to leave the window
	wait := live[0].Add(policy.Window).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Stop ends the prune goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stop)
	})
}

func (rl *RateLimiter) pruneLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.prune()
		case <-rl.stop:
			return
		}
	}
}

// prune drops keys with no event inside their namespace window
func (rl *RateLimiter) prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock()
	for k, events := range rl.events {
		namespace, _, _ := strings.Cut(k, ":")
		policy, ok := rl.policies[namespace]
		if !ok {
			delete(rl.events, k)
			continue
		}
		if len(liveEvents(events, now.Add(-policy.Window))) == 0 {
			delete(rl.events, k)
		}
	}
}

func compositeKey(namespace, key string) string {
	return namespace + ":" + key
}

// liveEvents keeps the timestamps after cutoff. Events are appended in
// clock order so the result stays sorted.
func liveEvents(events []time.Time, cutoff time.Time) []time.Time {
	live := make([]time.Time, 0, len(events))
	for _, t := range events {
		if t.After(cutoff) {
			live = append(live, t)
		}
	}
	return live
}
