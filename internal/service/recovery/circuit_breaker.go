package recovery

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/t3-nico/boxlog-app-sub014/internal/domain"
)

// BreakerState is the state of a circuit breaker
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// TransitionFunc is notified after every state change
type TransitionFunc func(code domain.ErrorCode, from, to BreakerState)

// CircuitBreaker guards calls for a single error code.
// All counters and transitions are serialized by mu.
type CircuitBreaker struct {
	code   domain.ErrorCode
	policy domain.CircuitBreakerPolicy
	clock  func() time.Time
	notify TransitionFunc

	mu                   sync.Mutex
	state                BreakerState
	consecutiveFailures  int
	consecutiveSuccesses int
	lastFailureTime      time.Time
	nextAttemptTime      time.Time
	lastError            error
}

// NewCircuitBreaker creates a closed breaker. clock and notify may be nil.
func NewCircuitBreaker(code domain.ErrorCode, policy domain.CircuitBreakerPolicy, clock func() time.Time, notify TransitionFunc) *CircuitBreaker {
	if clock == nil {
		clock = time.Now
	}
	return &CircuitBreaker{
		code:   code,
		policy: policy,
		clock:  clock,
		notify: notify,
		state:  StateClosed,
	}
}

// Execute runs op under the breaker. A disabled policy is a pass-through.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if !cb.policy.Enabled {
		return op(ctx)
	}

	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := op(ctx)
	if err != nil {
		cb.onFailure(err)
		return err
	}
	cb.onSuccess()
	return nil
}

// beforeCall rejects while open, or moves an expired open breaker to half-open
func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	if cb.state != StateOpen {
		cb.mu.Unlock()
		return nil
	}

	now := cb.clock()
	if now.Before(cb.nextAttemptTime) {
		retryAfter := cb.nextAttemptTime.Sub(now)
		cb.mu.Unlock()
		return &domain.CircuitOpenFault{Code: cb.code, RetryAfter: retryAfter}
	}

	cb.consecutiveSuccesses = 0
	from := cb.setState(StateHalfOpen)
	cb.mu.Unlock()
	cb.emit(from, StateHalfOpen)
	return nil
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	cb.consecutiveFailures = 0
	cb.lastError = nil
	if cb.state != StateHalfOpen {
		cb.mu.Unlock()
		return
	}

	cb.consecutiveSuccesses++
	if cb.consecutiveSuccesses < cb.successThreshold() {
		cb.mu.Unlock()
		return
	}
	cb.consecutiveSuccesses = 0
	from := cb.setState(StateClosed)
	cb.mu.Unlock()
	cb.emit(from, StateClosed)
}

func (cb *CircuitBreaker) onFailure(err error) {
	cb.mu.Lock()
	now := cb.clock()
	cb.consecutiveFailures++
	cb.consecutiveSuccesses = 0
	cb.lastFailureTime = now
	cb.lastError = err

	trip := false
	switch cb.state {
	case StateHalfOpen:
		// one strike while probing
		trip = true
	case StateClosed:
		trip = cb.consecutiveFailures >= cb.failureThreshold()
	}
	if !trip {
		cb.mu.Unlock()
		return
	}

	cb.nextAttemptTime = now.Add(cb.policy.RecoveryTimeout)
	from := cb.setState(StateOpen)
	cb.mu.Unlock()
	cb.emit(from, StateOpen)
}

// setState must be called with mu held; it returns the previous state
func (cb *CircuitBreaker) setState(to BreakerState) BreakerState {
	from := cb.state
	cb.state = to
	return from
}

func (cb *CircuitBreaker) emit(from, to BreakerState) {
	if cb.notify != nil && from != to {
		cb.notify(cb.code, from, to)
	}
}

func (cb *CircuitBreaker) failureThreshold() int {
	if cb.policy.FailureThreshold <= 0 {
		return 1
	}
	return cb.policy.FailureThreshold
}

func (cb *CircuitBreaker) successThreshold() int {
	if cb.policy.SuccessThreshold <= 0 {
		return 1
	}
	return cb.policy.SuccessThreshold
}

// State returns the stored state. An open breaker whose window elapsed is
// still reported open until the next call probes it.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetFailures returns the consecutive failure count
func (cb *CircuitBreaker) GetFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutiveFailures
}

// GetLastError returns the last failure seen by the breaker
func (cb *CircuitBreaker) GetLastError() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.lastError
}

// Policy returns the breaker configuration
func (cb *CircuitBreaker) Policy() domain.CircuitBreakerPolicy {
	return cb.policy
}

// Reset forces the breaker back to closed
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses = 0
	cb.lastError = nil
	cb.nextAttemptTime = time.Time{}
	from := cb.setState(StateClosed)
	cb.mu.Unlock()
	cb.emit(from, StateClosed)
}

// CircuitBreakerStats contains statistics for a circuit breaker
type CircuitBreakerStats struct {
	Code                 domain.ErrorCode `json:"code"`
	State                BreakerState     `json:"state"`
	Enabled              bool             `json:"enabled"`
	ConsecutiveFailures  int              `json:"consecutive_failures"`
	ConsecutiveSuccesses int              `json:"consecutive_successes"`
	FailureThreshold     int              `json:"failure_threshold"`
	LastFailure          time.Time        `json:"last_failure,omitempty"`
	NextAttempt          time.Time        `json:"next_attempt,omitempty"`
	CooldownLeft         time.Duration    `json:"cooldown_left,omitempty"`
}

// Stats returns a snapshot of the breaker
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	stat := CircuitBreakerStats{
		Code:                 cb.code,
		State:                cb.state,
		Enabled:              cb.policy.Enabled,
		ConsecutiveFailures:  cb.consecutiveFailures,
		ConsecutiveSuccesses: cb.consecutiveSuccesses,
		FailureThreshold:     cb.policy.FailureThreshold,
		LastFailure:          cb.lastFailureTime,
	}
	if cb.state == StateOpen {
		stat.NextAttempt = cb.nextAttemptTime
		if left := cb.nextAttemptTime.Sub(cb.clock()); left > 0 {
			stat.CooldownLeft = left
		}
	}
	return stat
}

// BreakerRegistry owns one breaker per error code. Breakers are created
// lazily and live as long as the registry.
type BreakerRegistry struct {
	breakers sync.Map // map[domain.ErrorCode]*CircuitBreaker
	clock    func() time.Time
	notify   TransitionFunc
}

// NewBreakerRegistry creates an empty registry. clock and notify may be nil.
func NewBreakerRegistry(clock func() time.Time, notify TransitionFunc) *BreakerRegistry {
	return &BreakerRegistry{clock: clock, notify: notify}
}

// Get returns the breaker for code, creating it with policy on first use
func (r *BreakerRegistry) Get(code domain.ErrorCode, policy domain.CircuitBreakerPolicy) *CircuitBreaker {
	if cb, ok := r.breakers.Load(code); ok {
		return cb.(*CircuitBreaker)
	}

	newCB := NewCircuitBreaker(code, policy, r.clock, r.notify)
	actual, _ := r.breakers.LoadOrStore(code, newCB)
	return actual.(*CircuitBreaker)
}

// Lookup returns the breaker for code if one was created
func (r *BreakerRegistry) Lookup(code domain.ErrorCode) (*CircuitBreaker, bool) {
	cb, ok := r.breakers.Load(code)
	if !ok {
		return nil, false
	}
	return cb.(*CircuitBreaker), true
}

// Stats returns the stats of every breaker ordered by code
func (r *BreakerRegistry) Stats() []CircuitBreakerStats {
	stats := make([]CircuitBreakerStats, 0)
	r.breakers.Range(func(_, value interface{}) bool {
		stats = append(stats, value.(*CircuitBreaker).Stats())
		return true
	})
	sort.Slice(stats, func(i, j int) bool { return stats[i].Code < stats[j].Code })
	return stats
}

// Reset closes the breaker for code. It returns false when none exists.
func (r *BreakerRegistry) Reset(code domain.ErrorCode) bool {
	cb, ok := r.Lookup(code)
	if !ok {
		return false
	}
	cb.Reset()
	return true
}

// Clear removes all circuit breakers
func (r *BreakerRegistry) Clear() {
	r.breakers.Range(func(key, _ interface{}) bool {
		r.breakers.Delete(key)
		return true
	})
}
