package cache

import (
	"sync"
	"time"
)

// Cache stores the last good result of an operation so it can be served when
// the live path fails. Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value stored under key and whether it is still fresh
	Get(key string) (interface{}, bool)

	// Set stores value under key for ttl
	Set(key string, value interface{}, ttl time.Duration)

	// Age returns how long ago key was written
	Age(key string) (time.Duration, bool)

	Delete(key string)
	Clear()
	Size() int

	// Stop ends background cleanup
	Stop()
}

type entry struct {
	value     interface{}
	storedAt  time.Time
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// InMemoryCache is a map-backed Cache with periodic eviction
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	clock   func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// Option configures an InMemoryCache
type Option func(*InMemoryCache)

// WithClock replaces time.Now, mainly for tests
func WithClock(clock func() time.Time) Option {
	return func(c *InMemoryCache) {
		c.clock = clock
	}
}

// NewInMemoryCache creates a cache that evicts expired entries every
// cleanupInterval. A non-positive interval disables the cleanup goroutine;
// expired entries are then only hidden from Get.
func NewInMemoryCache(cleanupInterval time.Duration, opts ...Option) *InMemoryCache {
	c := &InMemoryCache{
		entries: make(map[string]*entry),
		clock:   time.Now,
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if cleanupInterval > 0 {
		go c.evictLoop(cleanupInterval)
	}
	return c
}

// Get returns the value for key unless it expired
func (c *InMemoryCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || e.expired(c.clock()) {
		return nil, false
	}
	return e.value, true
}

// Set stores value for ttl, replacing any previous entry
func (c *InMemoryCache) Set(key string, value interface{}, ttl time.Duration) {
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{
		value:     value,
		storedAt:  now,
		expiresAt: now.Add(ttl),
	}
}

// Age returns the time since key was stored, for fresh entries only
func (c *InMemoryCache) Age(key string) (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.clock()
	e, ok := c.entries[key]
	if !ok || e.expired(now) {
		return 0, false
	}
	return now.Sub(e.storedAt), true
}

// Delete removes key
func (c *InMemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Clear removes every entry
func (c *InMemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
}

// Size counts stored entries, including expired ones not yet evicted
func (c *InMemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (c *InMemoryCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *InMemoryCache) evictLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *InMemoryCache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
}
