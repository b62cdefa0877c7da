package cache

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/olbboy/blenderops/observe"
)

// Defaults applied by New when Config leaves a field zero.
const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 1000
)

// Config configures a Cache.
type Config struct {
	// Disabled turns the cache into a transparent no-op: every lookup
	// misses, every store is dropped, and no stats accumulate.
	Disabled bool

	// DefaultTTL applies to entries stored without an explicit TTL.
	// Zero or negative falls back to the package-level DefaultTTL
	// constant.
	DefaultTTL time.Duration

	// MaxEntries bounds the store. A store at capacity evicts exactly one
	// entry before accepting another value. Zero or negative falls back
	// to DefaultMaxEntries.
	MaxEntries int

	// Logger receives a debug event per state transition. Nil disables
	// logging.
	Logger observe.Logger
}

// Cache is a bounded in-memory key/value store with per-entry TTL,
// least-used eviction, and hit/miss accounting.
//
// Expiry is lazy: an entry past its TTL stays in the map until a read
// or an eviction scan observes it. Eviction runs only when a store at
// capacity receives a Set and removes exactly one entry: the first
// expired entry the scan encounters, otherwise the entry with the
// fewest hits, oldest first on ties.
//
// All methods are safe for concurrent use. Compute functions passed to
// GetOrSet and GetOrLoad run without the store lock held.
type Cache[V any] struct {
	cfg Config
	log observe.Logger

	mu      sync.Mutex
	entries map[string]*entry[V]

	stats counters
	group singleflight.Group

	// nowFn is the clock. Tests substitute it to pin entry ages.
	nowFn func() time.Time
}

// New creates a Cache, applying defaults for unset Config fields.
func New[V any](cfg Config) *Cache[V] {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	log := cfg.Logger
	if log == nil {
		log = observe.NopLogger()
	}
	return &Cache[V]{
		cfg:     cfg,
		log:     log.WithComponent("cache"),
		entries: make(map[string]*entry[V]),
		nowFn:   time.Now,
	}
}

// Get retrieves a live value. An entry found past its TTL is purged and
// reported as a miss. Hits bump the entry's use count.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if c.cfg.Disabled {
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.stats.misses.Inc()
		c.log.Debug(context.Background(), "cache miss",
			observe.Field{Key: "key", Value: key})
		return zero, false
	}
	if e.expiredAt(c.nowFn()) {
		delete(c.entries, key)
		c.stats.misses.Inc()
		c.log.Debug(context.Background(), "cache entry expired",
			observe.Field{Key: "key", Value: key},
			observe.Field{Key: "ttl_ms", Value: e.ttl.Milliseconds()})
		return zero, false
	}

	e.hits++
	c.stats.hits.Inc()
	c.log.Debug(context.Background(), "cache hit",
		observe.Field{Key: "key", Value: key},
		observe.Field{Key: "hits", Value: e.hits})
	return e.value, true
}

// Set stores a value under the default TTL. An existing entry under the
// same key is overwritten, resetting its hit count and age.
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, 0)
}

// SetWithTTL stores a value. TTL zero or negative falls back to the
// configured default.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	if c.cfg.Disabled {
		return
	}
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Capacity is checked before the insert, even when the key already
	// exists and the store would not grow.
	if len(c.entries) >= c.cfg.MaxEntries {
		c.evictLocked()
	}

	c.entries[key] = &entry[V]{
		value:     value,
		createdAt: c.nowFn(),
		ttl:       ttl,
	}
	c.log.Debug(context.Background(), "cache set",
		observe.Field{Key: "key", Value: key},
		observe.Field{Key: "ttl_ms", Value: ttl.Milliseconds()},
		observe.Field{Key: "size", Value: len(c.entries)})
}

// evictLocked removes exactly one entry: the first expired entry the scan
// encounters, otherwise the entry with the fewest hits, breaking ties by
// oldest creation time. Caller holds c.mu.
func (c *Cache[V]) evictLocked() {
	now := c.nowFn()

	var (
		victim string
		ve     *entry[V]
	)
	for key, e := range c.entries {
		if e.expiredAt(now) {
			delete(c.entries, key)
			c.stats.evictions.Inc()
			c.log.Debug(context.Background(), "evicted expired entry",
				observe.Field{Key: "key", Value: key})
			return
		}
		if ve == nil || e.hits < ve.hits ||
			(e.hits == ve.hits && e.createdAt.Before(ve.createdAt)) {
			victim, ve = key, e
		}
	}
	if ve == nil {
		return
	}
	delete(c.entries, victim)
	c.stats.evictions.Inc()
	c.log.Debug(context.Background(), "evicted least-used entry",
		observe.Field{Key: "key", Value: victim},
		observe.Field{Key: "hits", Value: ve.hits})
}

// Has reports whether a live value exists for key. Like Get it purges an
// expired entry, but it touches neither hit/miss stats nor the entry's
// use count.
func (c *Cache[V]) Has(key string) bool {
	if c.cfg.Disabled {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	if e.expiredAt(c.nowFn()) {
		delete(c.entries, key)
		return false
	}
	return true
}

// Delete removes one entry. It reports whether the key was present,
// expired or not.
func (c *Cache[V]) Delete(key string) bool {
	if c.cfg.Disabled {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// InvalidatePattern removes every entry whose key matches the regular
// expression and returns how many were removed. Removals do not count as
// evictions.
func (c *Cache[V]) InvalidatePattern(pattern string) (int, error) {
	if c.cfg.Disabled {
		return 0, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("cache: compile pattern %q: %w", pattern, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if re.MatchString(key) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.log.Debug(context.Background(), "cache invalidated",
			observe.Field{Key: "pattern", Value: pattern},
			observe.Field{Key: "removed", Value: removed})
	}
	return removed, nil
}

// InvalidateScene removes every scene-scoped entry and returns the count.
func (c *Cache[V]) InvalidateScene() int {
	n, _ := c.InvalidatePattern(ScenePattern)
	return n
}

// InvalidateObject removes the named object's entries, or every
// object-scoped entry when name is empty, and returns the count.
func (c *Cache[V]) InvalidateObject(name string) int {
	n, _ := c.InvalidatePattern(ObjectPattern(name))
	return n
}

// Clear removes all entries. Stats counters are kept.
func (c *Cache[V]) Clear() {
	if c.cfg.Disabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := len(c.entries)
	c.entries = make(map[string]*entry[V])
	c.log.Debug(context.Background(), "cache cleared",
		observe.Field{Key: "removed", Value: removed})
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cap returns the configured entry limit.
func (c *Cache[V]) Cap() int {
	return c.cfg.MaxEntries
}

// Stats returns a snapshot of the accumulated counters and the live size.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	size := len(c.entries)
	c.mu.Unlock()
	return c.stats.snapshot(size)
}

// ResetStats zeroes hits, misses, and evictions. The store is untouched.
func (c *Cache[V]) ResetStats() {
	c.stats.reset()
}

// GetOrSet returns the cached value for key, or runs compute and stores
// its result under ttl (zero means the configured default). Compute
// errors propagate and nothing is stored.
//
// Concurrent misses for the same key each run compute; use GetOrLoad
// when a single flight per key matters.
func (c *Cache[V]) GetOrSet(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (V, error)) (V, error) {
	var zero V
	if compute == nil {
		return zero, ErrNilCompute
	}

	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := compute(ctx)
	if err != nil {
		return zero, err
	}
	c.SetWithTTL(key, v, ttl)
	return v, nil
}

// GetOrLoad is GetOrSet with singleflight semantics: concurrent callers
// for the same key share one compute invocation and its result.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (V, error)) (V, error) {
	var zero V
	if compute == nil {
		return zero, ErrNilCompute
	}
	if c.cfg.Disabled {
		return compute(ctx)
	}

	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// A flight that finished between the miss above and this call
		// may have stored the value already.
		if v, ok := c.peek(key); ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.SetWithTTL(key, v, ttl)
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(V), nil
}

// peek returns a live value without touching hit/miss accounting or the
// entry's use count. Like Has it purges an expired entry.
func (c *Cache[V]) peek(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if e.expiredAt(c.nowFn()) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}
