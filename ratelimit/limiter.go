package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/olbboy/blenderops/observe"
)

// Defaults applied by New when Config leaves a field zero.
const (
	DefaultRequestsPerMinute  = 60
	DefaultScriptingPerMinute = 10
	DefaultMaxConcurrent      = 5
)

// DefaultKey is the bucket used when CheckLimit gets an empty key.
const DefaultKey = "global"

// ScriptingKey is the bucket shared by all code-execution commands.
const ScriptingKey = "scripting"

// Bucket reclamation. The sweeper wakes every sweepInterval and drops
// buckets idle longer than staleAfter.
const (
	sweepInterval = time.Minute
	staleAfter    = 5 * time.Minute
)

// Config configures a Limiter.
type Config struct {
	// Disabled turns every check into an allow and skips the sweeper.
	Disabled bool

	// RequestsPerMinute is the default per-bucket budget. Zero or
	// negative falls back to DefaultRequestsPerMinute.
	RequestsPerMinute int

	// ScriptingPerMinute is the budget for the scripting bucket. Zero or
	// negative falls back to DefaultScriptingPerMinute.
	ScriptingPerMinute int

	// MaxConcurrent is the slot ceiling for in-flight requests. Zero or
	// negative falls back to DefaultMaxConcurrent.
	MaxConcurrent int

	// Logger receives denial and sweep events. Nil disables logging.
	Logger observe.Logger
}

// bucket is one token bucket. Tokens refill continuously in proportion to
// elapsed time rather than in whole-minute windows, so a client that
// drained its budget regains one token every interval/limit. Access is
// guarded by the limiter mutex.
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter applies per-key token buckets and a global concurrency ceiling
// to bridge requests.
//
// All methods are safe for concurrent use. Checks never block; Close only
// stops the background bucket sweeper, the limiter itself stays usable.
type Limiter struct {
	cfg Config
	log observe.Logger

	mu      sync.Mutex
	buckets map[string]*bucket

	concurrent atomic.Int64

	// nowFn is the clock. Tests substitute it to pin refill math.
	nowFn func() time.Time

	sweepStop chan struct{}
	sweepDone chan struct{}
	closeOnce sync.Once
}

// New creates a Limiter and, unless disabled, starts its bucket sweeper.
// Callers own the returned limiter and must Close it to stop the sweeper.
func New(cfg Config) *Limiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if cfg.ScriptingPerMinute <= 0 {
		cfg.ScriptingPerMinute = DefaultScriptingPerMinute
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	log := cfg.Logger
	if log == nil {
		log = observe.NopLogger()
	}

	l := &Limiter{
		cfg:     cfg,
		log:     log.WithComponent("ratelimit"),
		buckets: make(map[string]*bucket),
		nowFn:   time.Now,
	}
	if !cfg.Disabled {
		l.sweepStop = make(chan struct{})
		l.sweepDone = make(chan struct{})
		go l.sweeper()
	}
	return l
}

// CheckLimit refills the key's bucket, then either consumes one token or
// denies with a retry hint. An empty key maps to DefaultKey; perMinute
// zero or negative falls back to the configured default budget.
func (l *Limiter) CheckLimit(key string, perMinute int) Result {
	if l.cfg.Disabled {
		return Result{Allowed: true, Remaining: l.cfg.RequestsPerMinute}
	}
	if key == "" {
		key = DefaultKey
	}
	if perMinute <= 0 {
		perMinute = l.cfg.RequestsPerMinute
	}
	limit := float64(perMinute)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	b, ok := l.buckets[key]
	if !ok {
		// Fresh buckets start full.
		b = &bucket{tokens: limit, lastRefill: now}
		l.buckets[key] = b
	} else {
		b.tokens += now.Sub(b.lastRefill).Minutes() * limit
		if b.tokens > limit {
			b.tokens = limit
		}
		// The refill timestamp moves on every check, denied or not.
		b.lastRefill = now
	}

	if b.tokens < 1 {
		retry := retryAfter(b.tokens, limit)
		l.log.Warn(context.Background(), "rate limit exceeded",
			observe.Field{Key: "key", Value: key},
			observe.Field{Key: "limit_per_minute", Value: perMinute},
			observe.Field{Key: "retry_after_ms", Value: retry.Milliseconds()})
		return Result{
			Allowed:    false,
			RetryAfter: retry,
			Message:    fmt.Sprintf("retry in %.1fs or slow down request frequency", retry.Seconds()),
		}
	}

	b.tokens--
	return Result{Allowed: true, Remaining: int(b.tokens)}
}

// CheckScripting consumes from the scripting bucket, which is budgeted
// separately because code execution holds the bridge far longer than a
// query.
func (l *Limiter) CheckScripting() Result {
	return l.CheckLimit(ScriptingKey, l.cfg.ScriptingPerMinute)
}

// retryAfter returns how long until a bucket with the given fractional
// token count accrues one whole token, rounded up to the millisecond.
func retryAfter(tokens, limit float64) time.Duration {
	ms := math.Ceil((1 - tokens) * (60000 / limit))
	return time.Duration(ms) * time.Millisecond
}

// Stats returns a snapshot of limiter pressure.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	buckets := len(l.buckets)
	l.mu.Unlock()

	return Stats{
		ConcurrentRequests: int(l.concurrent.Load()),
		MaxConcurrent:      l.cfg.MaxConcurrent,
		Buckets:            buckets,
	}
}

// Reset clears every bucket and the concurrency count.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.buckets = make(map[string]*bucket)
	l.mu.Unlock()
	l.concurrent.Store(0)
	l.log.Debug(context.Background(), "limiter reset")
}

// Close stops the bucket sweeper and waits for it to exit. The limiter
// remains usable afterwards; idle buckets just stop being reclaimed.
// Close is idempotent and a no-op for disabled limiters.
func (l *Limiter) Close() {
	if l.sweepStop == nil {
		return
	}
	l.closeOnce.Do(func() {
		close(l.sweepStop)
		<-l.sweepDone
	})
}

func (l *Limiter) sweeper() {
	defer close(l.sweepDone)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.sweepStop:
			return
		}
	}
}

// sweep drops buckets that have not been checked within staleAfter.
func (l *Limiter) sweep() {
	now := l.nowFn()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		if now.Sub(b.lastRefill) >= staleAfter {
			delete(l.buckets, key)
			removed++
		}
	}
	if removed > 0 {
		l.log.Debug(context.Background(), "swept stale buckets",
			observe.Field{Key: "removed", Value: removed},
			observe.Field{Key: "remaining", Value: len(l.buckets)})
	}
}
