package ratelimit

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/olbboy/blenderops/observe"
)

// fakeClock pins refill math so bucket tests are deterministic.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// newTestLimiter returns a limiter on a fake clock. The sweeper is stopped
// so nothing else reads the clock; sweep tests call sweep directly.
func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *fakeClock) {
	t.Helper()
	l := New(cfg)
	l.Close()
	clk := newFakeClock()
	l.nowFn = clk.Now
	return l, clk
}

func TestLimiter_AllowsUpToBudget(t *testing.T) {
	l, _ := newTestLimiter(t, Config{RequestsPerMinute: 60})

	for i := 0; i < 60; i++ {
		res := l.CheckLimit("", 0)
		if !res.Allowed {
			t.Fatalf("request %d denied, want the full 60 allowed", i+1)
		}
		if want := 59 - i; res.Remaining != want {
			t.Fatalf("request %d Remaining = %d, want %d", i+1, res.Remaining, want)
		}
	}

	res := l.CheckLimit("", 0)
	if res.Allowed {
		t.Fatal("61st request allowed, want denial")
	}
	if res.RetryAfter != time.Second {
		t.Errorf("RetryAfter = %v, want 1s", res.RetryAfter)
	}
	if res.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", res.Remaining)
	}
	if !strings.Contains(res.Message, "slow down") {
		t.Errorf("Message = %q, want backoff advice", res.Message)
	}
}

func TestLimiter_RefillAfterRetryAfter(t *testing.T) {
	l, clk := newTestLimiter(t, Config{RequestsPerMinute: 60})

	for i := 0; i < 60; i++ {
		l.CheckLimit("", 0)
	}
	denied := l.CheckLimit("", 0)
	if denied.Allowed {
		t.Fatal("bucket not exhausted")
	}

	clk.Advance(denied.RetryAfter)
	if res := l.CheckLimit("", 0); !res.Allowed {
		t.Errorf("denied after waiting the advertised %v", denied.RetryAfter)
	}
}

func TestLimiter_PartialRefill(t *testing.T) {
	l, clk := newTestLimiter(t, Config{RequestsPerMinute: 60})

	for i := 0; i < 60; i++ {
		l.CheckLimit("", 0)
	}

	// 400ms refills 0.4 tokens: still short of a whole one.
	clk.Advance(400 * time.Millisecond)
	res := l.CheckLimit("", 0)
	if res.Allowed {
		t.Fatal("allowed on 0.4 tokens")
	}
	if want := 600 * time.Millisecond; res.RetryAfter != want {
		t.Errorf("RetryAfter = %v, want %v", res.RetryAfter, want)
	}

	clk.Advance(res.RetryAfter)
	if res := l.CheckLimit("", 0); !res.Allowed {
		t.Error("denied after the partial refill completed")
	}
}

func TestLimiter_DeniedChecksConsumeNothing(t *testing.T) {
	l, clk := newTestLimiter(t, Config{RequestsPerMinute: 60})

	for i := 0; i < 60; i++ {
		l.CheckLimit("", 0)
	}

	// Repeated denials must not push the next token further away.
	for i := 0; i < 5; i++ {
		if res := l.CheckLimit("", 0); res.Allowed {
			t.Fatalf("denial %d unexpectedly allowed", i+1)
		}
	}

	clk.Advance(time.Second)
	if res := l.CheckLimit("", 0); !res.Allowed {
		t.Error("denied after 1s despite denials consuming nothing")
	}
}

func TestLimiter_PerCallOverride(t *testing.T) {
	l, _ := newTestLimiter(t, Config{RequestsPerMinute: 60})

	for i := 0; i < 2; i++ {
		if res := l.CheckLimit("renders", 2); !res.Allowed {
			t.Fatalf("request %d denied under override budget 2", i+1)
		}
	}

	res := l.CheckLimit("renders", 2)
	if res.Allowed {
		t.Fatal("3rd request allowed under override budget 2")
	}
	if want := 30 * time.Second; res.RetryAfter != want {
		t.Errorf("RetryAfter = %v, want %v", res.RetryAfter, want)
	}
}

func TestLimiter_SeparateBuckets(t *testing.T) {
	l, _ := newTestLimiter(t, Config{})

	if res := l.CheckLimit("a", 1); !res.Allowed {
		t.Fatal("first request on bucket a denied")
	}
	if res := l.CheckLimit("a", 1); res.Allowed {
		t.Fatal("bucket a not exhausted")
	}
	if res := l.CheckLimit("b", 1); !res.Allowed {
		t.Error("bucket b denied; exhaustion leaked across buckets")
	}
}

func TestLimiter_EmptyKeyIsGlobalBucket(t *testing.T) {
	l, _ := newTestLimiter(t, Config{})

	if res := l.CheckLimit("", 1); !res.Allowed {
		t.Fatal("first request denied")
	}
	if res := l.CheckLimit(DefaultKey, 1); res.Allowed {
		t.Error("empty key and DefaultKey hit different buckets")
	}
}

func TestLimiter_ScriptingBucketSeparate(t *testing.T) {
	l, _ := newTestLimiter(t, Config{RequestsPerMinute: 60, ScriptingPerMinute: 10})

	for i := 0; i < 10; i++ {
		if res := l.CheckScripting(); !res.Allowed {
			t.Fatalf("scripting request %d denied, want the full 10 allowed", i+1)
		}
	}

	res := l.CheckScripting()
	if res.Allowed {
		t.Fatal("11th scripting request allowed")
	}
	if want := 6 * time.Second; res.RetryAfter != want {
		t.Errorf("scripting RetryAfter = %v, want %v", res.RetryAfter, want)
	}

	// The request bucket is untouched by scripting traffic.
	if res := l.CheckLimit("", 0); !res.Allowed {
		t.Error("request bucket drained by scripting checks")
	}
}

func TestLimiter_RefillClampsAtLimit(t *testing.T) {
	l, clk := newTestLimiter(t, Config{RequestsPerMinute: 60})

	l.CheckLimit("", 0) // 59 left

	// An hour of idle time refills to the cap, not to 3600 tokens.
	clk.Advance(time.Hour)
	if res := l.CheckLimit("", 0); res.Remaining != 59 {
		t.Errorf("Remaining after long idle = %d, want 59 (clamped)", res.Remaining)
	}
}

func TestLimiter_Sweep(t *testing.T) {
	l, clk := newTestLimiter(t, Config{})

	l.CheckLimit("stale", 0)
	clk.Advance(staleAfter)
	l.CheckLimit("fresh", 0)

	l.sweep()

	if got := l.Stats().Buckets; got != 1 {
		t.Errorf("Buckets after sweep = %d, want 1 (stale removed, fresh kept)", got)
	}

	// A swept key starts over with a full bucket.
	if res := l.CheckLimit("stale", 0); res.Remaining != DefaultRequestsPerMinute-1 {
		t.Errorf("recreated bucket Remaining = %d, want %d", res.Remaining, DefaultRequestsPerMinute-1)
	}
}

func TestLimiter_SweepKeepsActiveBuckets(t *testing.T) {
	l, clk := newTestLimiter(t, Config{})

	l.CheckLimit("busy", 0)
	clk.Advance(staleAfter - time.Second)
	l.CheckLimit("busy", 0) // refresh lastRefill
	clk.Advance(staleAfter - time.Second)

	l.sweep()

	if got := l.Stats().Buckets; got != 1 {
		t.Errorf("Buckets = %d, want 1 (recently checked bucket kept)", got)
	}
}

func TestLimiter_SweeperLifecycle(t *testing.T) {
	l := New(Config{})

	// Close must stop the sweeper promptly and be idempotent.
	l.Close()
	l.Close()

	// The limiter keeps working after Close.
	if res := l.CheckLimit("", 0); !res.Allowed {
		t.Error("CheckLimit denied after Close")
	}
}

func TestLimiter_Reset(t *testing.T) {
	l, _ := newTestLimiter(t, Config{RequestsPerMinute: 1, MaxConcurrent: 2})

	l.CheckLimit("", 0)
	if res := l.CheckLimit("", 0); res.Allowed {
		t.Fatal("bucket not exhausted before reset")
	}
	l.Acquire()
	l.Acquire()

	l.Reset()

	s := l.Stats()
	if s.Buckets != 0 {
		t.Errorf("Buckets after reset = %d, want 0", s.Buckets)
	}
	if s.ConcurrentRequests != 0 {
		t.Errorf("ConcurrentRequests after reset = %d, want 0", s.ConcurrentRequests)
	}
	if res := l.CheckLimit("", 0); !res.Allowed {
		t.Error("denied right after reset")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	l := New(Config{Disabled: true, RequestsPerMinute: 1, MaxConcurrent: 1})
	defer l.Close()

	for i := 0; i < 100; i++ {
		if res := l.CheckLimit("", 0); !res.Allowed {
			t.Fatalf("disabled limiter denied request %d", i+1)
		}
	}
	if res := l.CheckScripting(); !res.Allowed {
		t.Error("disabled limiter denied scripting")
	}
	for i := 0; i < 10; i++ {
		if !l.Acquire() {
			t.Fatal("disabled limiter denied a slot")
		}
	}
	l.Release()
	if res := l.CheckConcurrency(); !res.Allowed {
		t.Error("disabled limiter denied concurrency check")
	}
	if got := l.Stats().Buckets; got != 0 {
		t.Errorf("disabled limiter accumulated %d buckets, want 0", got)
	}
}

func TestLimiter_DefaultsApplied(t *testing.T) {
	l := New(Config{})
	defer l.Close()

	if l.cfg.RequestsPerMinute != DefaultRequestsPerMinute {
		t.Errorf("RequestsPerMinute = %d, want %d", l.cfg.RequestsPerMinute, DefaultRequestsPerMinute)
	}
	if l.cfg.ScriptingPerMinute != DefaultScriptingPerMinute {
		t.Errorf("ScriptingPerMinute = %d, want %d", l.cfg.ScriptingPerMinute, DefaultScriptingPerMinute)
	}
	if l.cfg.MaxConcurrent != DefaultMaxConcurrent {
		t.Errorf("MaxConcurrent = %d, want %d", l.cfg.MaxConcurrent, DefaultMaxConcurrent)
	}
}

func TestLimiter_DenialLogged(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{
		RequestsPerMinute: 1,
		Logger:            observe.NewLoggerWithWriter("debug", &buf),
	})
	defer l.Close()

	l.CheckLimit("", 0)
	l.CheckLimit("", 0)

	out := buf.String()
	if !strings.Contains(out, `"msg":"rate limit exceeded"`) {
		t.Errorf("denial not logged, got: %s", out)
	}
	if !strings.Contains(out, `"component":"ratelimit"`) {
		t.Errorf("log missing component field, got: %s", out)
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		tokens float64
		limit  float64
		want   time.Duration
	}{
		{0, 60, time.Second},
		{0.5, 60, 500 * time.Millisecond},
		{0.75, 60, 250 * time.Millisecond},
		{0, 10, 6 * time.Second},
		{0.5, 10, 3 * time.Second},
		{0, 2, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := retryAfter(tt.tokens, tt.limit); got != tt.want {
			t.Errorf("retryAfter(%v, %v) = %v, want %v", tt.tokens, tt.limit, got, tt.want)
		}
	}
}
