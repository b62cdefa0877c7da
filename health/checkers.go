package health

import (
	"context"
	"fmt"
	"time"

	"github.com/olbboy/blenderops/cache"
	"github.com/olbboy/blenderops/ratelimit"
)

// cacheWarnOccupancy is the fill ratio at which the cache counts as
// degraded. A full cache still works, it just evicts on every store.
const cacheWarnOccupancy = 0.9

// Pinger is the bridge surface the checker needs. *bridge.Client
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BridgeChecker probes the Blender connection with a ping command.
type BridgeChecker struct {
	pinger Pinger
}

var _ Checker = (*BridgeChecker)(nil)

// NewBridgeChecker builds a checker around any Pinger.
func NewBridgeChecker(p Pinger) *BridgeChecker {
	return &BridgeChecker{pinger: p}
}

// Name identifies the component.
func (b *BridgeChecker) Name() string {
	return "bridge"
}

// Check pings Blender and reports the round-trip time.
func (b *BridgeChecker) Check(ctx context.Context) Result {
	start := time.Now()
	if err := b.pinger.Ping(ctx); err != nil {
		return Unhealthy("blender unreachable", err)
	}
	rtt := time.Since(start)
	return Healthy("blender responding").WithDetails(map[string]any{
		"rtt_ms": float64(rtt.Microseconds()) / 1000.0,
	})
}

// CacheInfo is the cache surface the checker needs. *cache.Cache[V]
// satisfies it for any V.
type CacheInfo interface {
	Stats() cache.Stats
	Cap() int
}

// CacheChecker reports response cache pressure and effectiveness.
type CacheChecker struct {
	info CacheInfo
}

var _ Checker = (*CacheChecker)(nil)

// NewCacheChecker builds a checker around a response cache.
func NewCacheChecker(info CacheInfo) *CacheChecker {
	return &CacheChecker{info: info}
}

// Name identifies the component.
func (c *CacheChecker) Name() string {
	return "cache"
}

// Check reads the cache counters. A nearly full cache is degraded, never
// unhealthy, since eviction keeps it serving.
func (c *CacheChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	stats := c.info.Stats()
	capacity := c.info.Cap()

	details := map[string]any{
		"size":      stats.Size,
		"capacity":  capacity,
		"hits":      stats.Hits,
		"misses":    stats.Misses,
		"evictions": stats.Evictions,
		"hit_rate":  stats.HitRate,
	}

	if capacity <= 0 {
		return Healthy("cache unbounded").WithDetails(details)
	}

	occupancy := float64(stats.Size) / float64(capacity)
	details["occupancy_percent"] = occupancy * 100

	if occupancy >= cacheWarnOccupancy {
		return Degraded(
			fmt.Sprintf("cache nearly full: %d of %d entries", stats.Size, capacity),
		).WithDetails(details)
	}
	return Healthy(
		fmt.Sprintf("cache at %.1f%% of capacity", occupancy*100),
	).WithDetails(details)
}

// LimiterInfo is the limiter surface the checker needs. *ratelimit.Limiter
// satisfies it.
type LimiterInfo interface {
	Stats() ratelimit.Stats
}

// LimiterChecker reports concurrency slot occupancy and bucket count.
type LimiterChecker struct {
	info LimiterInfo
}

var _ Checker = (*LimiterChecker)(nil)

// NewLimiterChecker builds a checker around a rate limiter.
func NewLimiterChecker(info LimiterInfo) *LimiterChecker {
	return &LimiterChecker{info: info}
}

// Name identifies the component.
func (l *LimiterChecker) Name() string {
	return "ratelimit"
}

// Check reads limiter occupancy. A saturated concurrency cap is degraded,
// not unhealthy: the limiter is shedding load exactly as configured.
func (l *LimiterChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	stats := l.info.Stats()
	details := map[string]any{
		"in_flight":      stats.ConcurrentRequests,
		"max_concurrent": stats.MaxConcurrent,
		"buckets":        stats.Buckets,
	}

	if stats.MaxConcurrent > 0 && stats.ConcurrentRequests >= stats.MaxConcurrent {
		return Degraded("all concurrency slots in use").WithDetails(details)
	}
	return Healthy(
		fmt.Sprintf("%d of %d slots in use", stats.ConcurrentRequests, stats.MaxConcurrent),
	).WithDetails(details)
}
