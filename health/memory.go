package health

import (
	"context"
	"fmt"
	"runtime"
)

// MemoryCheckerConfig configures the process memory checker.
type MemoryCheckerConfig struct {
	// WarningThreshold is the heap usage ratio that reports degraded.
	// Between 0 and 1. Default 0.8.
	WarningThreshold float64

	// CriticalThreshold is the heap usage ratio that reports unhealthy.
	// Between 0 and 1. Default 0.95.
	CriticalThreshold float64

	// MaxAlloc is the allocation budget in bytes the ratios are computed
	// against. Zero means measure against memory obtained from the OS.
	MaxAlloc uint64
}

// MemoryChecker watches process heap usage. Cached Blender payloads are
// the main heap consumer in this module, so memory pressure usually means
// the cache limits are set too high for the host.
type MemoryChecker struct {
	cfg MemoryCheckerConfig
}

var _ Checker = (*MemoryChecker)(nil)

// NewMemoryChecker builds a memory checker, clamping nonsense thresholds
// back to the defaults.
func NewMemoryChecker(cfg MemoryCheckerConfig) *MemoryChecker {
	if cfg.WarningThreshold <= 0 || cfg.WarningThreshold >= 1 {
		cfg.WarningThreshold = 0.8
	}
	if cfg.CriticalThreshold <= 0 || cfg.CriticalThreshold >= 1 {
		cfg.CriticalThreshold = 0.95
	}
	if cfg.CriticalThreshold < cfg.WarningThreshold {
		cfg.CriticalThreshold = cfg.WarningThreshold + 0.1
		if cfg.CriticalThreshold > 1 {
			cfg.CriticalThreshold = 0.99
		}
	}
	return &MemoryChecker{cfg: cfg}
}

// Name identifies the component.
func (m *MemoryChecker) Name() string {
	return "memory"
}

// Check reads the runtime memory stats and grades heap usage against the
// thresholds.
func (m *MemoryChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	maxAlloc := m.cfg.MaxAlloc
	if maxAlloc == 0 {
		maxAlloc = stats.Sys
	}
	if maxAlloc == 0 {
		return Healthy("memory stats unavailable").WithDetails(map[string]any{
			"alloc":  stats.Alloc,
			"sys":    stats.Sys,
			"num_gc": stats.NumGC,
		})
	}

	usageRatio := float64(stats.Alloc) / float64(maxAlloc)
	details := map[string]any{
		"alloc_bytes":   stats.Alloc,
		"alloc_mb":      float64(stats.Alloc) / (1024 * 1024),
		"max_alloc":     maxAlloc,
		"usage_percent": usageRatio * 100,
		"heap_objects":  stats.HeapObjects,
		"num_gc":        stats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	switch {
	case usageRatio >= m.cfg.CriticalThreshold:
		return Unhealthy(
			fmt.Sprintf("memory usage critical: %.1f%%", usageRatio*100),
			ErrCheckFailed,
		).WithDetails(details)
	case usageRatio >= m.cfg.WarningThreshold:
		return Degraded(
			fmt.Sprintf("memory usage high: %.1f%%", usageRatio*100),
		).WithDetails(details)
	default:
		return Healthy(
			fmt.Sprintf("memory usage normal: %.1f%%", usageRatio*100),
		).WithDetails(details)
	}
}
