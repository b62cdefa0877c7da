package health

import (
	"context"
	"errors"
	"testing"
)

func TestNewMemoryChecker_Defaults(t *testing.T) {
	checker := NewMemoryChecker(MemoryCheckerConfig{})

	if checker.cfg.WarningThreshold != 0.8 {
		t.Errorf("WarningThreshold = %v, want 0.8", checker.cfg.WarningThreshold)
	}
	if checker.cfg.CriticalThreshold != 0.95 {
		t.Errorf("CriticalThreshold = %v, want 0.95", checker.cfg.CriticalThreshold)
	}
}

func TestNewMemoryChecker_ClampsNonsense(t *testing.T) {
	checker := NewMemoryChecker(MemoryCheckerConfig{WarningThreshold: 1.5})
	if checker.cfg.WarningThreshold != 0.8 {
		t.Errorf("WarningThreshold = %v, want the 0.8 default", checker.cfg.WarningThreshold)
	}

	checker = NewMemoryChecker(MemoryCheckerConfig{
		WarningThreshold:  0.9,
		CriticalThreshold: 0.7,
	})
	if checker.cfg.CriticalThreshold <= checker.cfg.WarningThreshold {
		t.Errorf("CriticalThreshold = %v, want above warning %v",
			checker.cfg.CriticalThreshold, checker.cfg.WarningThreshold)
	}
}

func TestMemoryChecker_Check(t *testing.T) {
	checker := NewMemoryChecker(MemoryCheckerConfig{})

	if checker.Name() != "memory" {
		t.Errorf("Name = %q, want memory", checker.Name())
	}

	result := checker.Check(context.Background())
	if result.Details == nil {
		t.Fatal("Details is nil")
	}
	for _, key := range []string{"alloc_bytes", "usage_percent", "num_gc", "goroutines"} {
		if _, ok := result.Details[key]; !ok {
			t.Errorf("Details missing %q: %v", key, result.Details)
		}
	}
}

func TestMemoryChecker_CancelledContext(t *testing.T) {
	checker := NewMemoryChecker(MemoryCheckerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := checker.Check(ctx)
	if result.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy after cancel", result.Status)
	}
	if !errors.Is(result.Error, context.Canceled) {
		t.Errorf("Error = %v, want context.Canceled", result.Error)
	}
}

func TestMemoryChecker_TinyBudgetIsCritical(t *testing.T) {
	// Any live Go test allocates far more than 1KB, so this must trip
	// the critical threshold.
	checker := NewMemoryChecker(MemoryCheckerConfig{
		MaxAlloc:          1024,
		WarningThreshold:  0.5,
		CriticalThreshold: 0.8,
	})

	result := checker.Check(context.Background())
	if result.Status != StatusUnhealthy {
		t.Fatalf("Status = %v, want unhealthy against a 1KB budget", result.Status)
	}
	if !errors.Is(result.Error, ErrCheckFailed) {
		t.Errorf("Error = %v, want ErrCheckFailed", result.Error)
	}
	if result.Details["max_alloc"] != uint64(1024) {
		t.Errorf("max_alloc = %v, want 1024", result.Details["max_alloc"])
	}
}
