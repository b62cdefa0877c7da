package ratelimit

import (
	"context"

	"github.com/olbboy/blenderops/observe"
)

// CheckConcurrency reports whether a slot is free without taking one.
// Use Acquire to actually claim a slot.
func (l *Limiter) CheckConcurrency() Result {
	if l.cfg.Disabled {
		return Result{Allowed: true, Remaining: l.cfg.MaxConcurrent}
	}

	cur := int(l.concurrent.Load())
	if cur >= l.cfg.MaxConcurrent {
		return Result{
			Allowed: false,
			Message: "wait for in-flight requests to finish",
		}
	}
	return Result{Allowed: true, Remaining: l.cfg.MaxConcurrent - cur}
}

// Acquire claims a concurrency slot. It reports false when every slot is
// taken. Each successful Acquire must be paired with one Release.
func (l *Limiter) Acquire() bool {
	if l.cfg.Disabled {
		return true
	}
	max := int64(l.cfg.MaxConcurrent)

	for {
		cur := l.concurrent.Load()
		if cur >= max {
			l.log.Warn(context.Background(), "concurrency limit reached",
				observe.Field{Key: "in_flight", Value: cur},
				observe.Field{Key: "max_concurrent", Value: max})
			return false
		}
		if l.concurrent.CompareAndSwap(cur, cur+1) {
			l.log.Debug(context.Background(), "concurrency slot acquired",
				observe.Field{Key: "in_flight", Value: cur + 1},
				observe.Field{Key: "max_concurrent", Value: max})
			return true
		}
	}
}

// Release frees a slot claimed by Acquire. A release without a matching
// acquire is logged and dropped so the count never goes negative.
func (l *Limiter) Release() {
	if l.cfg.Disabled {
		return
	}

	for {
		cur := l.concurrent.Load()
		if cur <= 0 {
			l.log.Warn(context.Background(), "release without matching acquire")
			return
		}
		if l.concurrent.CompareAndSwap(cur, cur-1) {
			l.log.Debug(context.Background(), "concurrency slot released",
				observe.Field{Key: "in_flight", Value: cur - 1})
			return
		}
	}
}
