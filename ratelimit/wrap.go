package ratelimit

import (
	"context"
	"fmt"
)

// Do runs op under the request rate limit and a concurrency slot.
// perMinute zero or negative uses the configured default budget.
//
// The bucket check runs first so a flooding client is turned away before
// it can hold a slot. The slot is released on every exit path, including
// op panics unwinding through the deferred release.
func Do[T any](ctx context.Context, l *Limiter, key string, perMinute int, op func(context.Context) (T, error)) (T, error) {
	var zero T

	if res := l.CheckLimit(key, perMinute); !res.Allowed {
		return zero, fmt.Errorf("%w: %s", ErrRateLimited, res.Message)
	}
	if !l.Acquire() {
		return zero, fmt.Errorf("%w: wait for in-flight requests to finish", ErrConcurrencyExceeded)
	}
	defer l.Release()

	return op(ctx)
}

// DoScripting is Do drawing from the scripting bucket instead of the
// per-key request buckets.
func DoScripting[T any](ctx context.Context, l *Limiter, op func(context.Context) (T, error)) (T, error) {
	var zero T

	if res := l.CheckScripting(); !res.Allowed {
		return zero, fmt.Errorf("%w: %s", ErrRateLimited, res.Message)
	}
	if !l.Acquire() {
		return zero, fmt.Errorf("%w: wait for in-flight requests to finish", ErrConcurrencyExceeded)
	}
	defer l.Release()

	return op(ctx)
}
