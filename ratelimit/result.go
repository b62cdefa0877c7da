package ratelimit

import "time"

// Result is the outcome of one limit check. Checks never block; a denied
// Result tells the caller how long to back off instead.
type Result struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// RetryAfter is the advisory wait until a whole token is available
	// again. Zero when allowed.
	RetryAfter time.Duration

	// Remaining is the whole-token budget left after this check, or the
	// number of free concurrency slots for concurrency checks.
	Remaining int

	// Message carries human-readable backoff advice when denied.
	Message string
}

// Stats is a point-in-time snapshot of limiter pressure.
type Stats struct {
	// ConcurrentRequests is the number of slots currently held.
	ConcurrentRequests int `json:"concurrent_requests"`

	// MaxConcurrent is the configured slot ceiling.
	MaxConcurrent int `json:"max_concurrent"`

	// Buckets is the number of live token buckets, including stale ones
	// the sweeper has not reclaimed yet.
	Buckets int `json:"buckets"`
}
