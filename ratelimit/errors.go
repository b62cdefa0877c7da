package ratelimit

import "errors"

// Sentinel errors for rate limit denials.
var (
	// ErrRateLimited is returned when a token bucket has no whole token
	// left for the request.
	ErrRateLimited = errors.New("ratelimit: request rate limit exceeded")

	// ErrConcurrencyExceeded is returned when every concurrency slot is
	// taken.
	ErrConcurrencyExceeded = errors.New("ratelimit: concurrent request limit reached")
)
