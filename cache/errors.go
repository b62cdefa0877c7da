package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrNilCompute indicates GetOrSet or GetOrLoad was called without a
	// compute function.
	ErrNilCompute = errors.New("cache: compute function is nil")
)
