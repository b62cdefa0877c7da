package health

import "errors"

var (
	// ErrCheckFailed indicates a component crossed its critical threshold.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout indicates a check did not finish within the
	// aggregator's timeout.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound indicates a lookup for an unregistered checker.
	ErrCheckerNotFound = errors.New("health: checker not found")
)
