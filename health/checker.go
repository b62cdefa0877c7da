package health

import (
	"context"
	"time"
)

// Status is the health state of one component.
type Status int

const (
	// StatusHealthy means the component works normally.
	StatusHealthy Status = iota

	// StatusDegraded means the component works but under pressure, for
	// example a full cache or a saturated concurrency cap.
	StatusDegraded

	// StatusUnhealthy means the component does not work, for example an
	// unreachable Blender instance.
	StatusUnhealthy
)

// String returns the lowercase name used in probe responses.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result is the outcome of one health check.
type Result struct {
	// Status is the health state.
	Status Status

	// Message is a short human-readable summary.
	Message string

	// Details carries check-specific numbers (cache counters, limiter
	// occupancy, round-trip time).
	Details map[string]any

	// Duration is how long the check took.
	Duration time.Duration

	// Timestamp is when the check ran.
	Timestamp time.Time

	// Error holds the failure when Status is StatusUnhealthy.
	Error error
}

// Healthy builds a healthy result.
func Healthy(message string) Result {
	return Result{
		Status:    StatusHealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Degraded builds a degraded result.
func Degraded(message string) Result {
	return Result{
		Status:    StatusDegraded,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Unhealthy builds an unhealthy result carrying the causing error.
func Unhealthy(message string, err error) Result {
	return Result{
		Status:    StatusUnhealthy,
		Message:   message,
		Error:     err,
		Timestamp: time.Now(),
	}
}

// WithDetails attaches check-specific metadata.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// WithDuration sets how long the check took.
func (r Result) WithDuration(d time.Duration) Result {
	r.Duration = d
	return r
}

// Checker probes one component.
//
// Contract:
// - Concurrency: Check may be called from multiple goroutines.
// - Context: Check must honor cancellation and return promptly.
// - Errors: failures are reported through the Result, never panics.
type Checker interface {
	// Name identifies the component in aggregated output.
	Name() string

	// Check probes the component.
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a plain function into a Checker.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc wraps fn as a named Checker.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name identifies the component.
func (f *CheckerFunc) Name() string {
	return f.name
}

// Check runs the wrapped function.
func (f *CheckerFunc) Check(ctx context.Context) Result {
	return f.fn(ctx)
}
