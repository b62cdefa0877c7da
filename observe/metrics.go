package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Denial reasons recorded by RecordDenial.
const (
	DeniedByRate        = "rate"
	DeniedByConcurrency = "concurrency"
)

// Metrics records execution metrics for guarded bridge operations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly; recording is not a suspension point.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCommand records one bridge command execution with duration
	// and error status.
	RecordCommand(ctx context.Context, meta OpMeta, duration time.Duration, err error)

	// RecordCacheLookup records one cache lookup and whether it hit.
	RecordCacheLookup(ctx context.Context, key string, hit bool)

	// RecordDenial records an admission denial for key with a reason
	// (DeniedByRate or DeniedByConcurrency).
	RecordDenial(ctx context.Context, key, reason string)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	cacheLookups metric.Int64Counter
	denials      metric.Int64Counter
}

// NewMetrics creates a Metrics instance with instruments registered on the
// given meter. A noop meter yields instruments that record nowhere, so
// callers never need a separate disabled path.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"command.exec.total",
		metric.WithDescription("Total number of bridge command executions"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"command.exec.errors",
		metric.WithDescription("Total number of bridge command errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"command.exec.duration_ms",
		metric.WithDescription("Bridge command round-trip duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter(
		"cache.lookups",
		metric.WithDescription("Response cache lookups, hit or miss"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	denials, err := meter.Int64Counter(
		"ratelimit.denied",
		metric.WithDescription("Admission denials by the rate limiter or concurrency cap"),
		metric.WithUnit("{denial}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		cacheLookups: cacheLookups,
		denials:      denials,
	}, nil
}

// RecordCommand records metrics for one bridge command execution.
func (m *metricsImpl) RecordCommand(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordCacheLookup(ctx context.Context, key string, hit bool) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.key", key),
		attribute.Bool("cache.hit", hit),
	))
}

func (m *metricsImpl) RecordDenial(ctx context.Context, key, reason string) {
	m.denials.Add(ctx, 1, metric.WithAttributes(
		attribute.String("ratelimit.key", key),
		attribute.String("ratelimit.reason", reason),
	))
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics {
	return nopMetrics{}
}

type nopMetrics struct{}

func (nopMetrics) RecordCommand(context.Context, OpMeta, time.Duration, error) {}
func (nopMetrics) RecordCacheLookup(context.Context, string, bool)             {}
func (nopMetrics) RecordDenial(context.Context, string, string)                {}
