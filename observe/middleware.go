package observe

import (
	"context"
	"encoding/json"
	"time"
)

// CommandFunc is the signature for bridge command execution functions.
// This is the function shape Middleware wraps.
type CommandFunc func(ctx context.Context, op OpMeta, params map[string]any) (json.RawMessage, error)

// Middleware wraps bridge command execution with tracing, metrics, and
// logging.
//
// Contract:
//   - Concurrency: Wrap() returns a CommandFunc safe for concurrent use.
//   - Context: propagates context through tracing spans.
//   - Errors: errors from the wrapped function are recorded and propagated
//     unchanged.
//   - Ownership: params and result pass through without modification.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware from the given components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Metrics exposes the middleware's metrics recorder so callers can record
// cache lookups and admission denials that happen outside the wrapped call.
func (m *Middleware) Metrics() Metrics {
	return m.metrics
}

// Wrap wraps a CommandFunc with a span, duration metrics, and a structured
// log line per execution.
func (m *Middleware) Wrap(fn CommandFunc) CommandFunc {
	return func(ctx context.Context, op OpMeta, params map[string]any) (json.RawMessage, error) {
		ctx, span := m.tracer.StartSpan(ctx, op)
		start := time.Now()

		result, err := fn(ctx, op, params)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordCommand(ctx, op, duration, err)

		fields := []Field{
			{Key: "op", Value: op.Op},
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		}
		if op.Kind != "" {
			fields = append(fields, Field{Key: "kind", Value: op.Kind})
		}

		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			m.logger.Error(ctx, "bridge command failed", fields...)
		} else {
			m.logger.Debug(ctx, "bridge command completed", fields...)
		}

		return result, err
	}
}
