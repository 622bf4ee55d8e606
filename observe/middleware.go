package observe

import (
	"context"
	"time"
)

// StepFunc is the signature of a single chain step attempt.
type StepFunc func(ctx context.Context, meta StepMeta) (Outcome, error)

// Middleware wraps chain steps with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap returns a thread-safe StepFunc.
//   - Context: the span context is propagated to the wrapped step.
//   - Errors: errors from the wrapped step are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap wraps a StepFunc with tracing, metrics and logging.
func (m *Middleware) Wrap(fn StepFunc) StepFunc {
	return func(ctx context.Context, meta StepMeta) (Outcome, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		outcome, err := fn(ctx, meta)
		if err != nil {
			outcome = OutcomeFailed
		}

		duration := time.Since(start)
		m.tracer.EndSpan(span, outcome, err)
		m.metrics.RecordStep(ctx, meta, duration, outcome, err)

		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
			{Key: "outcome", Value: string(outcome)},
		}
		stepLogger := m.logger.WithStep(meta)
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			stepLogger.Warn(ctx, "location step failed", fields...)
		} else {
			stepLogger.Debug(ctx, "location step completed", fields...)
		}

		return outcome, err
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
