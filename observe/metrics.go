package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome classifies how a chain step ended.
type Outcome string

const (
	// OutcomeFound means the step produced the chain's value.
	OutcomeFound Outcome = "found"
	// OutcomeEmpty means the step had nothing usable and the chain advanced.
	OutcomeEmpty Outcome = "empty"
	// OutcomeFailed means the step ended with an error.
	OutcomeFailed Outcome = "failed"
)

// Metrics records step metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	RecordStep(ctx context.Context, meta StepMeta, duration time.Duration, outcome Outcome, err error)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates Metrics instruments on the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"location.step.total",
		metric.WithDescription("Total number of chain step attempts"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"location.step.errors",
		metric.WithDescription("Total number of chain steps that ended with an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"location.step.duration_ms",
		metric.WithDescription("Chain step duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordStep(ctx context.Context, meta StepMeta, duration time.Duration, outcome Outcome, err error) {
	opt := metric.WithAttributes(
		attribute.String("location.step.kind", meta.Kind),
		attribute.String("location.provider", meta.Provider),
		attribute.String("location.step.outcome", string(outcome)),
	)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

// NopMetrics returns Metrics that record nothing.
func NopMetrics() Metrics {
	return nopMetrics{}
}

type nopMetrics struct{}

func (nopMetrics) RecordStep(context.Context, StepMeta, time.Duration, Outcome, error) {}
