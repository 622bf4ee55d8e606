package observe

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// StepMeta describes one chain step attempt for telemetry purposes.
type StepMeta struct {
	Run      string // Chain execution id (may be empty for standalone requests)
	Index    int    // Position of the step in its chain
	Kind     string // "last_known" or "live"
	Provider string // Provider name (required)
}

// SpanName returns the deterministic span name for this step.
// Format: location.step.<kind>.<provider>
func (m StepMeta) SpanName() string {
	return "location.step." + m.Kind + "." + m.Provider
}

// StepID returns a short identifier such as "1:live:gps".
func (m StepMeta) StepID() string {
	return strconv.Itoa(m.Index) + ":" + m.Kind + ":" + m.Provider
}

// Tracer wraps OpenTelemetry tracing with step-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a step attempt.
	StartSpan(ctx context.Context, meta StepMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording the outcome and any error.
	EndSpan(span trace.Span, outcome Outcome, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta StepMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("location.step.kind", meta.Kind),
		attribute.String("location.provider", meta.Provider),
		attribute.Int("location.step.index", meta.Index),
	}
	if meta.Run != "" {
		attrs = append(attrs, attribute.String("location.chain.run", meta.Run))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, outcome Outcome, err error) {
	span.SetAttributes(attribute.String("location.step.outcome", string(outcome)))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NopTracer returns a Tracer backed by the otel no-op provider.
func NopTracer() Tracer {
	return &tracerImpl{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
}
