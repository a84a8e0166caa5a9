// Package telemetry wraps the OpenTelemetry instruments recorded by the middleware:
// one span per validated request and a counter of rejected requests.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Instrumentation scope and instrument names.
const (
	ScopeName       = "github.com/erraggy/oasguard"
	SpanName        = "oasguard.validate"
	FailuresCounter = "oasguard.validation.failures"
)

// Telemetry holds the tracer and failure counter. The zero value is not usable;
// use New.
type Telemetry struct {
	tracer   trace.Tracer
	failures metric.Int64Counter
}

// New creates instruments from the given providers. Nil providers fall back to
// the otel globals, which are no-ops until an SDK is installed.
func New(tp trace.TracerProvider, mp metric.MeterProvider) (*Telemetry, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	failures, err := mp.Meter(ScopeName).Int64Counter(
		FailuresCounter,
		metric.WithDescription("Requests rejected by contract validation"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	return &Telemetry{
		tracer:   tp.Tracer(ScopeName),
		failures: failures,
	}, nil
}

// Start opens the validation span for an operation.
func (t *Telemetry) Start(ctx context.Context, method, path string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("http.route", path),
		),
	)
}

// Failure records a rejected request on span and on the failure counter.
// kind names the failure (validation, not_acceptable, ...); category is the
// request part of the first validation record, or empty.
func (t *Telemetry) Failure(ctx context.Context, span trace.Span, status int, kind, category string, err error) {
	attrs := []attribute.KeyValue{attribute.String("kind", kind)}
	if category != "" {
		attrs = append(attrs, attribute.String("category", category))
	}
	t.failures.Add(ctx, 1, metric.WithAttributes(attrs...))

	span.SetAttributes(attribute.Int("http.response.status_code", status), attribute.String("oasguard.failure", kind))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
