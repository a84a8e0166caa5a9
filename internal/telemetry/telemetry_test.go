package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTelemetry(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	tel, err := New(tp, mp)
	require.NoError(t, err)

	ctx, span := tel.Start(context.Background(), "POST", "/users")
	tel.Failure(ctx, span, 400, "validation", "query", errors.New("bad query"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, SpanName, spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("http.route", "/users"))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("http.response.status_code", 400))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)
	m := rm.ScopeMetrics[0].Metrics[0]
	assert.Equal(t, FailuresCounter, m.Name)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
	kind, _ := sum.DataPoints[0].Attributes.Value("kind")
	assert.Equal(t, "validation", kind.AsString())
}

func TestTelemetryGlobals(t *testing.T) {
	tel, err := New(nil, nil)
	require.NoError(t, err)

	ctx, span := tel.Start(context.Background(), "GET", "/")
	tel.Failure(ctx, span, 406, "not_acceptable", "", nil)
	span.End()
}
