package httpvalidator

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erraggy/oasguard/contract"
	"github.com/erraggy/oasguard/internal/telemetry"
	"github.com/erraggy/oasguard/logging"
	"github.com/erraggy/oasguard/oaserrors"
	"github.com/erraggy/oasguard/schema"
)

const usersContract = `
schemas:
  User:
    type: object
    required: [name]
    properties:
      name: {type: string}
operations:
  - method: POST
    path: /users
    headers:
      - {name: X-Request-Id, required: true}
    body:
      application/json: {ref: User, maxProperties: 2}
    responses:
      "201": [application/json]
  - method: GET
    path: /users/{id}
    query:
      - {name: fields, type: string}
    responses:
      "200": [application/json]
`

// =============================================================================
// Mount Tests
// =============================================================================

func TestMount(t *testing.T) {
	doc, err := contract.Load([]byte(usersContract))
	require.NoError(t, err)

	mux := http.NewServeMux()
	err = Mount(mux, doc, func(op *contract.Operation) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			vals := FromRequest(r)
			require.NotNil(t, vals)
			assert.Same(t, op, vals.Operation)
			w.WriteHeader(http.StatusNoContent)
		})
	}, WithRegistry(schema.NewRegistry()))
	require.NoError(t, err)

	tests := []struct {
		name   string
		req    func() *http.Request
		status int
	}{
		{
			name: "valid create",
			req: func() *http.Request {
				r := jsonRequest(http.MethodPost, "/users", `{"name":"ada"}`)
				r.Header.Set("X-Request-Id", "1")
				return r
			},
			status: http.StatusNoContent,
		},
		{
			name: "missing required property",
			req: func() *http.Request {
				r := jsonRequest(http.MethodPost, "/users", `{}`)
				r.Header.Set("X-Request-Id", "1")
				return r
			},
			status: http.StatusBadRequest,
		},
		{
			name: "too many properties",
			req: func() *http.Request {
				r := jsonRequest(http.MethodPost, "/users", `{"name":"a","b":1,"c":2}`)
				r.Header.Set("X-Request-Id", "1")
				return r
			},
			status: http.StatusBadRequest,
		},
		{
			name:   "path template",
			req:    func() *http.Request { return httptest.NewRequest(http.MethodGet, "/users/7?fields=name", nil) },
			status: http.StatusNoContent,
		},
		{
			name:   "unmounted method",
			req:    func() *http.Request { return httptest.NewRequest(http.MethodDelete, "/users/7", nil) },
			status: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, tt.req())
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestCompileJoinsContractErrors(t *testing.T) {
	doc := &contract.Document{
		Operations: []*contract.Operation{
			{Method: http.MethodGet, Path: "/ok"},
			{Method: http.MethodGet, Path: "/a", Query: []*contract.Field{{Name: "q", Pattern: "["}}},
			{Method: http.MethodPost, Path: "/b", Bodies: map[string]*contract.Body{
				"application/json": {Kind: contract.BodyExternalRef, Ref: "Nope"},
			}},
		},
	}

	_, err := Compile(doc, WithRegistry(schema.NewRegistry()))
	require.Error(t, err)
	assert.ErrorIs(t, err, oaserrors.ErrContract)
	assert.Contains(t, err.Error(), "GET /a")
	assert.Contains(t, err.Error(), "POST /b")

	mux := http.NewServeMux()
	require.Error(t, Mount(mux, doc, nil, WithRegistry(schema.NewRegistry())))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "nothing mounted on failure")
}

func TestCompileRejectsBadSchemaDocument(t *testing.T) {
	doc := &contract.Document{Schemas: map[string]string{"Bad": `{`}}
	_, err := Compile(doc, WithRegistry(schema.NewRegistry()))
	assert.ErrorIs(t, err, oaserrors.ErrContract)
}

func TestPattern(t *testing.T) {
	assert.Equal(t, "GET /users/{id}", Pattern(&contract.Operation{Method: "get", Path: "/users/{id}"}))
}

// =============================================================================
// Observability Tests
// =============================================================================

func TestTelemetryAndLogging(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	core, logs := observer.New(zap.DebugLevel)
	logger := logging.NewZapAdapter(zap.New(core))

	op := &contract.Operation{
		Method: http.MethodGet,
		Path:   "/items",
		Query:  []*contract.Field{{Name: "limit", Type: contract.TypeInteger}},
	}
	m, err := New(op, WithTelemetry(tp, mp), WithLogger(logger))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("compiled operation contract").Len())

	rec := httptest.NewRecorder()
	m.Handler(okHandler(&captured{})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items?limit=x", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rejected := logs.FilterMessage("request rejected").All()
	require.Len(t, rejected, 1)
	fields := rejected[0].ContextMap()
	assert.Equal(t, "query", fields["stage"])
	assert.Equal(t, int64(http.StatusBadRequest), fields["status"])
	assert.Equal(t, "/items", fields["path"])

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, telemetry.SpanName, spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("oasguard.failure", "validation"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	category, _ := sum.DataPoints[0].Attributes.Value("category")
	assert.Equal(t, "query", category.AsString())
}

func TestFailureKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{oaserrors.NewValidationError(nil), "validation"},
		{oaserrors.NewMalformedBodyError("application/json", nil), "malformed_body"},
		{oaserrors.NewNotAcceptableError("", nil), "not_acceptable"},
		{oaserrors.NewUnsupportedMediaTypeError("", nil), "unsupported_media_type"},
		{oaserrors.NewResourceLimitError("body size", 1, nil), "resource_limit"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, failureKind(tt.err))
		})
	}
}

func TestDefaultErrorHandlerPlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	DefaultErrorHandler(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))
	resp := decodeError(t, rec)
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), resp.Message)
}

func TestDefaultErrorHandlerUnencodableData(t *testing.T) {
	err := oaserrors.NewValidationError([]oaserrors.ValidationError{
		{Category: oaserrors.CategoryQuery, Path: "n", Keyword: oaserrors.KeywordMaximum, Data: math.Inf(1), Schema: 10.0},
		{Category: oaserrors.CategoryQuery, Path: "m", Keyword: oaserrors.KeywordType, Data: "x", Schema: math.NaN()},
	})
	rec := httptest.NewRecorder()
	DefaultErrorHandler(rec, httptest.NewRequest(http.MethodGet, "/", nil), err)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	require.Len(t, resp.Errors, 2)
	assert.Equal(t, "+Inf", resp.Errors[0].Data)
	assert.Equal(t, 10.0, resp.Errors[0].Schema)
	assert.Equal(t, "x", resp.Errors[1].Data)
	assert.Equal(t, "NaN", resp.Errors[1].Schema)
}
