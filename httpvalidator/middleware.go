package httpvalidator

import (
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/erraggy/oasguard/contract"
	"github.com/erraggy/oasguard/internal/telemetry"
	"github.com/erraggy/oasguard/logging"
	"github.com/erraggy/oasguard/negotiate"
	"github.com/erraggy/oasguard/oaserrors"
	"github.com/erraggy/oasguard/sanitizer"
	"github.com/erraggy/oasguard/schema"
)

// standardHeaders are kept when unknown headers are discarded.
var standardHeaders = map[string]bool{
	"accept":            true,
	"accept-charset":    true,
	"accept-encoding":   true,
	"accept-language":   true,
	"authorization":     true,
	"cache-control":     true,
	"connection":        true,
	"content-length":    true,
	"content-type":      true,
	"cookie":            true,
	"host":              true,
	"origin":            true,
	"referer":           true,
	"transfer-encoding": true,
	"user-agent":        true,
	"x-forwarded-for":   true,
	"x-forwarded-host":  true,
	"x-forwarded-proto": true,
	"x-real-ip":         true,
	"x-request-id":      true,
}

func isStandardHeader(name string) bool {
	return standardHeaders[name] || strings.HasPrefix(name, "sec-")
}

// Middleware validates requests for one operation. All compilation happens in New;
// a Middleware holds no per-request state and is safe for concurrent use.
//
//	m, err := httpvalidator.New(op)
//	if err != nil {
//	    log.Fatal(err) // the contract is broken; do not serve this route
//	}
//	mux.Handle("POST /users", m.Handler(createUser))
type Middleware struct {
	op  *contract.Operation
	cfg *config

	headers *schema.Compiled
	query   *schema.Compiled
	// bodies is in media type order.
	bodies     []*bodyPipeline
	mediaTypes []string
	accepts    []string

	declaredHeaders map[string]bool
	declaredQuery   map[string]bool

	logger logging.Logger
	tel    *telemetry.Telemetry
}

// New compiles op into a Middleware. Any contract problem (bad pattern, malformed
// schema, unresolved reference) is returned as a *oaserrors.ContractError; an
// invalid option is returned as a *oaserrors.ConfigError.
func New(op *contract.Operation, opts ...Option) (*Middleware, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	return newMiddleware(op, cfg)
}

func newMiddleware(op *contract.Operation, cfg *config) (*Middleware, error) {
	if op == nil {
		return nil, &oaserrors.ContractError{Message: "operation cannot be nil"}
	}
	if err := op.Check(); err != nil {
		return nil, err
	}

	tel, err := cfg.telemetry()
	if err != nil {
		return nil, err
	}

	m := &Middleware{
		op:              op,
		cfg:             cfg,
		mediaTypes:      op.MediaTypes(),
		accepts:         op.SuccessMediaTypes(),
		declaredHeaders: make(map[string]bool, len(op.Headers)),
		declaredQuery:   make(map[string]bool, len(op.Query)),
		logger:          cfg.logger.With("method", strings.ToUpper(op.Method), "path", op.Path),
		tel:             tel,
	}
	for _, f := range op.Headers {
		m.declaredHeaders[strings.ToLower(f.Name)] = true
	}
	for _, f := range op.Query {
		m.declaredQuery[f.Name] = true
	}

	ctx := schema.Context{Method: op.Method, Path: op.Path, Category: oaserrors.CategoryHeader}
	if m.headers, err = schema.CompileFields(op.Headers, ctx); err != nil {
		return nil, err
	}
	ctx.Category = oaserrors.CategoryQuery
	if m.query, err = schema.CompileFields(op.Query, ctx); err != nil {
		return nil, err
	}

	for _, mt := range m.mediaTypes {
		p, err := compileBody(op, mt, op.Bodies[mt], cfg.registry)
		if err != nil {
			return nil, err
		}
		m.bodies = append(m.bodies, p)
	}

	bodies := make([]string, 0, len(m.bodies))
	for _, p := range m.bodies {
		bodies = append(bodies, p.String())
	}
	m.logger.Info("compiled operation contract",
		"headers", len(op.Headers), "query", len(op.Query), "bodies", bodies, "accepts", m.accepts)
	return m, nil
}

// Operation returns the contract m validates.
func (m *Middleware) Operation() *contract.Operation { return m.op }

// stage is one step of the chain. A non-nil error short-circuits the chain.
type stage struct {
	name string
	run  func(w http.ResponseWriter, r *http.Request, vals *Values) error
}

func (m *Middleware) stages() []stage {
	return []stage{
		{"headers", m.checkHeaders},
		{"body", m.dispatchBody},
		{"accept", m.checkAccept},
		{"query", m.checkQuery},
	}
}

// Handler wraps next with the validation chain: resource tagging, headers, body,
// Accept negotiation, then query. The first failing stage ends the chain and the
// error handler renders the failure; next only runs when every stage passed.
//
// For multipart bodies next receives a streaming form through [FromRequest]. If
// the form fails while or after next consumes it and next has written nothing,
// the error handler renders that failure once next returns.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	chain := m.stages()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := m.tel.Start(r.Context(), r.Method, m.op.Path)
		defer span.End()

		vals := &Values{Operation: m.op}
		r = r.WithContext(withValues(ctx, vals))

		for _, s := range chain {
			if err := s.run(w, r, vals); err != nil {
				m.reject(w, r, span, s.name, err)
				return
			}
		}

		if vals.Form == nil {
			next.ServeHTTP(w, r)
			return
		}

		tw := &trackingWriter{ResponseWriter: w}
		next.ServeHTTP(tw, r)
		if err := vals.Form.Drain(); err != nil {
			if tw.wrote {
				m.logger.Debug("multipart body failed after response started",
					"status", oaserrors.StatusCode(err), "error", err)
				return
			}
			m.reject(w, r, span, "multipart", err)
		}
	})
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request, span trace.Span, stage string, err error) {
	status := oaserrors.StatusCode(err)
	m.tel.Failure(r.Context(), span, status, failureKind(err), failureCategory(err), err)
	m.logger.Debug("request rejected", "stage", stage, "status", status, "error", err)
	m.cfg.errorHandler(w, r, err)
}

func (m *Middleware) checkHeaders(_ http.ResponseWriter, r *http.Request, vals *Values) error {
	values := sanitizer.Header(r.Header, m.op.Headers)
	if report := m.headers.Validate(values); !report.Valid {
		return oaserrors.NewValidationError(report.Errors)
	}
	vals.Headers = values

	if m.cfg.DiscardUnknownHeaders {
		h := r.Header.Clone()
		for name := range h {
			lower := strings.ToLower(name)
			if !m.declaredHeaders[lower] && !isStandardHeader(lower) {
				h.Del(name)
			}
		}
		r.Header = h
	}
	return nil
}

func (m *Middleware) checkAccept(_ http.ResponseWriter, r *http.Request, vals *Values) error {
	chosen, ok := negotiate.Request(r, m.accepts)
	if !ok {
		return oaserrors.NewNotAcceptableError(strings.Join(r.Header.Values("Accept"), ", "), m.accepts)
	}
	vals.Accept = chosen
	return nil
}

func (m *Middleware) checkQuery(_ http.ResponseWriter, r *http.Request, vals *Values) error {
	raw := r.URL.Query()
	values := sanitizer.Map(raw, m.op.Query)
	if report := m.query.Validate(values); !report.Valid {
		return oaserrors.NewValidationError(report.Errors)
	}
	vals.Query = values

	if m.cfg.DiscardUnknownQueryParameters {
		kept := make(url.Values, len(m.declaredQuery))
		for name, v := range raw {
			if m.declaredQuery[name] {
				kept[name] = v
			}
		}
		u := *r.URL
		u.RawQuery = kept.Encode()
		r.URL = &u
	}
	return nil
}
