package httpvalidator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/clbanning/mxj/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/erraggy/oasguard/contract"
	"github.com/erraggy/oasguard/formstream"
	"github.com/erraggy/oasguard/internal/httputil"
	"github.com/erraggy/oasguard/oaserrors"
	"github.com/erraggy/oasguard/sanitizer"
	"github.com/erraggy/oasguard/schema"
	"github.com/erraggy/oasguard/validator"
)

// bodyFormat selects the sub-pipeline for a declared media type.
type bodyFormat int

const (
	formatPassThrough bodyFormat = iota
	formatJSON
	formatXML
	formatURLEncoded
	formatMultipart
)

// bodyPipeline is the compiled handling of one declared body media type.
type bodyPipeline struct {
	mediaType string
	format    bodyFormat
	body      *contract.Body
	compiled  *schema.Compiled
	// validator backs multipart sessions; its pattern cache is shared across requests.
	validator *validator.Validator
}

// compileBody builds the pipeline for one body declaration.
func compileBody(op *contract.Operation, mediaType string, body *contract.Body, registry *schema.Registry) (*bodyPipeline, error) {
	p := &bodyPipeline{mediaType: mediaType, body: body}
	if body == nil || body.Kind == contract.BodyPassThrough {
		return p, nil
	}

	ctx := schema.Context{Method: op.Method, Path: op.Path, MediaType: mediaType}
	fail := func(msg string) error {
		return &oaserrors.ContractError{Method: op.Method, Path: op.Path, MediaType: mediaType, Message: msg}
	}

	switch {
	case httputil.IsJSON(mediaType):
		p.format, ctx.Category = formatJSON, oaserrors.CategoryJSON
	case httputil.IsXML(mediaType):
		p.format, ctx.Category = formatXML, oaserrors.CategoryXML
	case httputil.IsURLEncoded(mediaType):
		p.format, ctx.Category = formatURLEncoded, oaserrors.CategoryForm
	case httputil.IsMultipartForm(mediaType):
		p.format, ctx.Category = formatMultipart, oaserrors.CategoryForm
	default:
		return nil, fail("a schema is declared but the media type has no parser")
	}

	if p.format == formatMultipart && body.Kind != contract.BodyFieldMap {
		return nil, fail("multipart bodies must declare form fields")
	}

	compiled, err := schema.Compile(body, ctx, registry)
	if err != nil {
		return nil, err
	}
	p.compiled = compiled
	if p.format == formatMultipart {
		p.validator = validator.New()
	}
	return p, nil
}

// read runs the sub-pipeline p over the request body.
func (m *Middleware) read(p *bodyPipeline, w http.ResponseWriter, r *http.Request, params map[string]string, vals *Values) error {
	switch p.format {
	case formatJSON, formatXML, formatURLEncoded:
		data, err := m.buffer(w, r, p.mediaType)
		if err != nil {
			return err
		}
		value, root, err := m.parse(p, data)
		if err != nil {
			return err
		}
		if report := p.compiled.ValidateWithRoot(value, root); !report.Valid {
			return oaserrors.NewValidationError(report.Errors)
		}
		vals.Body = value
		return nil

	case formatMultipart:
		boundary := params["boundary"]
		if boundary == "" {
			return oaserrors.NewMalformedBodyError(vals.MediaType, errors.New("missing multipart boundary"))
		}
		session := formstream.NewSession(p.body.Fields, p.validator)
		vals.Form = formstream.NewForm(r.Body, boundary, session, m.cfg.Multipart, m.logger)
		return nil

	default:
		return nil
	}
}

// buffer reads the whole body under the size limit and restores r.Body so the
// handler can read it again.
func (m *Middleware) buffer(w http.ResponseWriter, r *http.Request, mediaType string) ([]byte, error) {
	body := r.Body
	if m.cfg.MaxBodySize > 0 {
		body = http.MaxBytesReader(w, body, m.cfg.MaxBodySize)
	}
	data, err := readBody(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, oaserrors.NewResourceLimitError("body size", maxErr.Limit, err)
		}
		return nil, oaserrors.NewMalformedBodyError(mediaType, err)
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	r.ContentLength = int64(len(data))
	return data, nil
}

// parse decodes data for p. It returns the value handed to validation and the
// handler, and the root the object constraints are checked against. The two
// differ only for field-map forms, where value holds the declared names only.
func (m *Middleware) parse(p *bodyPipeline, data []byte) (value, root any, err error) {
	switch p.format {
	case formatJSON:
		v, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, nil, oaserrors.NewMalformedBodyError(p.mediaType, err)
		}
		return v, v, nil

	case formatXML:
		// Element text stays a string until the declaration types it.
		mv, err := mxj.NewMapXml(data)
		if err != nil {
			return nil, nil, oaserrors.NewMalformedBodyError(p.mediaType, err)
		}
		v := p.compiled.Coerce(map[string]any(mv))
		return v, v, nil

	default:
		raw := string(data)
		if limit := m.cfg.ParameterLimit; limit > 0 && raw != "" && strings.Count(raw, "&")+1 > limit {
			return nil, nil, oaserrors.NewResourceLimitError("body parameters", int64(limit), nil)
		}
		q, err := url.ParseQuery(raw)
		if err != nil {
			return nil, nil, oaserrors.NewMalformedBodyError(p.mediaType, err)
		}
		if p.body.Kind == contract.BodyFieldMap {
			return sanitizer.Map(q, p.body.Fields), formValues(q), nil
		}
		v := p.compiled.Coerce(formValues(q))
		return v, v, nil
	}
}

// formValues flattens parsed parameters: one occurrence becomes a string,
// several become an array of strings.
func formValues(q url.Values) map[string]any {
	out := make(map[string]any, len(q))
	for name, vs := range q {
		if len(vs) == 1 {
			out[name] = vs[0]
			continue
		}
		items := make([]any, len(vs))
		for i, v := range vs {
			items[i] = v
		}
		out[name] = items
	}
	return out
}

// hasBody reports whether r carries a body.
func hasBody(r *http.Request) bool {
	return r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0
}

// dispatchBody selects and runs the sub-pipeline matching the request Content-Type.
func (m *Middleware) dispatchBody(w http.ResponseWriter, r *http.Request, vals *Values) error {
	if len(m.bodies) == 0 {
		if hasBody(r) && m.cfg.DiscardUnknownBodies {
			_, _ = io.Copy(io.Discard, r.Body)
			_ = r.Body.Close()
			r.Body = http.NoBody
			r.ContentLength = 0
		}
		return nil
	}

	if !hasBody(r) {
		if m.op.BodyOptional {
			return nil
		}
		return oaserrors.NewUnsupportedMediaTypeError("", m.mediaTypes)
	}

	contentType := r.Header.Get("Content-Type")
	mt, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return oaserrors.NewUnsupportedMediaTypeError(contentType, m.mediaTypes)
	}

	var matches []*bodyPipeline
	for _, p := range m.bodies {
		if httputil.MatchMediaType(p.mediaType, mt) {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return oaserrors.NewUnsupportedMediaTypeError(contentType, m.mediaTypes)
	}
	vals.MediaType = mt

	if len(matches) > 1 && !m.cfg.ParseBodiesOnWildcard {
		m.logger.Debug("body matches several declarations, passing through",
			"method", r.Method, "path", m.op.Path, "mediaType", mt, "matches", len(matches))
		return nil
	}
	return m.read(mostSpecific(matches), w, r, params, vals)
}

// mostSpecific picks the narrowest declared pattern. matches is in media type
// order, so ties resolve deterministically.
func mostSpecific(matches []*bodyPipeline) *bodyPipeline {
	best := matches[0]
	for _, p := range matches[1:] {
		if httputil.Specificity(p.mediaType) > httputil.Specificity(best.mediaType) {
			best = p
		}
	}
	return best
}

func (p *bodyPipeline) String() string {
	kind := contract.BodyPassThrough
	if p.body != nil {
		kind = p.body.Kind
	}
	return fmt.Sprintf("%s (%s)", p.mediaType, kind)
}
