package httpvalidator

import (
	"context"
	"net/http"

	"github.com/erraggy/oasguard/contract"
	"github.com/erraggy/oasguard/formstream"
)

// Values is what the middleware hands to the downstream handler. It is filled in
// stage by stage; a handler only ever sees it after every stage passed.
type Values struct {
	// Operation is the contract the request was validated against.
	Operation *contract.Operation
	// Headers holds the sanitized declared headers, keyed by lower-cased name.
	Headers map[string]any
	// Query holds the sanitized declared query parameters.
	Query map[string]any
	// MediaType is the request body media type without parameters, if a body was sent.
	MediaType string
	// Body is the parsed body for JSON, XML and url-encoded requests. It is nil
	// for multipart and pass-through bodies.
	Body any
	// Form streams a multipart body. The handler should pull parts with Next
	// until it returns an error; an undrained form is drained after the handler returns.
	Form *formstream.Form
	// Accept is the negotiated response media type, or empty when the operation
	// declares none.
	Accept string
}

type valuesKey struct{}

// FromRequest returns the validated values attached to r, or nil when r did not
// pass through a Middleware.
func FromRequest(r *http.Request) *Values {
	v, _ := r.Context().Value(valuesKey{}).(*Values)
	return v
}

func withValues(ctx context.Context, v *Values) context.Context {
	return context.WithValue(ctx, valuesKey{}, v)
}
