// Package httpvalidator is net/http middleware that enforces an operation contract
// on incoming requests before they reach the application handler.
//
// # Features
//
//   - Header and query validation with sanitized, declaration-filtered output
//   - Body dispatch by Content-Type with wildcard matching
//   - JSON, XML and url-encoded bodies validated after full buffering; XML text
//     and url-encoded values take the types their declaration names
//   - Streaming multipart validation that never buffers file content
//   - Accept negotiation against the media types of 2xx responses
//   - Structured errors: 400 validation, 406, 413, 415 and malformed bodies
//
// # Basic Usage
//
// Compile a Middleware per operation once, at startup:
//
//	op := &contract.Operation{
//	    Method: "GET",
//	    Path:   "/items",
//	    Query: []*contract.Field{
//	        {Name: "limit", Type: contract.TypeInteger},
//	    },
//	    Responses: map[string][]string{"200": {"application/json"}},
//	}
//	m, err := httpvalidator.New(op)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	mux.Handle("GET /items", m.Handler(listItems))
//
// Inside the handler, the validated values are available from the request:
//
//	func listItems(w http.ResponseWriter, r *http.Request) {
//	    vals := httpvalidator.FromRequest(r)
//	    limit, _ := vals.Query["limit"].(int64)
//	    ...
//	}
//
// A whole contract document can be compiled and mounted at once with [Mount].
//
// # Chain Order
//
// Stages run in a fixed order and the first failure ends the chain:
//
//  1. Resource tagging: the operation is attached to the request context and a span is started
//  2. Headers: sanitized and validated; optionally unknown headers are removed
//  3. Body: dispatched by Content-Type, parsed and validated, or drained when none is declared
//  4. Accept: negotiated against the declared success media types
//  5. Query: sanitized and validated; by default unknown parameters are removed
//
// Failures go to the configured [ErrorHandler] as a *oaserrors.RequestError. The
// default handler writes an [ErrorResponse] JSON document.
//
// # Multipart Bodies
//
// Multipart bodies are exposed as a *formstream.Form. Parts are validated as they
// arrive; once any part fails, later parts are still validated but no longer
// returned. Required fields are checked at the end of the body:
//
//	for {
//	    part, err := vals.Form.Next()
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    if err != nil {
//	        return // the middleware renders the failure
//	    }
//	    ...
//	}
//
// # Configuration
//
// See [Option] for the available settings. All limits are validated when the
// Middleware is built.
package httpvalidator
