package httpvalidator

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/erraggy/oasguard/contract"
)

// HandlerFunc returns the downstream handler for an operation.
type HandlerFunc func(op *contract.Operation) http.Handler

// Compile registers the document's schemas and compiles every operation. All
// contract errors are returned together, joined, in document order.
func Compile(doc *contract.Document, opts ...Option) ([]*Middleware, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(doc.Schemas))
	for k := range doc.Schemas {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := cfg.registry.Register(k, doc.Schemas[k]); err != nil {
			return nil, err
		}
	}

	var errs []error
	out := make([]*Middleware, 0, len(doc.Operations))
	for _, op := range doc.Operations {
		m, err := newMiddleware(op, cfg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, m)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// Mount compiles doc and registers each operation on mux with a "METHOD /path"
// pattern, wrapping the handler returned by handlers. Nothing is registered when
// any operation fails to compile.
func Mount(mux *http.ServeMux, doc *contract.Document, handlers HandlerFunc, opts ...Option) error {
	compiled, err := Compile(doc, opts...)
	if err != nil {
		return err
	}
	for _, m := range compiled {
		mux.Handle(Pattern(m.Operation()), m.Handler(handlers(m.Operation())))
	}
	return nil
}

// Pattern returns the http.ServeMux pattern for op.
func Pattern(op *contract.Operation) string {
	return strings.ToUpper(op.Method) + " " + op.Path
}
