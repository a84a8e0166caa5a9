package schema

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/erraggy/oasguard/oaserrors"
)

// baseURL is the namespace relative schema keys are resolved against, so that a
// "$ref": "User" inside one registered schema finds the schema registered as "User".
const baseURL = "http://oasguard.local/schemas/"

// Registry holds externally registered schema documents for "$ref" resolution.
//
// A Registry must be populated before any operation referencing its schemas is
// compiled. It is safe for concurrent use; compilation only reads from it.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]any
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{resources: make(map[string]any)}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide Registry used when no override is given.
func Default() *Registry {
	return defaultRegistry
}

// RegisterSchema registers document under key in override, or in the process-wide
// Registry when override is nil.
func RegisterSchema(document, key string, override *Registry) error {
	r := override
	if r == nil {
		r = defaultRegistry
	}
	return r.Register(key, document)
}

// Register parses document and stores it under key. Draft-03 documents are
// upgraded to draft-04 before they are stored. Registering a key twice replaces
// the earlier document.
func (r *Registry) Register(key, document string) error {
	if key == "" {
		return &oaserrors.ContractError{Message: "schema key must not be empty"}
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(document))
	if err != nil {
		return &oaserrors.ContractError{Message: fmt.Sprintf("schema %q is not valid JSON", key), Cause: err}
	}
	doc = Normalize(doc)

	r.mu.Lock()
	r.resources[ResourceURL(key)] = doc
	r.mu.Unlock()
	return nil
}

// Has reports whether key has been registered.
func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.resources[ResourceURL(key)]
	return ok
}

// lookup returns the registered document for key.
func (r *Registry) lookup(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.resources[ResourceURL(key)]
	return doc, ok
}

// newCompiler returns a draft-04 compiler preloaded with every registered schema.
func (r *Registry) newCompiler() (*jsonschema.Compiler, error) {
	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft4)
	c.AssertFormat()

	r.mu.RLock()
	defer r.mu.RUnlock()
	for u, doc := range r.resources {
		if err := c.AddResource(u, doc); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ResourceURL returns the URL a schema key is registered under. Absolute URLs are
// used as-is.
func ResourceURL(key string) string {
	if u, err := url.Parse(key); err == nil && u.IsAbs() {
		return key
	}
	return baseURL + url.PathEscape(key)
}
