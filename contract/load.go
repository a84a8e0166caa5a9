package contract

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v4"

	"github.com/erraggy/oasguard/internal/httputil"
	"github.com/erraggy/oasguard/oaserrors"
)

// Document is a resolved contract document: external schemas to register before
// compilation, and the operations to mount.
type Document struct {
	// Schemas maps reference keys to JSON Schema documents.
	Schemas map[string]string
	// Operations in document order.
	Operations []*Operation
}

// documentYAML is the on-disk shape of a contract document.
//
//	schemas:
//	  User: {type: object, required: [name], properties: {name: {type: string}}}
//	operations:
//	  - method: POST
//	    path: /users
//	    headers:
//	      - {name: X-Request-Id, type: string, required: true}
//	    body:
//	      application/json: {ref: User}
//	      text/plain: null
//	    responses:
//	      "201": [application/json]
type documentYAML struct {
	Schemas    map[string]any  `yaml:"schemas"`
	Operations []operationYAML `yaml:"operations"`
}

type operationYAML struct {
	Method       string               `yaml:"method"`
	Path         string               `yaml:"path"`
	Headers      []*Field             `yaml:"headers"`
	Query        []*Field             `yaml:"query"`
	Body         map[string]*bodyYAML `yaml:"body"`
	BodyOptional bool                 `yaml:"bodyOptional"`
	Responses    map[string][]string  `yaml:"responses"`
}

type bodyYAML struct {
	Fields               []*Field `yaml:"fields"`
	Schema               any      `yaml:"schema"`
	Ref                  string   `yaml:"ref"`
	MinProperties        *int     `yaml:"minProperties"`
	MaxProperties        *int     `yaml:"maxProperties"`
	AdditionalProperties *bool    `yaml:"additionalProperties"`
}

// LoadFile reads and loads a YAML contract document from path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("contract: reading %s: %w", path, err)
	}
	return Load(data)
}

// Load parses a YAML (or JSON) contract document and checks its structure.
// Structural problems are reported as *oaserrors.ContractError.
func Load(data []byte) (*Document, error) {
	var raw documentYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &oaserrors.ContractError{Message: "invalid contract document", Cause: err}
	}

	doc := &Document{Schemas: make(map[string]string, len(raw.Schemas))}
	for key, value := range raw.Schemas {
		schema, err := schemaText(value)
		if err != nil {
			return nil, &oaserrors.ContractError{Message: fmt.Sprintf("schema %q", key), Cause: err}
		}
		doc.Schemas[key] = schema
	}

	for _, rawOp := range raw.Operations {
		op := &Operation{
			Method:       strings.ToUpper(rawOp.Method),
			Path:         rawOp.Path,
			Headers:      rawOp.Headers,
			Query:        rawOp.Query,
			BodyOptional: rawOp.BodyOptional,
			Responses:    rawOp.Responses,
		}
		if len(rawOp.Body) > 0 {
			op.Bodies = make(map[string]*Body, len(rawOp.Body))
		}
		for mediaType, rawBody := range rawOp.Body {
			body, err := rawBody.toBody()
			if err != nil {
				return nil, &oaserrors.ContractError{
					Method:    op.Method,
					Path:      op.Path,
					MediaType: mediaType,
					Message:   "invalid body declaration",
					Cause:     err,
				}
			}
			op.Bodies[mediaType] = body
		}
		if err := op.Check(); err != nil {
			return nil, err
		}
		doc.Operations = append(doc.Operations, op)
	}

	return doc, nil
}

// toBody disambiguates the YAML body into the BodyKind variant.
func (b *bodyYAML) toBody() (*Body, error) {
	if b == nil {
		return &Body{Kind: BodyPassThrough}, nil
	}
	body := &Body{
		MinProperties:        b.MinProperties,
		MaxProperties:        b.MaxProperties,
		AdditionalProperties: b.AdditionalProperties,
	}

	variants := 0
	if b.Fields != nil {
		variants++
		body.Kind = BodyFieldMap
		body.Fields = b.Fields
	}
	if b.Schema != nil {
		variants++
		schema, err := schemaText(b.Schema)
		if err != nil {
			return nil, err
		}
		body.Kind = BodyJSONSchema
		body.Schema = schema
	}
	if b.Ref != "" {
		variants++
		body.Kind = BodyExternalRef
		body.Ref = b.Ref
	}
	if variants > 1 {
		return nil, fmt.Errorf("fields, schema and ref are mutually exclusive")
	}
	return body, nil
}

// schemaText accepts a schema written inline as a YAML mapping or as a JSON string.
func schemaText(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("schema is not representable as JSON: %w", err)
	}
	return string(data), nil
}

// Check verifies the structural invariants of an operation: a known method, an
// absolute path, known type tags, names unique within each scope, valid media
// types and valid response status keys.
func (o *Operation) Check() error {
	fail := func(mediaType, format string, args ...any) error {
		return &oaserrors.ContractError{
			Method:    o.Method,
			Path:      o.Path,
			MediaType: mediaType,
			Message:   fmt.Sprintf(format, args...),
		}
	}

	if !httputil.Methods[strings.ToUpper(o.Method)] {
		return fail("", "unknown method %q", o.Method)
	}
	if !strings.HasPrefix(o.Path, "/") {
		return fail("", "path must start with /")
	}

	if err := checkFields(o.Headers, true); err != nil {
		return fail("", "headers: %v", err)
	}
	if err := checkFields(o.Query, false); err != nil {
		return fail("", "query: %v", err)
	}

	for mediaType, body := range o.Bodies {
		if !httputil.IsValidMediaType(mediaType) {
			return fail(mediaType, "invalid media type")
		}
		if body == nil {
			continue
		}
		if body.Kind == BodyFieldMap {
			if err := checkFields(body.Fields, false); err != nil {
				return fail(mediaType, "fields: %v", err)
			}
		}
	}

	for code, types := range o.Responses {
		if !httputil.ValidateStatusCode(code) {
			return fail("", "invalid response status %q", code)
		}
		for _, mt := range types {
			if !httputil.IsValidMediaType(mt) {
				return fail(mt, "invalid response media type for status %s", code)
			}
		}
	}

	return nil
}

func checkFields(fields []*Field, caseInsensitive bool) error {
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		if f == nil {
			return fmt.Errorf("declaration %d is empty", i)
		}
		if f.Name == "" {
			return fmt.Errorf("declaration %d has no name", i)
		}
		key := f.Name
		if caseInsensitive {
			key = strings.ToLower(key)
		}
		if seen[key] {
			return fmt.Errorf("duplicate declaration %q", f.Name)
		}
		seen[key] = true
		if err := checkType(f); err != nil {
			return err
		}
	}
	return nil
}

func checkType(f *Field) error {
	if !knownTypes[f.EffectiveType()] {
		return fmt.Errorf("%s: unknown type %q", f.Name, f.Type)
	}
	if f.Items != nil {
		if err := checkType(f.Items); err != nil {
			return fmt.Errorf("%s items: %w", f.Name, err)
		}
	}
	if len(f.Properties) > 0 {
		if err := checkFields(f.Properties, false); err != nil {
			return fmt.Errorf("%s properties: %w", f.Name, err)
		}
	}
	return nil
}
