package schema

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/erraggy/oasguard/contract"
	"github.com/erraggy/oasguard/oaserrors"
	"github.com/erraggy/oasguard/validator"
)

// bodyURL is where an inline body schema is added. Each compilation uses a fresh
// compiler, so the location never collides.
const bodyURL = baseURL + "~body.json"

// Context names what is being compiled, for error messages and for the category
// stamped on validation records.
type Context struct {
	Method    string
	Path      string
	MediaType string
	Category  oaserrors.Category
}

func (c Context) fail(message string, cause error) error {
	return &oaserrors.ContractError{
		Method:    c.Method,
		Path:      c.Path,
		MediaType: c.MediaType,
		Message:   message,
		Cause:     cause,
	}
}

// Compiled is a compiled validator for one declaration. It holds no per-request
// state and is safe for concurrent use.
type Compiled struct {
	category oaserrors.Category
	primary  func(value any) []oaserrors.ValidationError
	root     rootConstraints
	coerce   func(value any) any
}

// Validate checks value and returns the report. For field maps value is the
// sanitized map; for JSON Schema bodies it is the decoded document.
func (c *Compiled) Validate(value any) oaserrors.Report {
	return c.ValidateWithRoot(value, value)
}

// ValidateWithRoot checks value with the primary validation and runs the root
// object constraints against root instead. Callers that filter undeclared names
// out of value pass the members as sent, so additionalProperties and the
// property counts see them.
func (c *Compiled) ValidateWithRoot(value, root any) oaserrors.Report {
	if c == nil || c.primary == nil {
		return oaserrors.NewReport(nil)
	}
	report := oaserrors.NewReport(c.primary(value))
	return report.Merge(oaserrors.NewReport(c.root.check(root, c.category)))
}

// CompileFields compiles header, query or form field declarations.
func CompileFields(fields []*contract.Field, ctx Context) (*Compiled, error) {
	if err := checkPatterns(fields); err != nil {
		return nil, ctx.fail("invalid pattern", err)
	}
	v := validator.New()
	return &Compiled{
		category: ctx.Category,
		primary: func(value any) []oaserrors.ValidationError {
			m, ok := value.(map[string]any)
			if !ok {
				return []oaserrors.ValidationError{notAnObject(value, ctx.Category)}
			}
			return v.Validate(m, fields, ctx.Category).Errors
		},
	}, nil
}

// Compile compiles a body declaration against registry, or the process-wide
// Registry when registry is nil. Pass-through bodies compile to nil.
//
// Any failure (malformed schema, bad pattern, unresolved "$ref", unknown draft) is
// returned as a *oaserrors.ContractError naming the operation.
func Compile(body *contract.Body, ctx Context, registry *Registry) (*Compiled, error) {
	if body == nil || body.Kind == contract.BodyPassThrough {
		return nil, nil
	}
	if registry == nil {
		registry = defaultRegistry
	}

	var compiled *Compiled
	var declared map[string]bool
	switch body.Kind {
	case contract.BodyFieldMap:
		c, err := CompileFields(body.Fields, ctx)
		if err != nil {
			return nil, err
		}
		compiled = c
		compiled.coerce = fieldCoercer(body.Fields)
		declared = make(map[string]bool, len(body.Fields))
		for _, f := range body.Fields {
			declared[f.Name] = true
		}

	case contract.BodyJSONSchema:
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(body.Schema))
		if err != nil {
			return nil, ctx.fail("schema is not valid JSON", err)
		}
		doc = Normalize(doc)
		sch, err := compileDocument(registry, bodyURL, doc, ctx)
		if err != nil {
			return nil, err
		}
		compiled = schemaValidator(sch, ctx.Category)
		compiled.coerce = schemaCoercer(sch)
		declared = declaredProperties(doc)

	case contract.BodyExternalRef:
		doc, ok := registry.lookup(body.Ref)
		if !ok {
			return nil, ctx.fail(fmt.Sprintf("unresolved schema reference %q", body.Ref), nil)
		}
		sch, err := compileDocument(registry, ResourceURL(body.Ref), nil, ctx)
		if err != nil {
			return nil, err
		}
		compiled = schemaValidator(sch, ctx.Category)
		compiled.coerce = schemaCoercer(sch)
		declared = declaredProperties(doc)

	default:
		return nil, ctx.fail(fmt.Sprintf("unsupported body kind %s", body.Kind), nil)
	}

	compiled.root = rootConstraints{
		minProperties:  body.MinProperties,
		maxProperties:  body.MaxProperties,
		noAdditional:   body.AdditionalProperties != nil && !*body.AdditionalProperties,
		declaredFields: declared,
	}
	return compiled, nil
}

// compileDocument compiles target with a compiler preloaded from registry. A
// non-nil inline document is added at target first.
func compileDocument(registry *Registry, target string, inline any, ctx Context) (*jsonschema.Schema, error) {
	c, err := registry.newCompiler()
	if err != nil {
		return nil, ctx.fail("loading registered schemas", err)
	}
	if inline != nil {
		if err := c.AddResource(target, inline); err != nil {
			return nil, ctx.fail("adding schema", err)
		}
	}
	sch, err := c.Compile(target)
	if err != nil {
		return nil, ctx.fail("compiling schema", err)
	}
	return sch, nil
}

func schemaValidator(sch *jsonschema.Schema, category oaserrors.Category) *Compiled {
	return &Compiled{
		category: category,
		primary: func(value any) []oaserrors.ValidationError {
			err := sch.Validate(value)
			if err == nil {
				return nil
			}
			var ve *jsonschema.ValidationError
			if !errors.As(err, &ve) {
				return []oaserrors.ValidationError{{
					Category: category,
					Keyword:  "schema",
					Message:  err.Error(),
				}}
			}
			errs := flatten(ve, value, category)
			oaserrors.SortErrors(errs)
			return errs
		},
	}
}

// rootConstraints are the RAML datatype facets checked on the root object after
// the primary validation, each independently.
type rootConstraints struct {
	minProperties  *int
	maxProperties  *int
	noAdditional   bool
	declaredFields map[string]bool
}

func (rc rootConstraints) check(value any, category oaserrors.Category) []oaserrors.ValidationError {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil
	}

	var errs []oaserrors.ValidationError
	count := len(obj)
	if rc.minProperties != nil && count < *rc.minProperties {
		errs = append(errs, oaserrors.ValidationError{
			Category: category,
			Keyword:  oaserrors.KeywordMinProperties,
			Data:     count,
			Schema:   *rc.minProperties,
			Message:  fmt.Sprintf("has %d properties, fewer than minimum %d", count, *rc.minProperties),
		})
	}
	if rc.maxProperties != nil && count > *rc.maxProperties {
		errs = append(errs, oaserrors.ValidationError{
			Category: category,
			Keyword:  oaserrors.KeywordMaxProperties,
			Data:     count,
			Schema:   *rc.maxProperties,
			Message:  fmt.Sprintf("has %d properties, more than maximum %d", count, *rc.maxProperties),
		})
	}
	if rc.noAdditional {
		var extra []string
		for name := range obj {
			if !rc.declaredFields[name] {
				extra = append(extra, name)
			}
		}
		sort.Strings(extra)
		for _, name := range extra {
			errs = append(errs, oaserrors.ValidationError{
				Category: category,
				Path:     name,
				Keyword:  oaserrors.KeywordAdditionalProperties,
				Data:     obj[name],
				Schema:   false,
				Message:  "is not a declared property",
			})
		}
	}
	return errs
}

// declaredProperties returns the top-level property names of a schema document.
func declaredProperties(doc any) map[string]bool {
	declared := make(map[string]bool)
	m, ok := doc.(map[string]any)
	if !ok {
		return declared
	}
	if props, ok := m["properties"].(map[string]any); ok {
		for name := range props {
			declared[name] = true
		}
	}
	return declared
}

func checkPatterns(fields []*contract.Field) error {
	for _, f := range fields {
		if f == nil {
			continue
		}
		if f.Pattern != "" {
			if _, err := regexp.Compile(f.Pattern); err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
		}
		if f.Items != nil {
			if err := checkPatterns([]*contract.Field{f.Items}); err != nil {
				return err
			}
		}
		if err := checkPatterns(f.Properties); err != nil {
			return err
		}
	}
	return nil
}

func notAnObject(value any, category oaserrors.Category) oaserrors.ValidationError {
	return oaserrors.ValidationError{
		Category: category,
		Keyword:  oaserrors.KeywordType,
		Data:     value,
		Schema:   string(contract.TypeObject),
		Message:  "expected object",
	}
}
