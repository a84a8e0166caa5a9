// Package contract defines the declarative validation input consumed by oasguard:
// one Operation per method+path pair, with ordered header and query declarations,
// body declarations keyed by media type, and response media types keyed by status.
//
// Operations are built once, before any request is served, and are treated as
// immutable afterwards. They can be constructed directly or loaded from a YAML
// contract document with [Load] or [LoadFile].
package contract

import (
	"sort"
	"strings"

	"github.com/erraggy/oasguard/internal/httputil"
)

// Type is the type tag of a field declaration.
type Type string

// Type tags.
const (
	TypeString       Type = "string"
	TypeNumber       Type = "number"
	TypeInteger      Type = "integer"
	TypeBoolean      Type = "boolean"
	TypeDate         Type = "date"
	TypeDateTime     Type = "datetime"
	TypeDateOnly     Type = "date-only"
	TypeTimeOnly     Type = "time-only"
	TypeDateTimeOnly Type = "datetime-only"
	TypeFile         Type = "file"
	TypeArray        Type = "array"
	TypeObject       Type = "object"
)

// FormatRFC2616 selects the HTTP-date representation for date types.
const FormatRFC2616 = "rfc2616"

var knownTypes = map[Type]bool{
	TypeString: true, TypeNumber: true, TypeInteger: true, TypeBoolean: true,
	TypeDate: true, TypeDateTime: true, TypeDateOnly: true, TypeTimeOnly: true,
	TypeDateTimeOnly: true, TypeFile: true, TypeArray: true, TypeObject: true,
}

// IsDate reports whether t is one of the date/time type tags.
func (t Type) IsDate() bool {
	switch t {
	case TypeDate, TypeDateTime, TypeDateOnly, TypeTimeOnly, TypeDateTimeOnly:
		return true
	}
	return false
}

// Field declares one named parameter: a header, query parameter, form field or
// JSON property.
type Field struct {
	Name     string `yaml:"name"`
	Type     Type   `yaml:"type"`
	Required bool   `yaml:"required"`
	// Repeat allows the parameter to be sent several times (RAML 0.8 arrays).
	Repeat bool `yaml:"repeat"`
	// Format refines date types: "rfc3339" (default) or "rfc2616".
	Format    string   `yaml:"format"`
	Pattern   string   `yaml:"pattern"`
	MinLength *int     `yaml:"minLength"`
	MaxLength *int     `yaml:"maxLength"`
	Minimum   *float64 `yaml:"minimum"`
	Maximum   *float64 `yaml:"maximum"`
	Enum      []any    `yaml:"enum"`
	// Items declares the element type of an array field.
	Items *Field `yaml:"items"`
	// Properties declares the members of an object field.
	Properties []*Field `yaml:"properties"`
	// FileTypes lists the media types accepted for a file field (wildcards allowed).
	FileTypes []string `yaml:"fileTypes"`
	Default   any      `yaml:"default"`
}

// EffectiveType returns the declared type, defaulting to string.
func (f *Field) EffectiveType() Type {
	if f.Type == "" {
		return TypeString
	}
	return f.Type
}

// IsArray reports whether the field is declared with the array type.
func (f *Field) IsArray() bool {
	return f.EffectiveType() == TypeArray
}

// ItemField returns the declaration each element of a multi-valued field must
// satisfy: the Items declaration of an array, or the field itself without its
// repeat flag.
func (f *Field) ItemField() *Field {
	if f.IsArray() {
		if f.Items != nil {
			return f.Items
		}
		return &Field{Name: f.Name, Type: TypeString}
	}
	item := *f
	item.Repeat = false
	return &item
}

// BodyKind tags which variant a Body declaration is.
type BodyKind int

// Body kinds.
const (
	// BodyPassThrough declares a media type with no schema; the body is not parsed.
	BodyPassThrough BodyKind = iota
	// BodyFieldMap declares form fields or JSON properties as field declarations.
	BodyFieldMap
	// BodyJSONSchema carries an inline JSON Schema document.
	BodyJSONSchema
	// BodyExternalRef references a schema registered out of band by key.
	BodyExternalRef
)

// String returns the string representation of the body kind.
func (k BodyKind) String() string {
	switch k {
	case BodyPassThrough:
		return "pass-through"
	case BodyFieldMap:
		return "field-map"
	case BodyJSONSchema:
		return "json-schema"
	case BodyExternalRef:
		return "external-ref"
	default:
		return "unknown"
	}
}

// Body declares the expected shape of a request body for one media type.
type Body struct {
	Kind BodyKind
	// Fields is set for BodyFieldMap.
	Fields []*Field
	// Schema is the JSON Schema document for BodyJSONSchema.
	Schema string
	// Ref is the registered schema key for BodyExternalRef.
	Ref string

	// Root-level RAML datatype constraints, evaluated after the primary schema.
	MinProperties        *int
	MaxProperties        *int
	AdditionalProperties *bool
}

// Operation is the validation contract for one method+path pair.
type Operation struct {
	Method  string
	Path    string
	Headers []*Field
	Query   []*Field
	// Bodies maps declared media types (wildcards allowed) to body declarations.
	Bodies map[string]*Body
	// BodyOptional lets requests without a body through when Bodies is non-empty.
	BodyOptional bool
	// Responses maps status keys ("200", "2XX", "default") to response media types.
	Responses map[string][]string
}

// MediaTypes returns the declared body media types, sorted.
func (o *Operation) MediaTypes() []string {
	types := make([]string, 0, len(o.Bodies))
	for mt := range o.Bodies {
		types = append(types, mt)
	}
	sort.Strings(types)
	return types
}

// SuccessMediaTypes returns the de-duplicated media types declared by 2xx responses,
// in status order.
func (o *Operation) SuccessMediaTypes() []string {
	codes := make([]string, 0, len(o.Responses))
	for code := range o.Responses {
		if httputil.IsSuccessCode(code) {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	seen := make(map[string]bool)
	var types []string
	for _, code := range codes {
		for _, mt := range o.Responses[code] {
			if !seen[mt] {
				seen[mt] = true
				types = append(types, mt)
			}
		}
	}
	return types
}

// String returns "METHOD /path".
func (o *Operation) String() string {
	return strings.ToUpper(o.Method) + " " + o.Path
}
