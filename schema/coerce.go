package schema

import (
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/erraggy/oasguard/contract"
	"github.com/erraggy/oasguard/sanitizer"
)

// maxCoerceDepth bounds schema traversal for recursive definitions.
const maxCoerceDepth = 64

// Coerce converts the string leaves of a text-based body (XML elements,
// url-encoded parameters) into the types the declaration asks for. Values the
// declaration leaves as strings, or that do not parse, are kept as sent so
// validation reports them. value is modified in place and returned.
func (c *Compiled) Coerce(value any) any {
	if c == nil || c.coerce == nil {
		return value
	}
	return c.coerce(value)
}

// fieldCoercer coerces a field-map body with the sanitizer rules.
func fieldCoercer(fields []*contract.Field) func(any) any {
	return func(value any) any {
		m, ok := value.(map[string]any)
		if !ok {
			return value
		}
		return coerceFields(fields, m)
	}
}

func coerceFields(fields []*contract.Field, m map[string]any) map[string]any {
	for _, f := range fields {
		if v, ok := m[f.Name]; ok && v != nil {
			m[f.Name] = coerceField(f, v)
		}
	}
	return m
}

func coerceField(f *contract.Field, value any) any {
	switch v := value.(type) {
	case map[string]any:
		if len(f.Properties) > 0 {
			return coerceFields(f.Properties, v)
		}
		return v
	case []any:
		if !f.IsArray() {
			return v
		}
		item := f.ItemField()
		for i, elem := range v {
			v[i] = coerceField(item, elem)
		}
		return v
	case string:
		return sanitizer.Value(v, f)
	}
	return value
}

// schemaCoercer coerces a body with the types declared by a compiled JSON Schema.
func schemaCoercer(sch *jsonschema.Schema) func(any) any {
	return func(value any) any {
		return coerceSchema(sch, value, 0)
	}
}

func coerceSchema(sch *jsonschema.Schema, value any, depth int) any {
	sch = deref(sch)
	if sch == nil || depth > maxCoerceDepth {
		return value
	}
	types := schemaTypes(sch)

	if onlyArray(types) {
		if _, isArray := value.([]any); !isArray && value != nil {
			value = []any{value}
		}
	}

	switch v := value.(type) {
	case string:
		return coerceString(v, types)
	case map[string]any:
		for name, child := range v {
			if prop := propertySchema(sch, name); prop != nil {
				v[name] = coerceSchema(prop, child, depth+1)
			}
		}
		return v
	case []any:
		for i, elem := range v {
			if item := itemSchema(sch, i); item != nil {
				v[i] = coerceSchema(item, elem, depth+1)
			}
		}
		return v
	}
	return value
}

// coerceString converts s to the first declared scalar type it parses as. A
// schema that allows strings, or declares no type, keeps s.
func coerceString(s string, types []string) any {
	if len(types) == 0 || contains(types, "string") {
		return s
	}
	for _, t := range []contract.Type{contract.TypeInteger, contract.TypeNumber, contract.TypeBoolean} {
		if !contains(types, string(t)) {
			continue
		}
		out := sanitizer.Value(s, &contract.Field{Type: t})
		if _, unparsed := out.(string); !unparsed {
			return out
		}
	}
	if s == "" && contains(types, "null") {
		return nil
	}
	return s
}

// deref follows "$ref" chains. Draft-04 ignores the siblings of a reference.
func deref(sch *jsonschema.Schema) *jsonschema.Schema {
	for i := 0; sch != nil && sch.Ref != nil && i < maxCoerceDepth; i++ {
		sch = sch.Ref
	}
	return sch
}

// schemaTypes returns the declared types of sch and of its allOf members.
func schemaTypes(sch *jsonschema.Schema) []string {
	var types []string
	if sch.Types != nil {
		types = append(types, sch.Types.ToStrings()...)
	}
	for _, member := range sch.AllOf {
		if member = deref(member); member != nil && member.Types != nil {
			types = append(types, member.Types.ToStrings()...)
		}
	}
	return types
}

func propertySchema(sch *jsonschema.Schema, name string) *jsonschema.Schema {
	if prop, ok := sch.Properties[name]; ok {
		return prop
	}
	for _, member := range sch.AllOf {
		if member = deref(member); member != nil {
			if prop, ok := member.Properties[name]; ok {
				return prop
			}
		}
	}
	if additional, ok := sch.AdditionalProperties.(*jsonschema.Schema); ok {
		return additional
	}
	return nil
}

func itemSchema(sch *jsonschema.Schema, i int) *jsonschema.Schema {
	switch items := sch.Items.(type) {
	case *jsonschema.Schema:
		return items
	case []*jsonschema.Schema:
		if i < len(items) {
			return items[i]
		}
		if additional, ok := sch.AdditionalItems.(*jsonschema.Schema); ok {
			return additional
		}
		return nil
	}
	if i < len(sch.PrefixItems) {
		return sch.PrefixItems[i]
	}
	return sch.Items2020
}

func onlyArray(types []string) bool {
	for _, t := range types {
		if t != "array" {
			return false
		}
	}
	return len(types) > 0
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
