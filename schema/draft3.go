package schema

import (
	"sort"
	"strings"
)

const draft4URL = "http://json-schema.org/draft-04/schema#"

// IsDraft3 reports whether doc declares the draft-03 meta-schema.
func IsDraft3(doc any) bool {
	m, ok := doc.(map[string]any)
	if !ok {
		return false
	}
	s, _ := m["$schema"].(string)
	return strings.Contains(s, "draft-03")
}

// Normalize upgrades draft-03 documents to draft-04 in place and returns doc.
// Other documents are returned untouched.
//
// The upgrade hoists boolean "required" on properties into a "required" array on
// the parent object, renames "divisibleBy" to "multipleOf", turns "extends" into
// "allOf" and drops the draft-03 "any" type.
func Normalize(doc any) any {
	if !IsDraft3(doc) {
		return doc
	}
	upgradeNode(doc)
	doc.(map[string]any)["$schema"] = draft4URL
	return doc
}

func upgradeNode(node any) {
	switch n := node.(type) {
	case []any:
		for _, elem := range n {
			upgradeNode(elem)
		}
	case map[string]any:
		upgradeObject(n)
	}
}

func upgradeObject(n map[string]any) {
	if props, ok := n["properties"].(map[string]any); ok {
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)

		var required []any
		for _, name := range names {
			prop, ok := props[name].(map[string]any)
			if !ok {
				continue
			}
			if req, isBool := prop["required"].(bool); isBool {
				if req {
					required = append(required, name)
				}
				delete(prop, "required")
			}
		}
		if len(required) > 0 {
			n["required"] = required
		}
	}

	// A boolean required left here sits on the root, which has no parent to hoist to.
	if _, isBool := n["required"].(bool); isBool {
		delete(n, "required")
	}

	if d, ok := n["divisibleBy"]; ok {
		n["multipleOf"] = d
		delete(n, "divisibleBy")
	}

	if ext, ok := n["extends"]; ok {
		switch e := ext.(type) {
		case []any:
			n["allOf"] = e
		default:
			n["allOf"] = []any{e}
		}
		delete(n, "extends")
	}

	switch t := n["type"].(type) {
	case string:
		if t == "any" {
			delete(n, "type")
		}
	case []any:
		kept := t[:0]
		for _, elem := range t {
			if s, ok := elem.(string); ok && s == "any" {
				delete(n, "type")
				kept = nil
				break
			}
			kept = append(kept, elem)
		}
		if kept != nil {
			n["type"] = kept
		}
	}

	for key, value := range n {
		switch key {
		case "properties", "patternProperties", "definitions":
			if m, ok := value.(map[string]any); ok {
				for _, sub := range m {
					upgradeNode(sub)
				}
			}
		case "dependencies":
			if m, ok := value.(map[string]any); ok {
				for name, dep := range m {
					if s, isString := dep.(string); isString {
						m[name] = []any{s}
						continue
					}
					upgradeNode(dep)
				}
			}
		case "enum", "default", "required", "$schema":
		default:
			upgradeNode(value)
		}
	}
}
