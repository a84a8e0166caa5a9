// Package sanitizer coerces raw string values from headers, query strings and form
// fields into typed values according to their field declarations.
//
// Sanitizing never fails: input that cannot be converted is returned unchanged so
// the validator reports a type mismatch for it. Values that are already typed pass
// through untouched, which makes sanitizing idempotent.
//
// | Type            | Output                                                  |
// |-----------------|---------------------------------------------------------|
// | string, file    | unchanged                                               |
// | number          | float64                                                 |
// | integer         | int64 (float64 when the input has a fraction)           |
// | boolean         | bool for "true" and "false" only                        |
// | date types      | time.Time, or the HTTP-date string for format rfc2616   |
// | array           | []any of sanitized items                                |
package sanitizer

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/erraggy/oasguard/contract"
)

// Layouts for the RAML 1.0 date-only, time-only and datetime-only types.
const (
	layoutDateOnly     = "2006-01-02"
	layoutTimeOnly     = "15:04:05.999999999"
	layoutDateTimeOnly = "2006-01-02T15:04:05.999999999"
)

// Value coerces a single raw value according to the field declaration.
func Value(raw any, f *contract.Field) any {
	s, ok := raw.(string)
	if !ok {
		if items, isSlice := raw.([]any); isSlice && f.IsArray() {
			return sanitizeItems(items, f.ItemField())
		}
		return raw
	}

	switch t := f.EffectiveType(); t {
	case contract.TypeNumber:
		if n, ok := parseFinite(strings.TrimSpace(s)); ok {
			return n
		}
	case contract.TypeInteger:
		trimmed := strings.TrimSpace(s)
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return n
		}
		if n, ok := parseFinite(trimmed); ok {
			return n
		}
	case contract.TypeBoolean:
		switch s {
		case "true":
			return true
		case "false":
			return false
		}
	case contract.TypeArray:
		return []any{Value(s, f.ItemField())}
	default:
		if t.IsDate() {
			return sanitizeDate(s, f)
		}
	}
	return raw
}

// Values coerces every occurrence of one parameter.
//
// Array fields always yield a []any. Repeatable scalar fields collapse several
// occurrences into a []any and keep a single occurrence scalar. Non-repeatable
// scalar fields sent more than once also yield a []any, which the validator rejects
// with a repeat error. No occurrences yield nil.
func Values(raw []string, f *contract.Field) any {
	if len(raw) == 0 {
		return nil
	}

	if f.IsArray() {
		item := f.ItemField()
		out := make([]any, len(raw))
		for i, r := range raw {
			out[i] = Value(r, item)
		}
		return out
	}

	if len(raw) == 1 {
		return Value(raw[0], f)
	}

	item := f.ItemField()
	out := make([]any, len(raw))
	for i, r := range raw {
		out[i] = Value(r, item)
	}
	return out
}

// Map sanitizes a multi-valued input map against the declarations, in declaration
// order. Undeclared names are dropped. Absent fields with a default receive it.
func Map(input map[string][]string, fields []*contract.Field) map[string]any {
	return collect(fields, func(name string) []string { return input[name] })
}

// Header sanitizes request headers against the declarations. Lookups are
// case-insensitive and the output is keyed by lower-cased header name.
func Header(h http.Header, fields []*contract.Field) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		key := strings.ToLower(f.Name)
		if v := Values(h.Values(f.Name), f); v != nil {
			out[key] = v
		} else if f.Default != nil {
			out[key] = f.Default
		}
	}
	return out
}

func collect(fields []*contract.Field, lookup func(string) []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v := Values(lookup(f.Name), f); v != nil {
			out[f.Name] = v
		} else if f.Default != nil {
			out[f.Name] = f.Default
		}
	}
	return out
}

// parseFinite parses s as a float. NaN and infinities count as unparsed, so the
// raw string reaches the validator as a type mismatch.
func parseFinite(s string) (float64, bool) {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func sanitizeItems(items []any, item *contract.Field) []any {
	out := make([]any, len(items))
	for i, v := range items {
		out[i] = Value(v, item)
	}
	return out
}

// sanitizeDate parses s according to the date type and format. Invalid dates are
// returned unchanged.
func sanitizeDate(s string, f *contract.Field) any {
	if f.Format == contract.FormatRFC2616 {
		if t, err := http.ParseTime(s); err == nil {
			return t.UTC().Format(http.TimeFormat)
		}
		return s
	}

	var layouts []string
	switch f.EffectiveType() {
	case contract.TypeDateOnly:
		layouts = []string{layoutDateOnly}
	case contract.TypeTimeOnly:
		layouts = []string{layoutTimeOnly}
	case contract.TypeDateTimeOnly:
		layouts = []string{layoutDateTimeOnly}
	default:
		layouts = []string{time.RFC3339Nano, http.TimeFormat, time.RFC850, time.ANSIC, layoutDateOnly}
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return s
}
