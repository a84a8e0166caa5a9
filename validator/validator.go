// Package validator checks sanitized parameter values against field declarations
// and produces a structured [oaserrors.Report].
//
// Fields are evaluated in declaration order, so the report is deterministic for a
// given input. Values with no matching declaration are ignored; filtering them out
// of the request is the job of the caller.
package validator

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/erraggy/oasguard/contract"
	"github.com/erraggy/oasguard/oaserrors"
	"github.com/erraggy/oasguard/sanitizer"
)

// maxPatternCacheSize is the upper bound on cached compiled regex patterns.
const maxPatternCacheSize = 1000

// Validator validates parameter maps against field declarations.
// A Validator is safe for concurrent use.
type Validator struct {
	// patternCache caches compiled regex patterns (sync.Map[string, *regexp.Regexp])
	patternCache sync.Map
	patternCount atomic.Int32
}

// New creates a Validator.
func New() *Validator {
	return &Validator{}
}

// Validate checks every declared field of values. Header names are matched
// case-insensitively and reported lower-cased.
func (v *Validator) Validate(values map[string]any, fields []*contract.Field, category oaserrors.Category) oaserrors.Report {
	return oaserrors.NewReport(v.fields(values, fields, category, ""))
}

func (v *Validator) fields(values map[string]any, fields []*contract.Field, category oaserrors.Category, prefix string) []oaserrors.ValidationError {
	var errs []oaserrors.ValidationError
	for _, f := range fields {
		key := f.Name
		if category == oaserrors.CategoryHeader {
			key = strings.ToLower(key)
		}
		path := joinPath(prefix, key)

		value, present := values[key]
		if !present || value == nil {
			if f.Required {
				errs = append(errs, Required(f, category, path))
			}
			continue
		}
		errs = append(errs, v.Value(value, f, category, path)...)
	}
	return errs
}

// Value checks one present value against its declaration. Presence rules are the
// caller's concern; see [Required].
func (v *Validator) Value(value any, f *contract.Field, category oaserrors.Category, path string) []oaserrors.ValidationError {
	if items, ok := value.([]any); ok && !f.IsArray() {
		if !f.Repeat {
			return []oaserrors.ValidationError{Repeat(value, f, category, path)}
		}
		item := f.ItemField()
		var errs []oaserrors.ValidationError
		for i, elem := range items {
			errs = append(errs, v.Value(elem, item, category, indexPath(path, i))...)
		}
		return errs
	}

	if err, ok := checkType(value, f, category, path); !ok {
		return []oaserrors.ValidationError{err}
	}

	var errs []oaserrors.ValidationError
	switch d := value.(type) {
	case string:
		errs = append(errs, v.checkString(d, f, category, path)...)
	case []any:
		item := f.ItemField()
		for i, elem := range d {
			errs = append(errs, v.Value(elem, item, category, indexPath(path, i))...)
		}
	case map[string]any:
		errs = append(errs, v.fields(d, f.Properties, category, path)...)
	default:
		if n, isNum := toFloat64(value); isNum {
			errs = append(errs, checkNumber(n, value, f, category, path)...)
		}
	}

	if len(f.Enum) > 0 && !inEnum(value, f.Enum) {
		errs = append(errs, oaserrors.ValidationError{
			Category: category,
			Path:     path,
			Keyword:  oaserrors.KeywordEnum,
			Data:     value,
			Schema:   f.Enum,
			Message:  fmt.Sprintf("must be one of %v", f.Enum),
		})
	}
	return errs
}

// Required returns the record for a required field that was not supplied.
func Required(f *contract.Field, category oaserrors.Category, path string) oaserrors.ValidationError {
	return oaserrors.ValidationError{
		Category: category,
		Path:     path,
		Keyword:  oaserrors.KeywordRequired,
		Schema:   true,
		Message:  "is required",
	}
}

// Repeat returns the record for a non-repeatable field that was supplied more than once.
func Repeat(value any, f *contract.Field, category oaserrors.Category, path string) oaserrors.ValidationError {
	return oaserrors.ValidationError{
		Category: category,
		Path:     path,
		Keyword:  oaserrors.KeywordRepeat,
		Data:     value,
		Schema:   false,
		Message:  "must not be repeated",
	}
}

func checkType(value any, f *contract.Field, category oaserrors.Category, path string) (oaserrors.ValidationError, bool) {
	want := f.EffectiveType()
	var ok bool
	switch want {
	case contract.TypeString:
		_, ok = value.(string)
	case contract.TypeNumber:
		_, ok = toFloat64(value)
	case contract.TypeInteger:
		ok = isInteger(value)
	case contract.TypeBoolean:
		_, ok = value.(bool)
	case contract.TypeArray:
		_, ok = value.([]any)
	case contract.TypeObject:
		_, ok = value.(map[string]any)
	case contract.TypeFile:
		ok = true
	default:
		if want.IsDate() {
			ok = isDate(value, f)
		}
	}
	if ok {
		return oaserrors.ValidationError{}, true
	}
	return oaserrors.ValidationError{
		Category: category,
		Path:     path,
		Keyword:  oaserrors.KeywordType,
		Data:     value,
		Schema:   string(want),
		Message:  fmt.Sprintf("expected %s but got %s", want, dataType(value)),
	}, false
}

func (v *Validator) checkString(s string, f *contract.Field, category oaserrors.Category, path string) []oaserrors.ValidationError {
	var errs []oaserrors.ValidationError
	length := utf8.RuneCountInString(s)

	if f.MinLength != nil && length < *f.MinLength {
		errs = append(errs, oaserrors.ValidationError{
			Category: category,
			Path:     path,
			Keyword:  oaserrors.KeywordMinLength,
			Data:     s,
			Schema:   *f.MinLength,
			Message:  fmt.Sprintf("length %d is less than minimum %d", length, *f.MinLength),
		})
	}
	if f.MaxLength != nil && length > *f.MaxLength {
		errs = append(errs, oaserrors.ValidationError{
			Category: category,
			Path:     path,
			Keyword:  oaserrors.KeywordMaxLength,
			Data:     s,
			Schema:   *f.MaxLength,
			Message:  fmt.Sprintf("length %d exceeds maximum %d", length, *f.MaxLength),
		})
	}
	if f.Pattern != "" {
		matched, err := v.matchPattern(f.Pattern, s)
		switch {
		case err != nil:
			errs = append(errs, oaserrors.ValidationError{
				Category: category,
				Path:     path,
				Keyword:  oaserrors.KeywordPattern,
				Data:     s,
				Schema:   f.Pattern,
				Message:  fmt.Sprintf("invalid pattern %q: %v", f.Pattern, err),
			})
		case !matched:
			errs = append(errs, oaserrors.ValidationError{
				Category: category,
				Path:     path,
				Keyword:  oaserrors.KeywordPattern,
				Data:     s,
				Schema:   f.Pattern,
				Message:  fmt.Sprintf("does not match pattern %q", f.Pattern),
			})
		}
	}
	return errs
}

func checkNumber(n float64, value any, f *contract.Field, category oaserrors.Category, path string) []oaserrors.ValidationError {
	var errs []oaserrors.ValidationError
	if f.Minimum != nil && n < *f.Minimum {
		errs = append(errs, oaserrors.ValidationError{
			Category: category,
			Path:     path,
			Keyword:  oaserrors.KeywordMinimum,
			Data:     value,
			Schema:   *f.Minimum,
			Message:  fmt.Sprintf("%v is less than minimum %v", value, *f.Minimum),
		})
	}
	if f.Maximum != nil && n > *f.Maximum {
		errs = append(errs, oaserrors.ValidationError{
			Category: category,
			Path:     path,
			Keyword:  oaserrors.KeywordMaximum,
			Data:     value,
			Schema:   *f.Maximum,
			Message:  fmt.Sprintf("%v exceeds maximum %v", value, *f.Maximum),
		})
	}
	return errs
}

// matchPattern reports whether s matches pattern, caching compiled expressions.
func (v *Validator) matchPattern(pattern, s string) (bool, error) {
	if cached, ok := v.patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp).MatchString(s), nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}

	// Not atomic with the Store below; concurrent clears only cost recompilation.
	if v.patternCount.Add(1) > maxPatternCacheSize {
		v.patternCache.Range(func(key, _ any) bool {
			v.patternCache.Delete(key)
			return true
		})
		v.patternCount.Store(1)
	}
	v.patternCache.Store(pattern, re)
	return re.MatchString(s), nil
}

func isDate(value any, f *contract.Field) bool {
	switch d := value.(type) {
	case time.Time:
		return true
	case string:
		if f.Format == contract.FormatRFC2616 {
			_, err := http.ParseTime(d)
			return err == nil
		}
		_, ok := sanitizer.Value(d, f).(time.Time)
		return ok
	}
	return false
}

func isInteger(value any) bool {
	switch n := value.(type) {
	case int, int32, int64:
		return true
	case float64:
		_, ok := finite(n)
		return ok && n == float64(int64(n))
	case json.Number:
		if _, err := n.Int64(); err == nil {
			return true
		}
		f, err := n.Float64()
		if err != nil {
			return false
		}
		_, ok := finite(f)
		return ok && f == float64(int64(f))
	}
	return false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return finite(float64(n))
	case float64:
		return finite(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return finite(f)
	}
	return 0, false
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func inEnum(value any, enum []any) bool {
	n, isNum := toFloat64(value)
	for _, candidate := range enum {
		if isNum {
			if c, ok := toFloat64(candidate); ok && c == n {
				return true
			}
			continue
		}
		if reflect.DeepEqual(value, candidate) {
			return true
		}
	}
	return false
}

func dataType(data any) string {
	switch data.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float32, float64, json.Number:
		return "number"
	case int, int32, int64:
		return "integer"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case time.Time:
		return "date"
	}
	return fmt.Sprintf("%T", data)
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}
