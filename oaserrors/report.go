package oaserrors

import (
	"fmt"
	"sort"
)

// Category identifies which part of the request a validation record refers to.
type Category string

// Category constants.
const (
	CategoryHeader Category = "header"
	CategoryQuery  Category = "query"
	CategoryJSON   Category = "json"
	CategoryXML    Category = "xml"
	CategoryForm   Category = "form"
)

// Keywords produced outside the JSON Schema evaluator.
const (
	KeywordType                 = "type"
	KeywordRequired             = "required"
	KeywordRepeat               = "repeat"
	KeywordPattern              = "pattern"
	KeywordMinLength            = "minLength"
	KeywordMaxLength            = "maxLength"
	KeywordMinimum              = "minimum"
	KeywordMaximum              = "maximum"
	KeywordEnum                 = "enum"
	KeywordFileTypes            = "fileTypes"
	KeywordMinProperties        = "minProperties"
	KeywordMaxProperties        = "maxProperties"
	KeywordAdditionalProperties = "additionalProperties"
)

// ValidationError is one structured validation failure.
//
// The JSON field names follow the shape error handlers commonly expect from
// RAML/JSON Schema middleware: type, dataPath, keyword, data, schema, message.
type ValidationError struct {
	// Category is the request part that failed (header, query, json, xml, form)
	Category Category `json:"type"`
	// Path is the failing field path, e.g. "x-header", "b", "user.name", "tags[1]"
	Path string `json:"dataPath"`
	// Keyword is the rule that failed (type, required, pattern, repeat, ...)
	Keyword string `json:"keyword"`
	// Data is the offending value (null for missing values)
	Data any `json:"data"`
	// Schema is the expected constraint value (optional)
	Schema any `json:"schema,omitempty"`
	// Message is a human-readable description
	Message string `json:"message"`
}

// String returns a one-line representation of the record.
func (e ValidationError) String() string {
	if e.Path == "" {
		return fmt.Sprintf("%s %s: %s", e.Category, e.Keyword, e.Message)
	}
	return fmt.Sprintf("%s %s (%s): %s", e.Category, e.Path, e.Keyword, e.Message)
}

// Report is the outcome of validating one value set.
// A Report is valid exactly when it carries no errors.
type Report struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewReport builds a Report from collected errors.
func NewReport(errs []ValidationError) Report {
	if len(errs) == 0 {
		return Report{Valid: true}
	}
	return Report{Valid: false, Errors: errs}
}

// Merge returns a report holding the errors of r followed by the errors of other.
func (r Report) Merge(other Report) Report {
	if other.Valid {
		return r
	}
	if r.Valid {
		return other
	}
	errs := make([]ValidationError, 0, len(r.Errors)+len(other.Errors))
	errs = append(errs, r.Errors...)
	errs = append(errs, other.Errors...)
	return NewReport(errs)
}

// SortErrors orders records by path, then keyword, keeping the relative order of
// records that compare equal. Used where the underlying evaluator has no stable order.
func SortErrors(errs []ValidationError) {
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].Path != errs[j].Path {
			return errs[i].Path < errs[j].Path
		}
		return errs[i].Keyword < errs[j].Keyword
	})
}
