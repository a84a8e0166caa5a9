package validator

import (
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erraggy/oasguard/contract"
	"github.com/erraggy/oasguard/oaserrors"
	"github.com/erraggy/oasguard/sanitizer"
)

func ptr[T any](v T) *T { return &v }

func TestValidateHeaderType(t *testing.T) {
	h := http.Header{}
	h.Set("X-Header", "abc")
	fields := []*contract.Field{{Name: "X-Header", Type: contract.TypeInteger}}

	report := New().Validate(sanitizer.Header(h, fields), fields, oaserrors.CategoryHeader)

	require.False(t, report.Valid)
	require.Len(t, report.Errors, 1)
	got := report.Errors[0]
	assert.Equal(t, oaserrors.CategoryHeader, got.Category)
	assert.Equal(t, "x-header", got.Path)
	assert.Equal(t, oaserrors.KeywordType, got.Keyword)
	assert.Equal(t, "abc", got.Data)
	assert.Equal(t, "integer", got.Schema)
}

func TestValidateQueryType(t *testing.T) {
	fields := []*contract.Field{
		{Name: "a", Type: contract.TypeString},
		{Name: "b", Type: contract.TypeInteger},
	}
	values := sanitizer.Map(map[string][]string{"a": {"value"}, "b": {"value"}}, fields)

	report := New().Validate(values, fields, oaserrors.CategoryQuery)

	require.Len(t, report.Errors, 1)
	assert.Equal(t, "b", report.Errors[0].Path)
	assert.Equal(t, oaserrors.KeywordType, report.Errors[0].Keyword)
}

func TestValidateValid(t *testing.T) {
	fields := []*contract.Field{
		{Name: "name", Type: contract.TypeString, Required: true, MinLength: ptr(2), Pattern: "^[a-z]+$"},
		{Name: "age", Type: contract.TypeInteger, Minimum: ptr(0.0), Maximum: ptr(150.0)},
		{Name: "when", Type: contract.TypeDateTime},
		{Name: "tags", Type: contract.TypeString, Repeat: true},
	}
	values := map[string]any{
		"name":       "bob",
		"age":        int64(42),
		"when":       time.Now(),
		"tags":       []any{"a", "b"},
		"undeclared": 1,
	}

	report := New().Validate(values, fields, oaserrors.CategoryQuery)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors)
}

func TestValidateRules(t *testing.T) {
	tests := []struct {
		name    string
		field   *contract.Field
		value   any
		path    string
		keyword string
	}{
		{"required", &contract.Field{Name: "x", Required: true}, nil, "x", oaserrors.KeywordRequired},
		{"repeat", &contract.Field{Name: "x"}, []any{"a", "b"}, "x", oaserrors.KeywordRepeat},
		{"repeat item type", &contract.Field{Name: "x", Type: contract.TypeInteger, Repeat: true}, []any{int64(1), "z"}, "x[1]", oaserrors.KeywordType},
		{"integer fraction", &contract.Field{Name: "x", Type: contract.TypeInteger}, 1.5, "x", oaserrors.KeywordType},
		{"boolean", &contract.Field{Name: "x", Type: contract.TypeBoolean}, "yes", "x", oaserrors.KeywordType},
		{"number", &contract.Field{Name: "x", Type: contract.TypeNumber}, "1x", "x", oaserrors.KeywordType},
		{"date", &contract.Field{Name: "x", Type: contract.TypeDate}, "never", "x", oaserrors.KeywordType},
		{"rfc2616", &contract.Field{Name: "x", Type: contract.TypeDate, Format: contract.FormatRFC2616}, "never", "x", oaserrors.KeywordType},
		{"array type", &contract.Field{Name: "x", Type: contract.TypeArray}, "a", "x", oaserrors.KeywordType},
		{"array item", &contract.Field{Name: "x", Type: contract.TypeArray, Items: &contract.Field{Type: contract.TypeBoolean}}, []any{true, "no"}, "x[1]", oaserrors.KeywordType},
		{"pattern", &contract.Field{Name: "x", Pattern: "^[0-9]+$"}, "abc", "x", oaserrors.KeywordPattern},
		{"invalid pattern", &contract.Field{Name: "x", Pattern: "("}, "abc", "x", oaserrors.KeywordPattern},
		{"minLength", &contract.Field{Name: "x", MinLength: ptr(3)}, "ab", "x", oaserrors.KeywordMinLength},
		{"maxLength counts runes", &contract.Field{Name: "x", MaxLength: ptr(2)}, "äöü", "x", oaserrors.KeywordMaxLength},
		{"minimum", &contract.Field{Name: "x", Type: contract.TypeNumber, Minimum: ptr(1.0)}, 0.5, "x", oaserrors.KeywordMinimum},
		{"maximum", &contract.Field{Name: "x", Type: contract.TypeInteger, Maximum: ptr(10.0)}, int64(11), "x", oaserrors.KeywordMaximum},
		{"enum", &contract.Field{Name: "x", Enum: []any{"a", "b"}}, "c", "x", oaserrors.KeywordEnum},
		{
			"nested object",
			&contract.Field{Name: "user", Type: contract.TypeObject, Properties: []*contract.Field{{Name: "name", Required: true}}},
			map[string]any{},
			"user.name",
			oaserrors.KeywordRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := map[string]any{}
			if tt.value != nil {
				values[tt.field.Name] = tt.value
			}
			report := New().Validate(values, []*contract.Field{tt.field}, oaserrors.CategoryForm)

			require.False(t, report.Valid)
			require.Len(t, report.Errors, 1)
			assert.Equal(t, tt.path, report.Errors[0].Path)
			assert.Equal(t, tt.keyword, report.Errors[0].Keyword)
			assert.Equal(t, oaserrors.CategoryForm, report.Errors[0].Category)
		})
	}
}

func TestValidateEnumNumbers(t *testing.T) {
	f := &contract.Field{Name: "n", Type: contract.TypeInteger, Enum: []any{1, 2}}
	report := New().Validate(map[string]any{"n": int64(2)}, []*contract.Field{f}, oaserrors.CategoryQuery)
	assert.True(t, report.Valid)
}

func TestValidateDeclarationOrder(t *testing.T) {
	fields := []*contract.Field{
		{Name: "z", Required: true},
		{Name: "a", Required: true},
		{Name: "m", Type: contract.TypeInteger},
	}
	report := New().Validate(map[string]any{"m": "x"}, fields, oaserrors.CategoryQuery)

	require.Len(t, report.Errors, 3)
	assert.Equal(t, "z", report.Errors[0].Path)
	assert.Equal(t, "a", report.Errors[1].Path)
	assert.Equal(t, "m", report.Errors[2].Path)
}

func TestValidateFailingValueSkipsConstraints(t *testing.T) {
	f := &contract.Field{Name: "n", Type: contract.TypeInteger, Minimum: ptr(5.0), Enum: []any{7}}
	report := New().Validate(map[string]any{"n": "abc"}, []*contract.Field{f}, oaserrors.CategoryQuery)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, oaserrors.KeywordType, report.Errors[0].Keyword)
}

func TestPatternCache(t *testing.T) {
	v := New()
	for i := 0; i < 3; i++ {
		ok, err := v.matchPattern("^a+$", "aaa")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, int32(1), v.patternCount.Load())
}

func TestValidateNonFiniteNumbers(t *testing.T) {
	f := &contract.Field{Name: "n", Type: contract.TypeNumber, Minimum: ptr(1.0), Maximum: ptr(10.0)}
	i := &contract.Field{Name: "i", Type: contract.TypeInteger}

	for _, value := range []any{math.NaN(), math.Inf(1), math.Inf(-1), float32(math.Inf(1))} {
		report := New().Validate(map[string]any{"n": value, "i": value}, []*contract.Field{f, i}, oaserrors.CategoryQuery)
		require.Len(t, report.Errors, 2, "%v", value)
		assert.Equal(t, oaserrors.KeywordType, report.Errors[0].Keyword)
		assert.Equal(t, oaserrors.KeywordType, report.Errors[1].Keyword)
	}
}
