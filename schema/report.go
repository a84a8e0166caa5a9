package schema

import (
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/erraggy/oasguard/oaserrors"
)

var printer = message.NewPrinter(language.English)

// flatten converts the leaves of a jsonschema error tree into validation records.
// A "required" leaf yields one record per missing property, with the property
// appended to the path.
func flatten(ve *jsonschema.ValidationError, instance any, category oaserrors.Category) []oaserrors.ValidationError {
	var errs []oaserrors.ValidationError
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, cause := range e.Causes {
				walk(cause)
			}
			return
		}
		errs = append(errs, leaf(e, instance, category)...)
	}
	walk(ve)
	return errs
}

func leaf(e *jsonschema.ValidationError, instance any, category oaserrors.Category) []oaserrors.ValidationError {
	path, data := locate(instance, e.InstanceLocation)

	switch k := e.ErrorKind.(type) {
	case *kind.Required:
		out := make([]oaserrors.ValidationError, 0, len(k.Missing))
		for _, name := range k.Missing {
			out = append(out, oaserrors.ValidationError{
				Category: category,
				Path:     joinField(path, name),
				Keyword:  oaserrors.KeywordRequired,
				Schema:   true,
				Message:  "is required",
			})
		}
		return out
	case *kind.AdditionalProperties:
		obj, _ := data.(map[string]any)
		out := make([]oaserrors.ValidationError, 0, len(k.Properties))
		for _, name := range k.Properties {
			out = append(out, oaserrors.ValidationError{
				Category: category,
				Path:     joinField(path, name),
				Keyword:  oaserrors.KeywordAdditionalProperties,
				Data:     obj[name],
				Schema:   false,
				Message:  "is not a declared property",
			})
		}
		return out
	}

	return []oaserrors.ValidationError{{
		Category: category,
		Path:     path,
		Keyword:  keyword(e.ErrorKind),
		Data:     data,
		Schema:   expected(e.ErrorKind),
		Message:  e.ErrorKind.LocalizedString(printer),
	}}
}

// keyword returns the last segment of the failing keyword path, e.g. "type" for
// "properties/x/type".
func keyword(k jsonschema.ErrorKind) string {
	kp := k.KeywordPath()
	if len(kp) == 0 {
		return "schema"
	}
	return kp[len(kp)-1]
}

func expected(k jsonschema.ErrorKind) any {
	switch v := k.(type) {
	case *kind.Type:
		if len(v.Want) == 1 {
			return v.Want[0]
		}
		return v.Want
	case *kind.Pattern:
		return v.Want
	case *kind.Enum:
		return v.Want
	}
	return nil
}

// locate walks instance along loc, returning the dotted path ("user.tags[1]") and
// the value found there.
func locate(instance any, loc []string) (string, any) {
	var sb strings.Builder
	current := instance
	for _, seg := range loc {
		switch node := current.(type) {
		case []any:
			sb.WriteString("[" + seg + "]")
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				current = nil
				continue
			}
			current = node[i]
		case map[string]any:
			if sb.Len() > 0 {
				sb.WriteByte('.')
			}
			sb.WriteString(seg)
			current = node[seg]
		default:
			if sb.Len() > 0 {
				sb.WriteByte('.')
			}
			sb.WriteString(seg)
			current = nil
		}
	}
	return sb.String(), current
}

func joinField(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
