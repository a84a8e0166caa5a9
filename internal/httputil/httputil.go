// Package httputil provides HTTP status-code and media-type helpers shared by the
// contract loader, the body dispatcher and the content negotiator.
package httputil

import (
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// HTTP Status Code Constants
const (
	StatusCodeLength = 3   // Standard length of HTTP status codes (e.g., "200", "404")
	MinStatusCode    = 100 // Minimum valid HTTP status code
	MaxStatusCode    = 599 // Maximum valid HTTP status code
	WildcardChar     = 'X' // Wildcard character used in status code patterns (e.g., "2XX")
)

// Wildcard boundary characters for validation
const (
	minWildcardBoundary = '1'
	maxWildcardBoundary = '5'
)

// Methods lists the HTTP methods an operation may declare.
var Methods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPut:     true,
	http.MethodPost:    true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
	http.MethodHead:    true,
	http.MethodPatch:   true,
	http.MethodTrace:   true,
	http.MethodConnect: true,
}

// ValidateStatusCode checks if a response status key is valid.
// Valid values are:
//   - "default" for default response
//   - Wildcard patterns: 1XX, 2XX, 3XX, 4XX, 5XX
//   - Numeric codes: 100-599
func ValidateStatusCode(code string) bool {
	if code == "default" {
		return true
	}

	if len(code) != StatusCodeLength {
		return false
	}

	// Check for wildcard patterns (e.g., "2XX", "4XX")
	if (code[1] == WildcardChar || code[1] == 'x') && (code[2] == WildcardChar || code[2] == 'x') {
		return code[0] >= minWildcardBoundary && code[0] <= maxWildcardBoundary
	}

	statusCode, err := strconv.Atoi(code)
	return err == nil && statusCode >= MinStatusCode && statusCode <= MaxStatusCode
}

// IsSuccessCode reports whether a response status key denotes a 2xx response.
func IsSuccessCode(code string) bool {
	return ValidateStatusCode(code) && code[0] == '2'
}

// IsValidMediaType validates a media type string according to RFC 2045/2046.
// Handles wildcards (*/* and type/*) and prevents invalid combinations (*/subtype).
func IsValidMediaType(mediaType string) bool {
	if mediaType == "*/*" {
		return true
	}

	if strings.HasSuffix(mediaType, "/*") {
		parts := strings.Split(mediaType, "/")
		return len(parts) == 2 && parts[0] != "" && parts[0] != "*"
	}

	_, _, err := mime.ParseMediaType(mediaType)
	return err == nil && strings.Contains(mediaType, "/")
}

// MatchMediaType checks if a declared pattern matches a concrete media type.
// Supports wildcards like "application/*" and "*/*". Comparison is case-insensitive
// and ignores parameters on either side.
func MatchMediaType(pattern, mediaType string) bool {
	pattern = Essence(pattern)
	mediaType = Essence(mediaType)

	if pattern == "*/*" {
		return true
	}

	if strings.HasSuffix(pattern, "/*") {
		prefix := pattern[:len(pattern)-1]
		return strings.HasPrefix(mediaType, prefix)
	}

	return pattern == mediaType
}

// Specificity ranks a declared media type: exact types beat "type/*", which beats "*/*".
func Specificity(pattern string) int {
	pattern = Essence(pattern)
	switch {
	case pattern == "*/*":
		return 0
	case strings.HasSuffix(pattern, "/*"):
		return 1
	default:
		return 2
	}
}

// Essence strips parameters and lower-cases a media type ("Text/HTML; charset=utf-8" -> "text/html").
func Essence(mediaType string) string {
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// IsJSON reports whether mediaType is JSON or a +json structured syntax suffix.
func IsJSON(mediaType string) bool {
	mt := Essence(mediaType)
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// IsXML reports whether mediaType is XML or a +xml structured syntax suffix.
func IsXML(mediaType string) bool {
	mt := Essence(mediaType)
	return mt == "application/xml" || mt == "text/xml" || strings.HasSuffix(mt, "+xml")
}

// IsURLEncoded reports whether mediaType is application/x-www-form-urlencoded.
func IsURLEncoded(mediaType string) bool {
	return Essence(mediaType) == "application/x-www-form-urlencoded"
}

// IsMultipartForm reports whether mediaType is multipart/form-data.
func IsMultipartForm(mediaType string) bool {
	return Essence(mediaType) == "multipart/form-data"
}
