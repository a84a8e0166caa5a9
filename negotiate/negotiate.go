// Package negotiate matches a request's Accept header against the media types an
// operation declares for its success responses.
package negotiate

import (
	"net/http"
	"strings"

	"github.com/elnormous/contenttype"
)

// Negotiate reports whether the Accept header value accept is satisfied by one of
// declared, and returns the preferred match.
//
// Matching is quality-weighted and wildcard-aware. An empty declared set skips
// negotiation and accepts anything, as does a missing Accept header. A malformed
// Accept header matches nothing.
func Negotiate(accept string, declared []string) (string, bool) {
	if len(declared) == 0 {
		return "", true
	}
	if strings.TrimSpace(accept) == "" {
		return declared[0], true
	}

	available := make([]contenttype.MediaType, 0, len(declared))
	for _, mt := range declared {
		available = append(available, contenttype.NewMediaType(mt))
	}

	req := &http.Request{Header: http.Header{"Accept": {accept}}}
	chosen, _, err := contenttype.GetAcceptableMediaType(req, available)
	if err != nil {
		return "", false
	}
	return chosen.String(), true
}

// Request negotiates using every Accept header line of r.
func Request(r *http.Request, declared []string) (string, bool) {
	return Negotiate(strings.Join(r.Header.Values("Accept"), ", "), declared)
}
