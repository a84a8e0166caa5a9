package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/erraggy/oasguard/contract"
	"github.com/erraggy/oasguard/httpvalidator"
)

// echoPart describes one forwarded multipart part.
type echoPart struct {
	Name        string `json:"name"`
	FileName    string `json:"fileName,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Value       any    `json:"value,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// echoResponse is the body written for a request that passed validation.
type echoResponse struct {
	Operation string         `json:"operation"`
	Headers   map[string]any `json:"headers"`
	Query     map[string]any `json:"query"`
	MediaType string         `json:"mediaType,omitempty"`
	Body      any            `json:"body,omitempty"`
	Parts     []echoPart     `json:"parts,omitempty"`
}

// echoHandler answers with the validated values. Multipart forms are drained
// here; a failing form ends the handler without writing so the middleware
// renders the error.
func echoHandler(op *contract.Operation) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vals := httpvalidator.FromRequest(r)
		resp := echoResponse{
			Operation: op.String(),
			Headers:   vals.Headers,
			Query:     vals.Query,
			MediaType: vals.MediaType,
			Body:      vals.Body,
		}

		if vals.Form != nil {
			for {
				part, err := vals.Form.Next()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return
				}
				ep := echoPart{Name: part.Name, FileName: part.FileName, ContentType: part.ContentType, Value: part.Value}
				if part.IsFile() {
					if ep.Size, err = io.Copy(io.Discard, part); err != nil {
						return
					}
				}
				resp.Parts = append(resp.Parts, ep)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	})
}
