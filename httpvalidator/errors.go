package httpvalidator

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/erraggy/oasguard/oaserrors"
)

// ErrorHandler renders a rejected request. err is a *oaserrors.RequestError.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// ErrorResponse is the JSON document written by DefaultErrorHandler.
type ErrorResponse struct {
	Status   int                         `json:"status"`
	Message  string                      `json:"message"`
	Accepted []string                    `json:"accepted,omitempty"`
	Errors   []oaserrors.ValidationError `json:"errors,omitempty"`
}

// DefaultErrorHandler writes the error as an ErrorResponse with the error's status.
// Malformed bodies and limit failures carry no validation records.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	status := oaserrors.StatusCode(err)
	resp := ErrorResponse{Status: status, Message: http.StatusText(status)}

	var reqErr *oaserrors.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Message != "" {
			resp.Message = reqErr.Message
		}
		resp.Accepted = reqErr.Accepted
		resp.Errors = reqErr.Errors
	}
	if status == http.StatusUnsupportedMediaType && len(resp.Accepted) > 0 {
		w.Header().Set("Accept", strings.Join(resp.Accepted, ", "))
	}

	body, encErr := json.Marshal(resp)
	if encErr != nil {
		resp.Errors = printableErrors(resp.Errors)
		body, encErr = json.Marshal(resp)
	}
	if encErr != nil {
		body, _ = json.Marshal(ErrorResponse{Status: status, Message: resp.Message})
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// printableErrors replaces offending values and constraints JSON cannot carry,
// such as NaN or infinities, with their printed form.
func printableErrors(errs []oaserrors.ValidationError) []oaserrors.ValidationError {
	out := make([]oaserrors.ValidationError, len(errs))
	for i, e := range errs {
		if _, err := json.Marshal(e.Data); err != nil {
			e.Data = fmt.Sprint(e.Data)
		}
		if _, err := json.Marshal(e.Schema); err != nil {
			e.Schema = fmt.Sprint(e.Schema)
		}
		out[i] = e
	}
	return out
}

// failureKind names the kind of a request error for logs and metrics.
func failureKind(err error) string {
	switch {
	case errors.Is(err, oaserrors.ErrValidation):
		return "validation"
	case errors.Is(err, oaserrors.ErrMalformedBody):
		return "malformed_body"
	case errors.Is(err, oaserrors.ErrNotAcceptable):
		return "not_acceptable"
	case errors.Is(err, oaserrors.ErrUnsupportedMediaType):
		return "unsupported_media_type"
	case errors.Is(err, oaserrors.ErrResourceLimit):
		return "resource_limit"
	default:
		return "internal"
	}
}

// failureCategory returns the request part of the first validation record.
func failureCategory(err error) string {
	if errs := oaserrors.ValidationErrors(err); len(errs) > 0 {
		return string(errs[0].Category)
	}
	return ""
}

// trackingWriter records whether the handler has started a response.
type trackingWriter struct {
	http.ResponseWriter
	wrote bool
}

func (t *trackingWriter) WriteHeader(code int) {
	t.wrote = true
	t.ResponseWriter.WriteHeader(code)
}

func (t *trackingWriter) Write(b []byte) (int, error) {
	t.wrote = true
	return t.ResponseWriter.Write(b)
}

func (t *trackingWriter) Flush() {
	if f, ok := t.ResponseWriter.(http.Flusher); ok {
		t.wrote = true
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (t *trackingWriter) Unwrap() http.ResponseWriter {
	return t.ResponseWriter
}
