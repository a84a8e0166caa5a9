package oaserrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for use with errors.Is().
// These allow quick checks without type assertions.
var (
	// ErrContract indicates an operation contract could not be compiled.
	ErrContract = errors.New("contract error")

	// ErrValidation indicates a request violated its contract.
	ErrValidation = errors.New("validation error")

	// ErrMalformedBody indicates a request body could not be parsed as its declared format.
	ErrMalformedBody = errors.New("malformed body")

	// ErrNotAcceptable indicates no declared response media type satisfies the Accept header.
	ErrNotAcceptable = errors.New("not acceptable")

	// ErrUnsupportedMediaType indicates the request body type is not declared, or is missing.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrResourceLimit indicates a body size or count limit was exceeded.
	ErrResourceLimit = errors.New("resource limit exceeded")

	// ErrConfig indicates an invalid configuration.
	ErrConfig = errors.New("configuration error")
)

// ContractError represents a failure to compile an operation contract.
// Contract errors are raised at route registration time and are never retried.
type ContractError struct {
	// Method is the HTTP method of the operation
	Method string
	// Path is the path template of the operation
	Path string
	// MediaType is the body media type being compiled (empty for headers/query)
	MediaType string
	// Message describes the failure
	Message string
	// Cause is the underlying error, if any
	Cause error
}

// Error returns a human-readable error message.
func (e *ContractError) Error() string {
	msg := "contract error"
	if e.Method != "" || e.Path != "" {
		msg += fmt.Sprintf(" in %s %s", strings.ToUpper(e.Method), e.Path)
	}
	if e.MediaType != "" {
		msg += " (" + e.MediaType + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *ContractError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *ContractError) Is(target error) bool {
	return target == ErrContract
}

// RequestError is the single error shape every request-time failure takes.
// The error-handling stage reads Status for the response code and Errors for the
// structured validation list.
type RequestError struct {
	// Status is the HTTP-equivalent status code (400, 406, 413, 415)
	Status int
	// Kind is one of the request sentinels (ErrValidation, ErrNotAcceptable, ...)
	Kind error
	// Message describes the failure
	Message string
	// ContractFailure marks failures caused by the request violating the contract,
	// as opposed to transport or parse problems.
	ContractFailure bool
	// Errors is the ordered list of validation records (ErrValidation only)
	Errors []ValidationError
	// Accepted names the acceptable media types (406 and 415 only)
	Accepted []string
	// Cause is the underlying error, if any
	Cause error
}

// Error returns a human-readable error message.
func (e *RequestError) Error() string {
	msg := "request error"
	if e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if len(e.Errors) > 0 {
		parts := make([]string, 0, len(e.Errors))
		for _, ve := range e.Errors {
			parts = append(parts, ve.String())
		}
		msg += " [" + strings.Join(parts, "; ") + "]"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *RequestError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches the kind of this error.
func (e *RequestError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// NewValidationError builds the 400 error for a failed report.
func NewValidationError(errs []ValidationError) *RequestError {
	return &RequestError{
		Status:          http.StatusBadRequest,
		Kind:            ErrValidation,
		Message:         fmt.Sprintf("request failed validation with %d error(s)", len(errs)),
		ContractFailure: true,
		Errors:          errs,
	}
}

// NewMalformedBodyError builds the 400 error for a body that could not be parsed.
// It deliberately carries no validation records.
func NewMalformedBodyError(mediaType string, cause error) *RequestError {
	return &RequestError{
		Status:  http.StatusBadRequest,
		Kind:    ErrMalformedBody,
		Message: fmt.Sprintf("unable to parse %s body", mediaType),
		Cause:   cause,
	}
}

// NewNotAcceptableError builds the 406 error naming the acceptable set.
func NewNotAcceptableError(accept string, accepted []string) *RequestError {
	return &RequestError{
		Status:          http.StatusNotAcceptable,
		Kind:            ErrNotAcceptable,
		Message:         fmt.Sprintf("accept %q does not match any of %s", accept, strings.Join(accepted, ", ")),
		ContractFailure: true,
		Accepted:        accepted,
	}
}

// NewUnsupportedMediaTypeError builds the 415 error naming the accepted set.
// An empty contentType means the request carried no body.
func NewUnsupportedMediaTypeError(contentType string, accepted []string) *RequestError {
	msg := fmt.Sprintf("content type %q is not one of %s", contentType, strings.Join(accepted, ", "))
	if contentType == "" {
		msg = fmt.Sprintf("no body sent, expected one of %s", strings.Join(accepted, ", "))
	}
	return &RequestError{
		Status:          http.StatusUnsupportedMediaType,
		Kind:            ErrUnsupportedMediaType,
		Message:         msg,
		ContractFailure: true,
		Accepted:        accepted,
	}
}

// NewResourceLimitError builds the 413 error for an exceeded limit.
func NewResourceLimitError(resource string, limit int64, cause error) *RequestError {
	return &RequestError{
		Status:  http.StatusRequestEntityTooLarge,
		Kind:    ErrResourceLimit,
		Message: fmt.Sprintf("%s limit of %d exceeded", resource, limit),
		Cause:   cause,
	}
}

// ConfigError represents an invalid configuration or input.
type ConfigError struct {
	// Option is the name of the problematic configuration option
	Option string
	// Value is the invalid value that was provided (may be nil)
	Value any
	// Message describes the configuration error
	Message string
	// Cause is the underlying error, if any
	Cause error
}

// Error returns a human-readable error message.
func (e *ConfigError) Error() string {
	msg := "configuration error"
	if e.Option != "" {
		msg += " for " + e.Option
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// StatusCode returns the HTTP status for err: the RequestError status when err is
// (or wraps) one, otherwise 500.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.Status != 0 {
		return reqErr.Status
	}
	return http.StatusInternalServerError
}

// ValidationErrors returns the validation records carried by err, if any.
func ValidationErrors(err error) []ValidationError {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Errors
	}
	return nil
}
