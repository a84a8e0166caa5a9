// Package oaserrors provides structured error types for oasguard.
//
// Import path: github.com/erraggy/oasguard/oaserrors
//
// This package enables programmatic error handling via [errors.Is] and [errors.As],
// allowing the error-handling stage of an HTTP server to distinguish contract
// violations from transport problems without parsing messages.
//
// # Error Types
//
//   - [ContractError]: an operation contract could not be compiled (route registration time)
//   - [RequestError]: a request failed one of the validation stages
//   - [ConfigError]: invalid middleware configuration
//
// # Validation Records
//
// Every schema or field violation is reported as a [ValidationError] record. Records are
// aggregated into a [Report], which is either valid with no errors or invalid with at
// least one error. A [RequestError] with [ErrValidation] kind carries the full ordered list.
//
// # Sentinel Errors
//
//   - [ErrContract]: Matches any [ContractError]
//   - [ErrValidation]: Matches a [RequestError] for a 400 validation failure
//   - [ErrMalformedBody]: Matches a [RequestError] for a body the parser could not read
//   - [ErrNotAcceptable]: Matches a [RequestError] for a 406 Accept mismatch
//   - [ErrUnsupportedMediaType]: Matches a [RequestError] for a 415 content type failure
//   - [ErrResourceLimit]: Matches a [RequestError] for an exceeded body limit
//   - [ErrConfig]: Matches any [ConfigError]
//
// # Usage
//
//	func handleError(w http.ResponseWriter, r *http.Request, err error) {
//	    var reqErr *oaserrors.RequestError
//	    if errors.As(err, &reqErr) && reqErr.ContractFailure {
//	        for _, e := range reqErr.Errors {
//	            log.Printf("%s %s: %s", e.Category, e.Path, e.Message)
//	        }
//	    }
//	    http.Error(w, err.Error(), oaserrors.StatusCode(err))
//	}
package oaserrors
