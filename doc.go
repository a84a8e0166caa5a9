// Package oasguard enforces declarative API contracts on incoming HTTP requests.
//
// An operation contract describes one method and path: its headers, query
// parameters, request bodies keyed by media type, and the media types of its
// responses. oasguard compiles each contract once, at startup, into net/http
// middleware that validates every request before it reaches the handler.
//
// # Packages
//
//   - contract: the operation model and the YAML contract document loader
//   - sanitizer: coercion of raw strings into typed values
//   - validator: field declaration checks that collect every failure
//   - schema: JSON Schema compilation, draft-03 upgrade and the schema registry
//   - negotiate: Accept header negotiation
//   - formstream: streaming multipart validation
//   - httpvalidator: the middleware chain, body dispatch and error rendering
//   - oaserrors: validation records and the request error taxonomy
//   - logging: the logger interface with slog and zap adapters
//
// # Quick Start
//
//	doc, err := contract.LoadFile("contract.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	mux := http.NewServeMux()
//	err = httpvalidator.Mount(mux, doc, func(op *contract.Operation) http.Handler {
//	    return handlers[op.String()]
//	})
//	if err != nil {
//	    log.Fatal(err) // a broken contract never serves traffic
//	}
//	log.Fatal(http.ListenAndServe(":8080", mux))
//
// A contract document looks like this:
//
//	schemas:
//	  User: {type: object, required: [name], properties: {name: {type: string}}}
//	operations:
//	  - method: POST
//	    path: /users
//	    headers:
//	      - {name: X-Request-Id, required: true}
//	    query:
//	      - {name: dryRun, type: boolean}
//	    body:
//	      application/json: {ref: User}
//	      multipart/form-data:
//	        fields:
//	          - {name: avatar, type: file, fileTypes: ["image/*"]}
//	    responses:
//	      "201": [application/json]
//
// Requests that fail are answered with 400 (validation or malformed body), 406
// (Accept mismatch), 413 (size limits) or 415 (unsupported or missing body). The
// 400 validation response lists every failure at once.
//
// The oasguard command checks contract documents and can serve one in front of an
// echo handler:
//
//	oasguard check contract.yaml
//	oasguard serve --contract contract.yaml --addr :8080
package oasguard
