// Package schema compiles body, header and query declarations into reusable
// validators.
//
// Field-map declarations are checked with the validator package. JSON Schema
// documents, inline or registered by key, are evaluated with
// github.com/santhosh-tekuri/jsonschema/v6 using draft-04 by default; draft-03
// documents are upgraded first. Evaluator failures are flattened into one
// [oaserrors.ValidationError] per failing leaf.
//
// # Registering external schemas
//
// Schemas referenced by key must be registered before the operations using them are
// compiled:
//
//	if err := schema.RegisterSchema(userJSON, "User", nil); err != nil {
//		log.Fatal(err)
//	}
//	compiled, err := schema.Compile(&contract.Body{Kind: contract.BodyExternalRef, Ref: "User"},
//		schema.Context{Method: "POST", Path: "/users", Category: oaserrors.CategoryJSON}, nil)
//
// A nil registry means the process-wide [Default] registry. Tests and isolated
// operations can pass their own from [NewRegistry].
//
// # Compile errors
//
// Compilation never defers problems to request time. A malformed schema, a bad
// regular expression, an unresolved reference or an unknown draft is returned as a
// *oaserrors.ContractError naming the method and path.
//
// # Root constraints
//
// Body-level minProperties, maxProperties and additionalProperties: false are
// checked after the primary validation, whether or not it passed, and each adds its
// own records.
package schema
