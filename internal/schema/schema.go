// Package schema validates an incoming Request document against a JSON
// Schema before planning, so a malformed request is rejected with a
// Validation error up front rather than surfacing as a confusing downstream
// panic or type-assertion failure.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	ferrors "github.com/standardbeagle/fileforge/internal/errors"
)

var operationKinds = []interface{}{"analyze", "edit", "create", "delete", "validate"}

// RequestSchema builds the JSON Schema one Request document must satisfy.
// It mirrors types.Request/Operation's json tags; it is intentionally
// looser than the Go struct in places (e.g. it does not attempt to model
// "exactly one of analyze/edit/create/delete/validate is set"). Nothing
// else enforces that invariant either: each engine handler rejects an
// operation whose own kind's payload is missing and ignores the others.
func RequestSchema() *jsonschema.Schema {
	str := &jsonschema.Schema{Type: "string"}
	strArray := &jsonschema.Schema{Type: "array", Items: str}

	op := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"id":          str,
			"type":        {Type: "string", Enum: operationKinds},
			"depends_on":  strArray,
			"transaction": str,
			"analyze":     {Type: "object"},
			"edit":        {Type: "object"},
			"create":      {Type: "object"},
			"delete":      {Type: "object"},
			"validate":    {Type: "object"},
		},
		Required: []string{"type"},
	}

	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"operations": {Type: "array", Items: op},
			"options":    {Type: "object"},
		},
		Required: []string{"operations"},
	}
}

// Validator resolves RequestSchema once and validates raw request bodies
// against it.
type Validator struct {
	resolved *jsonschema.Resolved
}

// New resolves the request schema, failing only if the schema itself is
// malformed (a programmer error, not a request-time condition).
func New() (*Validator, error) {
	resolved, err := RequestSchema().Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve request schema: %w", err)
	}
	return &Validator{resolved: resolved}, nil
}

// Validate checks raw request JSON against the schema, returning a
// Validation-coded error on failure. Details carries only a short "reason";
// the schema library's own error is wrapped as the underlying error.
func (v *Validator) Validate(raw []byte) error {
	var instance interface{}
	if err := json.Unmarshal(raw, &instance); err != nil {
		return ferrors.New(ferrors.Validation, "parse_request", err).
			WithDetails(map[string]interface{}{"reason": "invalid JSON"})
	}
	if err := v.resolved.Validate(instance); err != nil {
		return ferrors.New(ferrors.Validation, "validate_request", err).
			WithDetails(map[string]interface{}{"reason": "schema validation failed"})
	}
	return nil
}
