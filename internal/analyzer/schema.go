package analyzer

import (
	"bytes"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// findingSchemaBytes only pins field types. Models routinely omit fields or
// add their own, and both are accepted.
var (
	findingSchemaBytes = []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "risk_level": {"type": ["string", "null"]},
    "summary": {"type": ["string", "null"]},
    "credentials": {
      "type": ["array", "null"],
      "items": {"$ref": "#/definitions/credential"}
    }
  },
  "additionalProperties": true,
  "definitions": {
    "credential": {
      "type": "object",
      "properties": {
        "email": {"type": ["string", "null"]},
        "password": {"type": ["string", "null"]},
        "hash_type": {"type": ["string", "null"]}
      },
      "additionalProperties": true
    }
  }
}`)

	findingSchemaOnce     sync.Once
	findingSchemaCompiled *jsonschema.Schema
	findingSchemaErr      error
)

// validateFinding checks a decoded model object against the finding schema.
func validateFinding(obj map[string]any) error {
	findingSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("finding.json", bytes.NewReader(findingSchemaBytes)); err != nil {
			findingSchemaErr = fmt.Errorf("add finding schema: %w", err)
			return
		}
		findingSchemaCompiled, findingSchemaErr = compiler.Compile("finding.json")
	})
	if findingSchemaErr != nil {
		return findingSchemaErr
	}
	return findingSchemaCompiled.Validate(obj)
}
