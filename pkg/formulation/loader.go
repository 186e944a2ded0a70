// Package formulation loads formulation documents from disk and holds
// them to a schema before the core ever sees them. Untrusted parsed
// JSON is sanitized first, so deny-listed keys are gone by the time
// schema validation and typed decoding run.
package formulation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zpratt/lousy-iam/pkg/policy"
	"github.com/zpratt/lousy-iam/pkg/sanitize"
)

const schemaURL = "https://lousy-iam.schemas.local/formulation.schema.json"

// schemaJSON is the structural contract for formulation input. It is
// deliberately loose about policy document internals: the rule catalog
// owns those judgments and reports them as violations, not parse
// failures.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["roles"],
  "properties": {
    "roles": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["role_name", "trust_policy", "permission_policies"],
        "properties": {
          "role_name": {"type": "string", "minLength": 1},
          "role_path": {"type": "string"},
          "description": {"type": "string"},
          "max_session_duration": {"type": "integer", "minimum": 900, "maximum": 43200},
          "permission_boundary_arn": {"type": "string"},
          "trust_policy": {"type": "object"},
          "permission_policies": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["policy_name", "policy_document"],
              "properties": {
                "policy_name": {"type": "string", "minLength": 1},
                "policy_document": {"type": "object"},
                "estimated_size_bytes": {"type": "integer", "minimum": 0}
              }
            }
          }
        }
      }
    },
    "template_variables": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    }
  }
}`

var compiledSchema = mustCompile()

func mustCompile() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("formulation: schema load failed: %v", err))
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		panic(fmt.Sprintf("formulation: schema compile failed: %v", err))
	}
	return schema
}

// Load reads, sanitizes, schema-validates and decodes a formulation
// file.
func Load(path string) (*policy.Formulation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("formulation: read %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("formulation: %s: %w", path, err)
	}
	return f, nil
}

// Parse sanitizes and validates raw formulation JSON, then decodes it
// into the typed model.
func Parse(data []byte) (*policy.Formulation, error) {
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	cleaned, err := sanitize.Clean(parsed)
	if err != nil {
		return nil, err
	}

	if err := compiledSchema.Validate(cleaned); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	// Re-encode the cleaned graph so the typed decode never sees a key
	// the sanitizer dropped.
	safe, err := json.Marshal(cleaned)
	if err != nil {
		return nil, fmt.Errorf("re-encode: %w", err)
	}
	var f policy.Formulation
	if err := json.Unmarshal(safe, &f); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &f, nil
}
