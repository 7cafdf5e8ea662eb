// Package validator checks modeling system manifests against a JSON schema
// and evaluates manifest checks against a built system.
package validator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator validates modeling system manifests.
type Validator struct {
	manifestSchema *jsonschema.Schema
}

// ValidationError represents a validation failure.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationResult holds the result of a validation.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// New creates a new validator with the embedded manifest schema.
func New() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	if err := compiler.AddResource("manifest.json", strings.NewReader(manifestSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add manifest schema: %w", err)
	}

	manifestSchema, err := compiler.Compile("manifest.json")
	if err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}

	return &Validator{manifestSchema: manifestSchema}, nil
}

// ValidateManifest validates a decoded manifest document.
func (v *Validator) ValidateManifest(manifest map[string]interface{}) *ValidationResult {
	return v.validate(v.manifestSchema, manifest)
}

// ValidateManifestJSON validates a JSON-encoded manifest.
func (v *Validator) ValidateManifestJSON(data []byte) *ValidationResult {
	var manifest map[string]interface{}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{Path: "$", Message: fmt.Sprintf("invalid JSON: %v", err)},
			},
		}
	}
	return v.ValidateManifest(manifest)
}

// validate runs schema validation and converts errors.
func (v *Validator) validate(schema *jsonschema.Schema, data interface{}) *ValidationResult {
	err := schema.Validate(data)
	if err == nil {
		return &ValidationResult{Valid: true}
	}

	result := &ValidationResult{Valid: false}

	if verr, ok := err.(*jsonschema.ValidationError); ok {
		result.Errors = extractErrors(verr)
	} else {
		result.Errors = []ValidationError{
			{Path: "$", Message: err.Error()},
		}
	}

	return result
}

// extractErrors flattens the leaf causes of a validation error.
func extractErrors(verr *jsonschema.ValidationError) []ValidationError {
	if len(verr.Causes) == 0 {
		path := verr.InstanceLocation
		if path == "" {
			path = "/"
		}
		return []ValidationError{{Path: path, Message: verr.Message}}
	}

	var errors []ValidationError
	for _, cause := range verr.Causes {
		errors = append(errors, extractErrors(cause)...)
	}
	return errors
}

const manifestSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "manifest.json",
  "title": "Modeling System Manifest",
  "description": "Schema for nemsgen modeling system manifests",
  "type": "object",
  "required": ["start", "end", "interval", "models"],
  "additionalProperties": false,
  "$defs": {
    "code": {
      "type": "string",
      "minLength": 3,
      "description": "Model type code or long name (ATM, wave, ...)"
    },
    "method": {
      "type": "string",
      "description": "Remap method (redist, bilinear, patch, nearest_stod, nearest_dtos, conserve)"
    },
    "verbosity": {
      "type": "string",
      "pattern": "^(?i)(min|max|off|low|high|minimum|maximum)$"
    },
    "attributes": {
      "type": "object",
      "additionalProperties": {"type": ["string", "boolean", "number"]}
    },
    "codes": {
      "type": "array",
      "items": {"$ref": "#/$defs/code"}
    }
  },
  "properties": {
    "start": {
      "type": "string",
      "minLength": 1,
      "description": "Simulation start (RFC 3339 or YYYY-MM-DD)"
    },
    "end": {
      "type": "string",
      "minLength": 1,
      "description": "Simulation end"
    },
    "interval": {
      "type": "string",
      "pattern": "^([0-9]+(\\.[0-9]+)?(ns|us|ms|s|m|h))+$",
      "description": "Coupling interval as a duration (e.g. 1h, 90s)"
    },
    "verbosity": {"$ref": "#/$defs/verbosity"},
    "attributes": {"$ref": "#/$defs/attributes"},
    "implementations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type"],
        "additionalProperties": false,
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"$ref": "#/$defs/code"},
          "description": {"type": "string"},
          "url": {"type": "string"},
          "processors": {"type": "integer", "minimum": 0},
          "forcing": {"type": "boolean"}
        }
      },
      "description": "Model implementations declared by the manifest"
    },
    "models": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "additionalProperties": false,
        "anyOf": [
          {"required": ["implementation"]},
          {"required": ["type", "name"]}
        ],
        "properties": {
          "type": {"$ref": "#/$defs/code"},
          "implementation": {"type": "string", "minLength": 1},
          "name": {"type": "string", "minLength": 1},
          "processors": {"type": "integer", "minimum": 0},
          "forcing": {"type": "string"},
          "verbosity": {"$ref": "#/$defs/verbosity"},
          "attributes": {"$ref": "#/$defs/attributes"}
        }
      },
      "description": "Model entries"
    },
    "connections": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "oneOf": [
          {"required": ["route"]},
          {"required": ["source", "target"]}
        ],
        "properties": {
          "route": {"type": "string", "pattern": "->"},
          "source": {"$ref": "#/$defs/code"},
          "target": {"$ref": "#/$defs/code"},
          "method": {"$ref": "#/$defs/method"}
        }
      },
      "description": "Direct model to model couplings"
    },
    "mediations": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "sources": {"$ref": "#/$defs/codes"},
          "functions": {"type": "array", "items": {"type": "string", "minLength": 1}},
          "targets": {"$ref": "#/$defs/codes"},
          "method": {"$ref": "#/$defs/method"},
          "processors": {"type": "integer", "minimum": 0},
          "name": {"type": "string"},
          "attributes": {"$ref": "#/$defs/attributes"}
        }
      },
      "description": "Couplings routed through the mediator"
    },
    "sequence": {
      "type": "array",
      "items": {"type": "string", "minLength": 1},
      "description": "Run sequence order as route strings"
    },
    "checks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["expr"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string"},
          "expr": {"type": "string", "minLength": 1},
          "message": {"type": "string"}
        }
      },
      "description": "Boolean expressions evaluated against the built system"
    }
  }
}`
