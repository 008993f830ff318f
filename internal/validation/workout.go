// Package validation checks inbound workout JSON against an embedded JSON
// Schema before decoding, so malformed descriptions are rejected at the
// boundary and never reach the engine.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/meltforce/repflow/pkg/schema"
)

// workoutSchemaJSON is the JSON Schema for workout validation.
// Embedded as a constant to avoid filesystem dependencies.
const workoutSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://repflow.dev/schemas/workout.json",
  "type": "object",
  "required": ["intervals"],
  "properties": {
    "id": { "type": "string" },
    "name": { "type": "string" },
    "intervals": {
      "type": "array",
      "items": { "$ref": "#/$defs/interval" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "interval": {
      "type": "object",
      "required": ["kind"],
      "properties": {
        "kind": {
          "type": "string",
          "enum": ["warmup", "cooldown", "time", "reps", "distance", "rest", "repeat"]
        },
        "seconds": { "type": "integer", "minimum": 0 },
        "meters": { "type": "integer", "minimum": 1 },
        "target": { "type": "string" },
        "sets": { "type": "integer", "minimum": 1 },
        "reps": { "type": "integer", "minimum": 1 },
        "name": { "type": "string" },
        "load": { "type": "string" },
        "restSec": { "type": "integer", "minimum": 0 },
        "followAlongUrl": { "type": "string" },
        "count": { "type": "integer", "minimum": 1 },
        "children": {
          "type": "array",
          "items": { "$ref": "#/$defs/interval" }
        }
      },
      "additionalProperties": false,
      "allOf": [
        {
          "if": { "properties": { "kind": { "enum": ["warmup", "cooldown", "time"] } } },
          "then": { "required": ["seconds"] }
        },
        {
          "if": { "properties": { "kind": { "const": "distance" } } },
          "then": { "required": ["meters"] }
        },
        {
          "if": { "properties": { "kind": { "const": "reps" } } },
          "then": { "required": ["reps", "name"] }
        },
        {
          "if": { "properties": { "kind": { "const": "repeat" } } },
          "then": { "required": ["count", "children"] }
        }
      ]
    }
  }
}`

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func workoutSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(workoutSchemaJSON))
		if err != nil {
			compileErr = fmt.Errorf("unmarshal workout schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		c.AssertFormat()
		const url = "repflow://schemas/workout.json"
		if err := c.AddResource(url, doc); err != nil {
			compileErr = fmt.Errorf("add workout schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(url)
	})
	return compiledSchema, compileErr
}

// ValidateWorkoutJSON validates raw workout JSON against the schema.
func ValidateWorkoutJSON(data []byte) error {
	s, err := workoutSchema()
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, err.Error()).WithCause(err)
	}

	// The jsonschema library requires json.Number-typed values.
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid JSON: %s", err.Error()).WithCause(err)
	}

	if err := s.Validate(inst); err != nil {
		return toRepflowError(err)
	}
	return nil
}

// DecodeWorkout validates and decodes raw workout JSON, then applies the
// model-level invariants that JSON Schema cannot express.
func DecodeWorkout(data []byte) (*schema.Workout, error) {
	if err := ValidateWorkoutJSON(data); err != nil {
		return nil, err
	}
	w := &schema.Workout{}
	if err := json.Unmarshal(data, w); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "decode workout: %s", err.Error()).WithCause(err)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// toRepflowError converts a jsonschema.ValidationError into a RepflowError
// with clear, actionable messages.
func toRepflowError(err error) *schema.RepflowError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error messages
// with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
