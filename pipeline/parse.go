/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package pipeline

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/PivotLLM/Conduit/global"
)

// documentSchema validates the pipeline document shape before unmarshalling.
// A step is either a tool call (tool + optional params/output) or a
// conditional (type "condition" + condition + then/else sequences).
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["pipeline"],
  "additionalProperties": false,
  "properties": {
    "pipeline": {"$ref": "#/definitions/steps"}
  },
  "definitions": {
    "steps": {
      "type": "array",
      "items": {"$ref": "#/definitions/step"}
    },
    "step": {
      "type": "object",
      "oneOf": [
        {
          "required": ["tool"],
          "additionalProperties": false,
          "properties": {
            "tool": {"type": "string", "minLength": 1},
            "params": {"type": "object"},
            "output": {"type": "string", "minLength": 1}
          }
        },
        {
          "required": ["type", "condition"],
          "additionalProperties": false,
          "properties": {
            "type": {"enum": ["condition"]},
            "condition": {"type": "string", "minLength": 1},
            "then": {"$ref": "#/definitions/steps"},
            "else": {"$ref": "#/definitions/steps"}
          }
        }
      ]
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func loadSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(documentSchema))
	})
	return compiledSchema, schemaErr
}

// Parse validates and unmarshals a pipeline document. Any violation comes
// back as a FormatError listing the individual issues.
func Parse(data []byte) (*Pipeline, error) {
	if len(data) == 0 {
		return nil, &FormatError{Msg: "empty pipeline document"}
	}
	if len(data) > global.MaxPipelineBytes {
		return nil, &FormatError{Msg: fmt.Sprintf("pipeline document exceeds %d bytes", global.MaxPipelineBytes)}
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile pipeline schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		// The loader rejects documents that are not JSON at all
		return nil, &FormatError{Msg: fmt.Sprintf("invalid JSON: %v", err)}
	}

	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return nil, &FormatError{Msg: "pipeline document failed validation", Issues: issues}
	}

	var p Pipeline
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &FormatError{Msg: fmt.Sprintf("failed to decode pipeline: %v", err)}
	}

	if depth := maxDepth(p.Steps, 1); depth > global.MaxPipelineDepth {
		return nil, &FormatError{Msg: fmt.Sprintf("conditional nesting exceeds %d levels", global.MaxPipelineDepth)}
	}

	return &p, nil
}

func maxDepth(steps []Step, depth int) int {
	max := depth
	for i := range steps {
		if !steps[i].IsConditional() {
			continue
		}
		if d := maxDepth(steps[i].Then, depth+1); d > max {
			max = d
		}
		if d := maxDepth(steps[i].Else, depth+1); d > max {
			max = d
		}
	}
	return max
}
