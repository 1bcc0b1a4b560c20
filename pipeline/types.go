/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package pipeline implements the JSON pipeline document model and the
// interpreter that executes it: sequential tool calls and conditional
// branches over an accumulating run context.
package pipeline

// Pipeline is an ordered sequence of steps, parsed fresh per invocation and
// immutable for the duration of a run.
type Pipeline struct {
	Steps []Step `json:"pipeline"`
}

// Step is either a tool call or a conditional branch. The two forms share
// one struct; Type discriminates ("condition" selects the conditional form,
// anything with a tool name is a tool call).
type Step struct {
	// Tool call fields
	Tool   string      `json:"tool,omitempty"`
	Params interface{} `json:"params,omitempty"`
	Output string      `json:"output,omitempty"`

	// Conditional fields
	Type      string `json:"type,omitempty"`
	Condition string `json:"condition,omitempty"`
	Then      []Step `json:"then,omitempty"`
	Else      []Step `json:"else,omitempty"`
}

// IsConditional reports whether the step is a conditional branch
func (s *Step) IsConditional() bool {
	return s.Type == "condition"
}
