/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PivotLLM/Conduit/expression"
	"github.com/PivotLLM/Conduit/registry"
)

// Error kinds surfaced to the batch runner's caller. Every run failure maps
// to exactly one of these.
const (
	KindExpression          = "expression_error"
	KindUnresolvedReference = "unresolved_reference"
	KindUnknownTool         = "unknown_tool"
	KindToolInvocation      = "tool_invocation_error"
	KindPipelineFormat      = "pipeline_format_error"
)

// FormatError reports a malformed pipeline document. Issues holds the
// individual schema violations when validation produced them.
type FormatError struct {
	Msg    string
	Issues []string
}

func (e *FormatError) Error() string {
	if len(e.Issues) == 0 {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Msg, strings.Join(e.Issues, "; "))
}

// StepError identifies the first failing step of a run: its position in the
// document (index path such as "2" or "1.then.0"), the tool involved if any,
// and the underlying error.
type StepError struct {
	Path string
	Tool string
	Err  error
}

func (e *StepError) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("step %s (tool %s): %v", e.Path, e.Tool, e.Err)
	}
	return fmt.Sprintf("step %s: %v", e.Path, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Kind classifies the underlying error into one of the error kind constants
func (e *StepError) Kind() string {
	return Classify(e.Err)
}

// Classify maps an error to its error kind
func Classify(err error) string {
	var formatErr *FormatError
	if errors.As(err, &formatErr) {
		return KindPipelineFormat
	}
	if errors.Is(err, expression.ErrUnresolvedReference) {
		return KindUnresolvedReference
	}
	var evalErr *expression.EvalError
	if errors.As(err, &evalErr) {
		return KindExpression
	}
	if errors.Is(err, registry.ErrUnknownTool) {
		return KindUnknownTool
	}
	return KindToolInvocation
}
