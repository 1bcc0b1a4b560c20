/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/PivotLLM/Conduit/expression"
	"github.com/PivotLLM/Conduit/logging"
	"github.com/PivotLLM/Conduit/registry"
)

// Interpreter executes pipelines against a tool registry. One Interpreter is
// shared by all runs; per-run state lives entirely in the Context.
type Interpreter struct {
	registry  *registry.Registry
	evaluator *expression.Evaluator
	logger    *logging.Logger
}

// NewInterpreter creates an interpreter over the given registry and evaluator
func NewInterpreter(reg *registry.Registry, ev *expression.Evaluator, logger *logging.Logger) *Interpreter {
	return &Interpreter{
		registry:  reg,
		evaluator: ev,
		logger:    logger,
	}
}

// Run executes all steps of p in declaration order, storing named outputs
// into rc. Execution is strictly sequential; nested conditional branches run
// to completion before the outer sequence advances. The first failing step
// aborts the run with a StepError identifying it.
func (it *Interpreter) Run(ctx context.Context, p *Pipeline, rc *Context) error {
	return it.runSteps(ctx, p.Steps, rc, "")
}

func (it *Interpreter) runSteps(ctx context.Context, steps []Step, rc *Context, prefix string) error {
	for i := range steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Path: stepPath(prefix, i), Err: err}
		}

		step := &steps[i]
		path := stepPath(prefix, i)

		var err error
		if step.IsConditional() {
			err = it.runConditional(ctx, step, rc, path)
		} else {
			err = it.runToolCall(ctx, step, rc, path)
		}
		if err != nil {
			// Keep the innermost step identity
			var stepErr *StepError
			if errors.As(err, &stepErr) {
				return err
			}
			return &StepError{Path: path, Tool: step.Tool, Err: err}
		}
	}
	return nil
}

func (it *Interpreter) runToolCall(ctx context.Context, step *Step, rc *Context, path string) error {
	bindings := rc.Bindings()

	params, err := ResolveParams(step.Params, it.evaluator, bindings)
	if err != nil {
		return &StepError{Path: path, Tool: step.Tool, Err: err}
	}

	paramMap, err := asParamMap(params)
	if err != nil {
		return &StepError{Path: path, Tool: step.Tool, Err: err}
	}

	if it.logger != nil {
		it.logger.Debugf("Step %s: dispatching tool %s", path, step.Tool)
	}

	result, err := it.registry.Invoke(ctx, step.Tool, paramMap)
	if err != nil {
		return &StepError{Path: path, Tool: step.Tool, Err: err}
	}

	if step.Output != "" {
		rc.Set(step.Output, result)
	}
	return nil
}

func (it *Interpreter) runConditional(ctx context.Context, step *Step, rc *Context, path string) error {
	value, err := it.evalCondition(step.Condition, rc)
	if err != nil {
		return &StepError{Path: path, Err: err}
	}

	if expression.Truthy(value) {
		if it.logger != nil {
			it.logger.Debugf("Step %s: condition truthy, entering then branch", path)
		}
		return it.runSteps(ctx, step.Then, rc, path+".then")
	}

	if len(step.Else) > 0 {
		if it.logger != nil {
			it.logger.Debugf("Step %s: condition falsy, entering else branch", path)
		}
		return it.runSteps(ctx, step.Else, rc, path+".else")
	}

	// Falsy condition without an else branch: skip past the conditional
	return nil
}

// evalCondition accepts either a marked expression ("{! a > 1 !}") or a bare
// one ("a > 1") and returns the evaluated value.
func (it *Interpreter) evalCondition(condition string, rc *Context) (interface{}, error) {
	bindings := rc.Bindings()
	if expression.HasMarkers(condition) {
		return it.evaluator.Resolve(condition, bindings)
	}
	return it.evaluator.Evaluate(condition, bindings)
}

// asParamMap normalizes resolved parameters for dispatch. Absent params
// dispatch as an empty map; a whole-string expression that produced an
// object is accepted directly.
func asParamMap(params interface{}) (map[string]interface{}, error) {
	switch v := params.(type) {
	case nil:
		return map[string]interface{}{}, nil
	case map[string]interface{}:
		return v, nil
	default:
		return nil, fmt.Errorf("params resolved to %T, want object", params)
	}
}

func stepPath(prefix string, index int) string {
	if prefix == "" {
		return fmt.Sprintf("%d", index)
	}
	return fmt.Sprintf("%s.%d", prefix, index)
}
