/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package pipeline

import (
	"github.com/PivotLLM/Conduit/expression"
)

// ResolveParams produces a deep copy of a parameter tree with every string
// scalar passed through the expression evaluator. Structure is preserved;
// non-string scalars pass through unchanged. A tree without expression
// markers comes back as an equivalent copy.
func ResolveParams(params interface{}, ev *expression.Evaluator, bindings map[string]interface{}) (interface{}, error) {
	switch v := params.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, val := range v {
			resolved, err := ResolveParams(val, ev, bindings)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil

	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			resolved, err := ResolveParams(val, ev, bindings)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil

	case string:
		return ev.Resolve(v, bindings)

	default:
		// Numbers, booleans, nil: nothing to substitute
		return v, nil
	}
}
