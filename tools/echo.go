/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package tools

import (
	"context"

	"github.com/PivotLLM/Conduit/global"
)

// EchoTool returns its parameters unchanged. Useful for shaping values in the
// run context and for pipeline debugging.
type EchoTool struct{}

func (t *EchoTool) Name() string {
	return global.BuiltinEcho
}

func (t *EchoTool) Description() string {
	return "Returns its parameters unchanged"
}

func (t *EchoTool) Invoke(_ context.Context, params map[string]interface{}) (interface{}, error) {
	return params, nil
}
