/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package tools

import (
	"context"
	"time"

	"github.com/PivotLLM/Conduit/global"
)

// NowTool returns the current time. An optional "format" parameter takes a Go
// reference layout; the default output is RFC 3339.
type NowTool struct{}

func (t *NowTool) Name() string {
	return global.BuiltinNow
}

func (t *NowTool) Description() string {
	return "Returns the current time (optional Go layout via 'format')"
}

func (t *NowTool) Invoke(_ context.Context, params map[string]interface{}) (interface{}, error) {
	layout, err := optionalString(params, "format", time.RFC3339)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return map[string]interface{}{
		"time": now.Format(layout),
		"unix": now.Unix(),
	}, nil
}
