/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package tools provides the built-in tools available to pipeline steps.
package tools

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/PivotLLM/Conduit/config"
	"github.com/PivotLLM/Conduit/logging"
	"github.com/PivotLLM/Conduit/registry"
)

// RegisterAll registers every built-in tool with the registry
func RegisterAll(reg *registry.Registry, cfg *config.Config, logger *logging.Logger) error {
	builtins := []registry.Tool{
		&EchoTool{},
		&NowTool{},
		&FileReadTool{root: cfg.FilesDir()},
		&FileWriteTool{root: cfg.FilesDir()},
		NewHTTPRequestTool(logger),
		&DocConvertTool{root: cfg.FilesDir(), logger: logger},
	}

	for _, tool := range builtins {
		if err := reg.Register(tool); err != nil {
			return fmt.Errorf("failed to register built-in tool %s: %w", tool.Name(), err)
		}
	}
	return nil
}

// stringParam extracts a required string parameter
func stringParam(params map[string]interface{}, name string) (string, error) {
	raw, ok := params[name]
	if !ok {
		return "", fmt.Errorf("missing required parameter %q", name)
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		return "", fmt.Errorf("parameter %q: %v", name, err)
	}
	if s == "" {
		return "", fmt.Errorf("parameter %q must not be empty", name)
	}
	return s, nil
}

// optionalString extracts an optional string parameter with a default
func optionalString(params map[string]interface{}, name, def string) (string, error) {
	raw, ok := params[name]
	if !ok {
		return def, nil
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		return "", fmt.Errorf("parameter %q: %v", name, err)
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}

// optionalBool extracts an optional boolean parameter with a default
func optionalBool(params map[string]interface{}, name string, def bool) (bool, error) {
	raw, ok := params[name]
	if !ok {
		return def, nil
	}
	b, err := cast.ToBoolE(raw)
	if err != nil {
		return false, fmt.Errorf("parameter %q: %v", name, err)
	}
	return b, nil
}
