/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package registry maps tool names to their implementations and dispatches
// invocations. The registry is populated once at process start and treated as
// read-only afterwards, so concurrent pipeline runs share it without locking.
package registry

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownTool is returned when a pipeline step names a tool that was never
// registered. Callers detect it with errors.Is.
var ErrUnknownTool = errors.New("unknown tool")

// InvocationError wraps a failure inside a dispatched tool
type InvocationError struct {
	Tool string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Tool is one externally provided capability invocable by name with resolved
// JSON parameters. Implementations perform their own I/O and own any retry
// or timeout policy; the dispatcher does neither.
type Tool interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, params map[string]interface{}) (interface{}, error)
}

// Info describes a registered tool for catalog listings
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry holds the name to implementation mapping
type Registry struct {
	tools map[string]Tool
	order []string
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool. Registration happens during startup, before any
// pipeline runs; duplicate names are a programming error and rejected.
func (r *Registry) Register(t Tool) error {
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool has empty name")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Lookup resolves a tool name to its implementation
func (r *Registry) Lookup(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t, nil
}

// Invoke dispatches a call to the named tool with fully resolved parameters.
// Tool failures and panics come back as an InvocationError.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]interface{}) (result interface{}, err error) {
	t, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = &InvocationError{Tool: name, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	result, err = t.Invoke(ctx, params)
	if err != nil {
		return nil, &InvocationError{Tool: name, Err: err}
	}
	return result, nil
}

// Catalog returns tool metadata in registration order
func (r *Registry) Catalog() []Info {
	infos := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, Info{
			Name:        name,
			Description: r.tools[name].Description(),
		})
	}
	return infos
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	return len(r.tools)
}
