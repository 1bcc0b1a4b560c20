/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package pipeline

// Context is the accumulating key-value store of a single pipeline run:
// namespaces seeded by the batch runner plus the named outputs of executed
// steps. It grows monotonically during the run and is discarded at run end.
// A Context belongs to exactly one run and is never shared, so no locking.
type Context struct {
	keys   []string
	values map[string]interface{}
}

// NewContext creates an empty run context
func NewContext() *Context {
	return &Context{
		values: make(map[string]interface{}),
	}
}

// Set stores a value under key. Writing an existing key replaces the value
// (a later step's output silently shadows an earlier one) while keeping its
// original position.
func (c *Context) Set(key string, value interface{}) {
	if _, exists := c.values[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
}

// Get returns the value stored under key
func (c *Context) Get(key string) (interface{}, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Keys returns all keys in insertion order
func (c *Context) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Bindings returns a shallow copy of the context for expression evaluation.
// Copying keeps evaluator helper injection from writing back into the run.
func (c *Context) Bindings() map[string]interface{} {
	out := make(map[string]interface{}, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Len returns the number of stored keys
func (c *Context) Len() int {
	return len(c.keys)
}
