/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package expression evaluates inline template expressions against a pipeline
// run context. Expressions are embedded in parameter strings between {! !}
// markers (or [! !] as an alternate form) and are compiled and run with the
// expr-lang/expr engine. Compiled programs are cached keyed by source and
// binding shape.
package expression

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/spf13/cast"

	"github.com/PivotLLM/Conduit/global"
)

// ErrUnresolvedReference marks an expression that names a context key which
// has not been produced yet. Callers detect it with errors.Is.
var ErrUnresolvedReference = errors.New("unresolved reference")

// EvalError wraps any failure to compile or run an expression. The original
// source is retained for error reporting.
type EvalError struct {
	Source string
	Err    error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("expression %q: %v", e.Source, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// markerPair describes one open/close delimiter form
type markerPair struct {
	open  string
	close string
}

var markers = []markerPair{
	{global.ExprOpenBrace, global.ExprCloseBrace},
	{global.ExprOpenBracket, global.ExprCloseBracket},
}

// Evaluator compiles and runs inline expressions. Safe for concurrent use;
// the program cache is shared across pipeline runs.
type Evaluator struct {
	mu    sync.Mutex
	cache map[string]*vm.Program
	funcs map[string]interface{}
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithFunction exposes a helper function to every expression under the given
// name (e.g. current-time or environment lookups).
func WithFunction(name string, fn interface{}) Option {
	return func(e *Evaluator) {
		e.funcs[name] = fn
	}
}

// New creates a new Evaluator with the given options
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		cache: make(map[string]*vm.Program),
		funcs: make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate compiles and runs a bare expression (no markers) against the given
// bindings. Referencing a name absent from the bindings fails at compile time
// and is reported as an ErrUnresolvedReference.
func (e *Evaluator) Evaluate(source string, bindings map[string]interface{}) (interface{}, error) {
	env := e.buildEnv(bindings)

	program, err := e.compile(source, env)
	if err != nil {
		if strings.Contains(err.Error(), "unknown name") {
			return nil, &EvalError{Source: source, Err: fmt.Errorf("%w: %v", ErrUnresolvedReference, err)}
		}
		return nil, &EvalError{Source: source, Err: err}
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return nil, &EvalError{Source: source, Err: err}
	}
	return out, nil
}

// Resolve substitutes all marked expressions inside raw. When the entire
// string is exactly one expression, the result keeps its native type (number,
// bool, map, slice). Otherwise each result is coerced to text and spliced in
// place; maps and slices are JSON-encoded.
func (e *Evaluator) Resolve(raw string, bindings map[string]interface{}) (interface{}, error) {
	// Whole-string expression: preserve the native result type
	for _, m := range markers {
		if strings.HasPrefix(raw, m.open) && strings.HasSuffix(raw, m.close) {
			inner := raw[len(m.open) : len(raw)-len(m.close)]
			if !strings.Contains(inner, m.close) {
				return e.Evaluate(strings.TrimSpace(inner), bindings)
			}
		}
	}

	if !containsMarker(raw) {
		return raw, nil
	}

	var sb strings.Builder
	rest := raw
	for {
		idx, m := nextMarker(rest)
		if idx < 0 {
			sb.WriteString(rest)
			break
		}
		sb.WriteString(rest[:idx])
		rest = rest[idx+len(m.open):]

		end := strings.Index(rest, m.close)
		if end < 0 {
			return nil, &EvalError{
				Source: raw,
				Err:    fmt.Errorf("missing closing marker %q", m.close),
			}
		}

		source := strings.TrimSpace(rest[:end])
		rest = rest[end+len(m.close):]

		value, err := e.Evaluate(source, bindings)
		if err != nil {
			return nil, err
		}
		text, err := Stringify(value)
		if err != nil {
			return nil, &EvalError{Source: source, Err: err}
		}
		sb.WriteString(text)
	}

	return sb.String(), nil
}

// HasMarkers reports whether raw contains at least one expression marker
func HasMarkers(raw string) bool {
	return containsMarker(raw)
}

// Stringify coerces an expression result to text for in-place substitution.
// Maps and slices become compact JSON; nil becomes the empty string.
func Stringify(value interface{}) (string, error) {
	switch value.(type) {
	case nil:
		return "", nil
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("failed to encode result: %w", err)
		}
		return string(data), nil
	default:
		return cast.ToStringE(value)
	}
}

// Truthy reports whether a condition result selects the then branch.
// Nil, false, zero numbers, and empty strings are falsy; everything else,
// including empty maps and slices, is truthy.
func Truthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case map[string]interface{}, []interface{}:
		return true
	default:
		if f, err := cast.ToFloat64E(v); err == nil {
			return f != 0
		}
		return true
	}
}

// buildEnv merges bindings with registered helper functions. Bindings win on
// name collisions so step outputs can never be masked by helpers.
func (e *Evaluator) buildEnv(bindings map[string]interface{}) map[string]interface{} {
	env := make(map[string]interface{}, len(bindings)+len(e.funcs))
	for name, fn := range e.funcs {
		env[name] = fn
	}
	for k, v := range bindings {
		env[k] = v
	}
	return env
}

// compile returns a cached program when one exists for this source and
// binding shape. expr type-checks identifiers against the env's keys, so the
// cache key must include the key set.
func (e *Evaluator) compile(source string, env map[string]interface{}) (*vm.Program, error) {
	key := cacheKey(source, env)

	e.mu.Lock()
	program, ok := e.cache[key]
	e.mu.Unlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(source, expr.Env(env))
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[key] = program
	e.mu.Unlock()
	return program, nil
}

func cacheKey(source string, env map[string]interface{}) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return source + "\x1f" + strings.Join(keys, ",")
}

func containsMarker(raw string) bool {
	for _, m := range markers {
		if strings.Contains(raw, m.open) {
			return true
		}
	}
	return false
}

// nextMarker finds the earliest opening marker in raw
func nextMarker(raw string) (int, markerPair) {
	best := -1
	var bestPair markerPair
	for _, m := range markers {
		if idx := strings.Index(raw, m.open); idx >= 0 && (best < 0 || idx < best) {
			best = idx
			bestPair = m
		}
	}
	return best, bestPair
}
