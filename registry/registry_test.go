/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package registry

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// fakeTool is a minimal Tool for registry tests
type fakeTool struct {
	name   string
	invoke func(ctx context.Context, params map[string]interface{}) (interface{}, error)
}

func (t *fakeTool) Name() string        { return t.name }
func (t *fakeTool) Description() string { return "test tool " + t.name }

func (t *fakeTool) Invoke(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return t.invoke(ctx, params)
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()

	tool := &fakeTool{name: "echo", invoke: func(_ context.Context, p map[string]interface{}) (interface{}, error) {
		return p, nil
	}}

	if err := r.Register(tool); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, err := r.Lookup("echo")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got.Name() != "echo" {
		t.Errorf("Lookup returned %s, want echo", got.Name())
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := New()

	tool := &fakeTool{name: "echo"}
	if err := r.Register(tool); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(tool); err == nil {
		t.Error("duplicate Register succeeded, want error")
	}
}

func TestLookupUnknownTool(t *testing.T) {
	r := New()

	_, err := r.Lookup("nope")
	if err == nil {
		t.Fatal("Lookup succeeded, want error")
	}
	if !errors.Is(err, ErrUnknownTool) {
		t.Errorf("error = %v, want ErrUnknownTool", err)
	}
}

func TestInvokeWrapsToolError(t *testing.T) {
	r := New()

	boom := fmt.Errorf("backend unavailable")
	_ = r.Register(&fakeTool{name: "flaky", invoke: func(_ context.Context, _ map[string]interface{}) (interface{}, error) {
		return nil, boom
	}})

	_, err := r.Invoke(context.Background(), "flaky", nil)
	if err == nil {
		t.Fatal("Invoke succeeded, want error")
	}

	var invErr *InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("error = %v, want *InvocationError", err)
	}
	if invErr.Tool != "flaky" {
		t.Errorf("InvocationError.Tool = %s, want flaky", invErr.Tool)
	}
	if !errors.Is(err, boom) {
		t.Errorf("wrapped error lost: %v", err)
	}
}

func TestInvokeRecoversPanic(t *testing.T) {
	r := New()

	_ = r.Register(&fakeTool{name: "panicky", invoke: func(_ context.Context, _ map[string]interface{}) (interface{}, error) {
		panic("boom")
	}})

	_, err := r.Invoke(context.Background(), "panicky", nil)
	if err == nil {
		t.Fatal("Invoke succeeded, want error from panic")
	}

	var invErr *InvocationError
	if !errors.As(err, &invErr) {
		t.Errorf("error = %v, want *InvocationError", err)
	}
}

func TestCatalogOrder(t *testing.T) {
	r := New()

	for _, name := range []string{"c", "a", "b"} {
		_ = r.Register(&fakeTool{name: name})
	}

	infos := r.Catalog()
	if len(infos) != 3 {
		t.Fatalf("Catalog returned %d entries, want 3", len(infos))
	}
	for i, want := range []string{"c", "a", "b"} {
		if infos[i].Name != want {
			t.Errorf("Catalog[%d] = %s, want %s (registration order)", i, infos[i].Name, want)
		}
	}
}
