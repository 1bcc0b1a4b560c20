/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package runner

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/PivotLLM/Conduit/config"
	"github.com/PivotLLM/Conduit/expression"
	"github.com/PivotLLM/Conduit/global"
	"github.com/PivotLLM/Conduit/logging"
	"github.com/PivotLLM/Conduit/pipeline"
	"github.com/PivotLLM/Conduit/registry"
)

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "returns its params" }
func (echoTool) Invoke(_ context.Context, params map[string]interface{}) (interface{}, error) {
	return params, nil
}

func newTestRunner(t *testing.T) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()

	cfgData, err := json.Marshal(map[string]interface{}{
		"version":  1,
		"base_dir": dir,
	})
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	cfgPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(cfgPath, cfgData, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := config.New(config.WithConfigPath(cfgPath))
	if err := cfg.Load(); err != nil {
		t.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(filepath.Join(dir, "test.log"))
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })

	reg := registry.New()
	if err := reg.Register(echoTool{}); err != nil {
		t.Fatalf("register tool: %v", err)
	}

	return New(cfg, logger, reg, expression.New()), dir
}

func TestExecuteInlineWait(t *testing.T) {
	r, _ := newTestRunner(t)

	doc := `{"pipeline": [
		{"tool": "echo", "params": {"msg": "hello"}, "output": "a"},
		{"tool": "echo", "params": {"msg": "{! a.msg !} world"}, "output": "b"}
	]}`

	record, err := r.Execute(context.Background(), &RunRequest{
		Source: []byte(doc),
		Wait:   true,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if record.Status != global.RunStatusCompleted {
		t.Fatalf("status = %q, want completed (failure: %+v)", record.Status, record.Failure)
	}
	outputs, ok := record.Outputs.(map[string]interface{})
	if !ok {
		t.Fatalf("Outputs is %T, want map", record.Outputs)
	}
	b, ok := outputs["b"].(map[string]interface{})
	if !ok {
		t.Fatalf("output b is %T, want map", outputs["b"])
	}
	if b["msg"] != "hello world" {
		t.Errorf("b.msg = %v, want %q", b["msg"], "hello world")
	}
}

func TestExecuteSeedsNamespaces(t *testing.T) {
	r, _ := newTestRunner(t)

	doc := `{"pipeline": [
		{"tool": "echo", "params": {"who": "{! user.name !}"}, "output": "out"}
	]}`

	record, err := r.Execute(context.Background(), &RunRequest{
		Source: []byte(doc),
		Seed: map[string]interface{}{
			global.NamespaceUser: map[string]interface{}{"name": "alice"},
		},
		Wait: true,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if record.Status != global.RunStatusCompleted {
		t.Fatalf("status = %q, want completed (failure: %+v)", record.Status, record.Failure)
	}

	outputs := record.Outputs.(map[string]interface{})
	out := outputs["out"].(map[string]interface{})
	if out["who"] != "alice" {
		t.Errorf("who = %v, want alice", out["who"])
	}
}

func TestExecuteResultExpression(t *testing.T) {
	r, _ := newTestRunner(t)

	doc := `{"pipeline": [
		{"tool": "echo", "params": {"n": 41}, "output": "a"}
	]}`

	record, err := r.Execute(context.Background(), &RunRequest{
		Source:     []byte(doc),
		ResultExpr: "{! a.n + 1 !}",
		Wait:       true,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if record.Status != global.RunStatusCompleted {
		t.Fatalf("status = %q, want completed (failure: %+v)", record.Status, record.Failure)
	}

	switch v := record.Value.(type) {
	case float64:
		if v != 42 {
			t.Errorf("Value = %v, want 42", v)
		}
	case int:
		if v != 42 {
			t.Errorf("Value = %v, want 42", v)
		}
	default:
		t.Errorf("Value is %T, want numeric", record.Value)
	}
}

func TestExecuteFailureRecord(t *testing.T) {
	r, _ := newTestRunner(t)

	doc := `{"pipeline": [
		{"tool": "echo", "params": {"x": "{! missing !}"}, "output": "a"},
		{"tool": "echo", "params": {}, "output": "b"}
	]}`

	record, err := r.Execute(context.Background(), &RunRequest{
		Source: []byte(doc),
		Wait:   true,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if record.Status != global.RunStatusFailed {
		t.Fatalf("status = %q, want failed", record.Status)
	}
	if record.Failure == nil {
		t.Fatal("expected Failure to be set")
	}
	if record.Failure.Kind != pipeline.KindUnresolvedReference {
		t.Errorf("Failure.Kind = %q, want %q", record.Failure.Kind, pipeline.KindUnresolvedReference)
	}
	if record.Failure.Step != "0" {
		t.Errorf("Failure.Step = %q, want %q", record.Failure.Step, "0")
	}
}

func TestExecuteMalformedDocumentRejectedSynchronously(t *testing.T) {
	r, _ := newTestRunner(t)

	_, err := r.Execute(context.Background(), &RunRequest{
		Source: []byte(`{"pipeline": "nope"}`),
	})
	if err == nil {
		t.Fatal("expected error for malformed document")
	}
	if pipeline.Classify(err) != pipeline.KindPipelineFormat {
		t.Errorf("Classify = %q, want %q", pipeline.Classify(err), pipeline.KindPipelineFormat)
	}
}

func TestExecuteAsyncStatusAndResult(t *testing.T) {
	r, _ := newTestRunner(t)

	doc := `{"pipeline": [
		{"tool": "echo", "params": {"msg": "async"}, "output": "a"}
	]}`

	record, err := r.Execute(context.Background(), &RunRequest{
		Source: []byte(doc),
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if record.ID == "" {
		t.Fatal("expected run ID to be assigned")
	}

	r.Wait()

	final, err := r.Result(record.ID)
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if final.Status != global.RunStatusCompleted {
		t.Errorf("status = %q, want completed (failure: %+v)", final.Status, final.Failure)
	}
	if final.FinishedAt == nil {
		t.Error("expected FinishedAt to be set")
	}
}

func TestStatusUnknownRun(t *testing.T) {
	r, _ := newTestRunner(t)
	if _, err := r.Status("no-such-run"); err == nil {
		t.Error("expected error for unknown run ID")
	}
}

func TestExecutePipelineFile(t *testing.T) {
	r, dir := newTestRunner(t)

	doc := `{"pipeline": [{"tool": "echo", "params": {"src": "file"}, "output": "a"}]}`
	pipelinePath := filepath.Join(dir, "pipelines", "test.json")
	if err := os.WriteFile(pipelinePath, []byte(doc), 0644); err != nil {
		t.Fatalf("write pipeline file: %v", err)
	}

	record, err := r.Execute(context.Background(), &RunRequest{
		File: "test.json",
		Wait: true,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if record.Status != global.RunStatusCompleted {
		t.Fatalf("status = %q, want completed (failure: %+v)", record.Status, record.Failure)
	}
	if record.Source != "test.json" {
		t.Errorf("Source = %q, want test.json", record.Source)
	}
}

func TestExecutePipelineFileTraversalRejected(t *testing.T) {
	r, _ := newTestRunner(t)

	_, err := r.Execute(context.Background(), &RunRequest{
		File: "../escape.json",
		Wait: true,
	})
	if err == nil {
		t.Error("expected error for path traversal")
	}
}

func TestRunHistoryEviction(t *testing.T) {
	r, _ := newTestRunner(t)
	r.historyLimit = 2

	doc := `{"pipeline": [{"tool": "echo", "params": {}, "output": "a"}]}`

	var ids []string
	for i := 0; i < 3; i++ {
		record, err := r.Execute(context.Background(), &RunRequest{
			Source: []byte(doc),
			Wait:   true,
		})
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		ids = append(ids, record.ID)
	}

	if _, err := r.Status(ids[0]); err == nil {
		t.Error("expected oldest run to be evicted")
	}
	if _, err := r.Status(ids[2]); err != nil {
		t.Errorf("newest run should be retained: %v", err)
	}
}

func TestWaitReturnsAfterRuns(t *testing.T) {
	r, _ := newTestRunner(t)

	doc := `{"pipeline": [{"tool": "echo", "params": {}, "output": "a"}]}`
	if _, err := r.Execute(context.Background(), &RunRequest{Source: []byte(doc)}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return")
	}
	if r.IsRunning() {
		t.Error("IsRunning should be false after Wait")
	}
}
