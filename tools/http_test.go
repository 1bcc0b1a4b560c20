/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/PivotLLM/Conduit/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.New(filepath.Join(t.TempDir(), "test.log"))
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

func TestHTTPRequestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "count": 3})
	}))
	defer srv.Close()

	tool := NewHTTPRequestTool(testLogger(t))
	out, err := tool.Invoke(context.Background(), map[string]interface{}{
		"url": srv.URL,
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	result := out.(map[string]interface{})
	if result["status_code"] != 200 {
		t.Errorf("status_code = %v, want 200", result["status_code"])
	}
	decoded, ok := result["json"].(map[string]interface{})
	if !ok {
		t.Fatalf("json field is %T, want map", result["json"])
	}
	if decoded["ok"] != true {
		t.Errorf("json.ok = %v, want true", decoded["ok"])
	}
}

func TestHTTPRequestPostBody(t *testing.T) {
	var gotMethod, gotContentType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	tool := NewHTTPRequestTool(testLogger(t))
	out, err := tool.Invoke(context.Background(), map[string]interface{}{
		"url":    srv.URL,
		"method": "post",
		"body":   map[string]interface{}{"name": "conduit"},
		"headers": map[string]interface{}{
			"X-Test": "yes",
		},
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotContentType != "application/json" {
		t.Errorf("content type = %q, want application/json", gotContentType)
	}
	if gotBody != `{"name":"conduit"}` {
		t.Errorf("body = %q", gotBody)
	}

	result := out.(map[string]interface{})
	if result["status_code"] != http.StatusCreated {
		t.Errorf("status_code = %v, want 201", result["status_code"])
	}
}

func TestHTTPRequestRejectsBadURL(t *testing.T) {
	tool := NewHTTPRequestTool(testLogger(t))

	for _, url := range []string{"", "ftp://example.com/file", "example.com"} {
		params := map[string]interface{}{}
		if url != "" {
			params["url"] = url
		}
		if _, err := tool.Invoke(context.Background(), params); err == nil {
			t.Errorf("accepted url %q", url)
		}
	}
}
