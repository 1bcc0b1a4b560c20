/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/PivotLLM/Conduit/global"
)

func writeConfig(t *testing.T, dir string, data map[string]interface{}) string {
	t.Helper()
	content, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]interface{}{
		"version":  1,
		"base_dir": dir,
		"logging": map[string]interface{}{
			"file":  "conduit.log",
			"level": "debug",
		},
		"runner": map[string]interface{}{
			"max_concurrent":    3,
			"run_history_limit": 50,
		},
	})

	c := New(WithConfigPath(path))
	if err := c.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if c.IsFirstRun() {
		t.Error("expected IsFirstRun to be false for existing config")
	}
	if c.LogLevel() != global.LogLevelDebug {
		t.Errorf("LogLevel = %q, want DEBUG", c.LogLevel())
	}
	if c.MaxConcurrent() != 3 {
		t.Errorf("MaxConcurrent = %d, want 3", c.MaxConcurrent())
	}
	if c.RunHistoryLimit() != 50 {
		t.Errorf("RunHistoryLimit = %d, want 50", c.RunHistoryLimit())
	}
	if c.PipelinesDir() != filepath.Join(dir, "pipelines") {
		t.Errorf("PipelinesDir = %q, want %q", c.PipelinesDir(), filepath.Join(dir, "pipelines"))
	}
	if _, err := os.Stat(c.PipelinesDir()); err != nil {
		t.Errorf("pipelines directory was not created: %v", err)
	}
	if _, err := os.Stat(c.FilesDir()); err != nil {
		t.Errorf("files directory was not created: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]interface{}{
		"version":  1,
		"base_dir": dir,
	})

	c := New(WithConfigPath(path))
	if err := c.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if c.LogLevel() != global.LogLevelInfo {
		t.Errorf("LogLevel = %q, want INFO", c.LogLevel())
	}
	if c.MaxConcurrent() != global.DefaultMaxConcurrent {
		t.Errorf("MaxConcurrent = %d, want %d", c.MaxConcurrent(), global.DefaultMaxConcurrent)
	}
	if c.RunHistoryLimit() != global.DefaultRunHistoryLimit {
		t.Errorf("RunHistoryLimit = %d, want %d", c.RunHistoryLimit(), global.DefaultRunHistoryLimit)
	}
	if c.RateLimitRequests() != global.DefaultRateLimitRequests {
		t.Errorf("RateLimitRequests = %d, want %d", c.RateLimitRequests(), global.DefaultRateLimitRequests)
	}
	if c.LogFile() != filepath.Join(dir, "conduit.log") {
		t.Errorf("LogFile = %q, want %q", c.LogFile(), filepath.Join(dir, "conduit.log"))
	}
}

func TestLoadBadVersion(t *testing.T) {
	dir := t.TempDir()

	for _, version := range []int{0, 2} {
		path := writeConfig(t, dir, map[string]interface{}{
			"version":  version,
			"base_dir": dir,
		})
		c := New(WithConfigPath(path))
		if err := c.Load(); err == nil {
			t.Errorf("Load accepted config version %d", version)
		}
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c := New(WithConfigPath(path))
	if err := c.Load(); err == nil {
		t.Error("Load accepted invalid JSON")
	}
}

func TestWebhookValidation(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		webhook map[string]interface{}
		wantErr bool
	}{
		{
			name: "valid",
			webhook: map[string]interface{}{
				"enabled": true,
				"addr":    "127.0.0.1:8080",
				"routes": []map[string]interface{}{
					{"path": "/deploy", "pipeline_file": "deploy.json"},
				},
			},
		},
		{
			name: "disabled ignores missing routes",
			webhook: map[string]interface{}{
				"enabled": false,
			},
		},
		{
			name: "enabled without routes",
			webhook: map[string]interface{}{
				"enabled": true,
				"addr":    "127.0.0.1:8080",
			},
			wantErr: true,
		},
		{
			name: "route path without leading slash",
			webhook: map[string]interface{}{
				"enabled": true,
				"addr":    "127.0.0.1:8080",
				"routes": []map[string]interface{}{
					{"path": "deploy", "pipeline_file": "deploy.json"},
				},
			},
			wantErr: true,
		},
		{
			name: "duplicate route path",
			webhook: map[string]interface{}{
				"enabled": true,
				"addr":    "127.0.0.1:8080",
				"routes": []map[string]interface{}{
					{"path": "/deploy", "pipeline_file": "a.json"},
					{"path": "/deploy", "pipeline_file": "b.json"},
				},
			},
			wantErr: true,
		},
		{
			name: "route without pipeline_file",
			webhook: map[string]interface{}{
				"enabled": true,
				"addr":    "127.0.0.1:8080",
				"routes": []map[string]interface{}{
					{"path": "/deploy"},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, dir, map[string]interface{}{
				"version":  1,
				"base_dir": dir,
				"webhook":  tt.webhook,
			})
			c := New(WithConfigPath(path))
			err := c.Load()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestResolvePathAbsoluteAndRelative(t *testing.T) {
	dir := t.TempDir()
	absFiles := filepath.Join(dir, "elsewhere")
	path := writeConfig(t, dir, map[string]interface{}{
		"version":   1,
		"base_dir":  dir,
		"files_dir": absFiles,
	})

	c := New(WithConfigPath(path))
	if err := c.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if c.FilesDir() != absFiles {
		t.Errorf("FilesDir = %q, want absolute %q", c.FilesDir(), absFiles)
	}
}
