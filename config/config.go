/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package config loads and validates the Conduit JSON configuration file.
// On first run a default configuration is written from the embedded example.
package config

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PivotLLM/Conduit/global"
)

// Config provides access to application configuration
type Config struct {
	configPath   string      // resolved path to config file
	data         *configData // parsed configuration
	firstRun     bool        // true if config was just created
	pipelinesDir string      // resolved pipelines directory
	filesDir     string      // resolved root for the file tools
	embeddedFS   embed.FS    // embedded defaults (config example)
}

// configData holds the parsed configuration (internal)
type configData struct {
	Version      int              `json:"version"`
	BaseDir      string           `json:"base_dir"`
	PipelinesDir string           `json:"pipelines_dir,omitempty"`
	FilesDir     string           `json:"files_dir,omitempty"`
	Logging      Logging          `json:"logging"`
	Runner       Runner           `json:"runner,omitempty"`
	Webhook      *WebhookConfig   `json:"webhook,omitempty"`
	Websocket    *WebsocketConfig `json:"websocket,omitempty"`
}

// Logging represents logging configuration
type Logging struct {
	File  string `json:"file"`
	Level string `json:"level"`
}

// Runner represents batch runner configuration
type Runner struct {
	MaxConcurrent   int       `json:"max_concurrent,omitempty"`
	RunHistoryLimit int       `json:"run_history_limit,omitempty"`
	RateLimit       RateLimit `json:"rate_limit,omitempty"`
}

// RateLimit throttles event-triggered pipeline runs
type RateLimit struct {
	MaxRequests   int `json:"max_requests,omitempty"`
	PeriodSeconds int `json:"period_seconds,omitempty"`
}

// WebhookConfig configures the HTTP webhook listener
type WebhookConfig struct {
	Enabled bool           `json:"enabled,omitempty"`
	Addr    string         `json:"addr,omitempty"`
	Routes  []WebhookRoute `json:"routes,omitempty"`
}

// WebhookRoute maps an HTTP path to a pipeline file
type WebhookRoute struct {
	Path         string `json:"path"`
	PipelineFile string `json:"pipeline_file"`
	Result       string `json:"result,omitempty"` // optional final-result expression
}

// WebsocketConfig configures the websocket listener
type WebsocketConfig struct {
	Enabled      bool   `json:"enabled,omitempty"`
	Addr         string `json:"addr,omitempty"`
	Path         string `json:"path,omitempty"`
	PipelineFile string `json:"pipeline_file"`
}

// Option is a functional option for configuring Config
type Option func(*Config)

// New creates a new Config instance with optional configuration
func New(opts ...Option) *Config {
	c := &Config{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithConfigPath sets an explicit config file path
func WithConfigPath(path string) Option {
	return func(c *Config) {
		c.configPath = path
	}
}

// WithEmbeddedFS sets the embedded filesystem holding the default config
func WithEmbeddedFS(efs embed.FS) Option {
	return func(c *Config) {
		c.embeddedFS = efs
	}
}

// Load loads and validates configuration from file.
// If the base directory or config file doesn't exist, they are created from
// embedded defaults.
func (c *Config) Load() error {
	configPath, err := c.resolveConfigPath()
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	c.configPath = configPath

	baseDir := expandHomePath(global.DefaultBaseDir)
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return fmt.Errorf("failed to create base directory %s: %w", baseDir, err)
	}

	if !global.FileExists(configPath) {
		c.firstRun = true
		if err := c.setupDefaultConfig(configPath); err != nil {
			return fmt.Errorf("failed to create default config at %s: %w", configPath, err)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Strict parse first to surface unknown fields; fall back to a lenient
	// parse with a warning so old configs keep working.
	var cfg configData
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		if strings.Contains(err.Error(), "unknown field") {
			_, _ = fmt.Fprintf(os.Stderr, "Warning: config file %s: %v\n", configPath, err)
			if err := json.Unmarshal(data, &cfg); err != nil {
				return fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		} else {
			return fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	c.data = &cfg

	if err := c.resolveBaseDir(); err != nil {
		return err
	}

	if err := c.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := c.normalizePaths(); err != nil {
		return fmt.Errorf("failed to normalize paths: %w", err)
	}

	return nil
}

// setupDefaultConfig creates a default config file from the embedded example
func (c *Config) setupDefaultConfig(configPath string) error {
	content, err := c.embeddedFS.ReadFile("docs/config-example.json")
	if err != nil {
		return fmt.Errorf("failed to read embedded config-example.json: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configPath, err)
	}

	return nil
}

// resolveConfigPath determines the config file path using precedence rules
func (c *Config) resolveConfigPath() (string, error) {
	// 1. Explicit path (from WithConfigPath option)
	if c.configPath != "" {
		return resolveToAbsolute(c.configPath)
	}

	// 2. Environment variable
	if envPath := os.Getenv(global.ConfigEnvVar); envPath != "" {
		return resolveToAbsolute(envPath)
	}

	// 3. Default: base_dir/config.json
	return filepath.Join(expandHomePath(global.DefaultBaseDir), global.DefaultConfigFileName), nil
}

// resolveBaseDir resolves and validates the base_dir from config
func (c *Config) resolveBaseDir() error {
	if c.data.BaseDir == "" {
		c.data.BaseDir = expandHomePath(global.DefaultBaseDir)
		return nil
	}

	resolved := expandHomePath(c.data.BaseDir)
	if !filepath.IsAbs(resolved) {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: base_dir '%s' is not absolute, using default '%s'\n",
			c.data.BaseDir, global.DefaultBaseDir)
		resolved = expandHomePath(global.DefaultBaseDir)
	}

	c.data.BaseDir = resolved
	return nil
}

// validate checks the parsed configuration
func (c *Config) validate() error {
	if c.data.Version != 1 {
		if c.data.Version < 1 {
			return fmt.Errorf("config version %d is too old (expected 1)", c.data.Version)
		}
		return fmt.Errorf("config version %d is newer than supported (expected 1)", c.data.Version)
	}

	if _, err := global.ValidateMaxConcurrent(c.data.Runner.MaxConcurrent); err != nil {
		return err
	}

	if c.data.Webhook != nil && c.data.Webhook.Enabled {
		if c.data.Webhook.Addr == "" {
			return fmt.Errorf("webhook listener enabled but addr is empty")
		}
		if len(c.data.Webhook.Routes) == 0 {
			return fmt.Errorf("webhook listener enabled but no routes defined")
		}
		seen := make(map[string]bool)
		for _, route := range c.data.Webhook.Routes {
			if route.Path == "" || !strings.HasPrefix(route.Path, "/") {
				return fmt.Errorf("webhook route path must start with '/': %q", route.Path)
			}
			if route.PipelineFile == "" {
				return fmt.Errorf("webhook route %s has no pipeline_file", route.Path)
			}
			if seen[route.Path] {
				return fmt.Errorf("duplicate webhook route path: %s", route.Path)
			}
			seen[route.Path] = true
		}
	}

	if c.data.Websocket != nil && c.data.Websocket.Enabled {
		if c.data.Websocket.Addr == "" {
			return fmt.Errorf("websocket listener enabled but addr is empty")
		}
		if c.data.Websocket.PipelineFile == "" {
			return fmt.Errorf("websocket listener enabled but pipeline_file is empty")
		}
	}

	return nil
}

// normalizePaths resolves directories relative to base_dir and creates them
func (c *Config) normalizePaths() error {
	pipelinesDir := c.data.PipelinesDir
	if pipelinesDir == "" {
		pipelinesDir = global.DefaultPipelinesDir
	}
	c.pipelinesDir = c.resolvePath(pipelinesDir)
	if err := os.MkdirAll(c.pipelinesDir, 0755); err != nil {
		return fmt.Errorf("failed to create pipelines directory at %s: %w", c.pipelinesDir, err)
	}

	filesDir := c.data.FilesDir
	if filesDir == "" {
		filesDir = global.DefaultFilesDir
	}
	c.filesDir = c.resolvePath(filesDir)
	if err := os.MkdirAll(c.filesDir, 0755); err != nil {
		return fmt.Errorf("failed to create files directory at %s: %w", c.filesDir, err)
	}

	if c.data.Logging.File != "" {
		c.data.Logging.File = c.resolvePath(c.data.Logging.File)
	}

	return nil
}

// resolvePath resolves a path relative to base_dir.
// Absolute paths and ~/ paths are honored as-is.
func (c *Config) resolvePath(path string) string {
	if path == "" {
		return ""
	}
	expanded := expandHomePath(path)
	if filepath.IsAbs(expanded) {
		return expanded
	}
	return filepath.Join(c.data.BaseDir, expanded)
}

// resolveToAbsolute converts a path to absolute, expanding ~/ if needed
func resolveToAbsolute(path string) (string, error) {
	expanded := expandHomePath(path)
	if filepath.IsAbs(expanded) {
		return expanded, nil
	}
	return filepath.Abs(expanded)
}

// expandHomePath expands ~/ to the user's home directory
func expandHomePath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// Accessors

// ConfigPath returns the resolved config file path
func (c *Config) ConfigPath() string {
	return c.configPath
}

// IsFirstRun reports whether the config file was just created
func (c *Config) IsFirstRun() bool {
	return c.firstRun
}

// PipelinesDir returns the resolved pipelines directory
func (c *Config) PipelinesDir() string {
	return c.pipelinesDir
}

// FilesDir returns the resolved root directory for the file tools
func (c *Config) FilesDir() string {
	return c.filesDir
}

// LogFile returns the log file path
func (c *Config) LogFile() string {
	if c.data.Logging.File == "" {
		return filepath.Join(c.data.BaseDir, "conduit.log")
	}
	return c.data.Logging.File
}

// LogLevel returns the configured log level
func (c *Config) LogLevel() string {
	if c.data.Logging.Level == "" {
		return global.LogLevelInfo
	}
	return strings.ToUpper(c.data.Logging.Level)
}

// MaxConcurrent returns the maximum number of concurrent pipeline runs
func (c *Config) MaxConcurrent() int {
	v, _ := global.ValidateMaxConcurrent(c.data.Runner.MaxConcurrent)
	return v
}

// RunHistoryLimit returns how many finished run records are retained
func (c *Config) RunHistoryLimit() int {
	if c.data.Runner.RunHistoryLimit <= 0 {
		return global.DefaultRunHistoryLimit
	}
	return c.data.Runner.RunHistoryLimit
}

// RateLimitRequests returns the event rate limit request count
func (c *Config) RateLimitRequests() int {
	if c.data.Runner.RateLimit.MaxRequests <= 0 {
		return global.DefaultRateLimitRequests
	}
	return c.data.Runner.RateLimit.MaxRequests
}

// RateLimitPeriod returns the event rate limit period in seconds
func (c *Config) RateLimitPeriod() int {
	if c.data.Runner.RateLimit.PeriodSeconds <= 0 {
		return global.DefaultRateLimitPeriod
	}
	return c.data.Runner.RateLimit.PeriodSeconds
}

// Webhook returns the webhook listener configuration, or nil if absent
func (c *Config) Webhook() *WebhookConfig {
	return c.data.Webhook
}

// Websocket returns the websocket listener configuration, or nil if absent
func (c *Config) Websocket() *WebsocketConfig {
	return c.data.Websocket
}
