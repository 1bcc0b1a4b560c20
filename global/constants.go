/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package global

import "fmt"

//goland:noinspection GoCommentStart
const (
	// Configuration constants
	ConfigEnvVar          = "CONDUIT_CONFIG"
	DefaultBaseDir        = "~/.conduit"
	DefaultConfigFileName = "config.json"
	DefaultPipelinesDir   = "pipelines"
	DefaultFilesDir       = "files"

	// MCP Tool Names - Pipeline execution
	ToolPipelineRun      = "pipeline_run"
	ToolPipelineValidate = "pipeline_validate"
	ToolRunStatus        = "run_status"
	ToolRunResult        = "run_result"

	// MCP Tool Names - System
	ToolToolList = "tool_list"
	ToolHealth   = "health"

	// Context namespaces seeded by the batch runner. Outputs produced by
	// steps live next to these at the top level of the run context.
	NamespaceUser      = "user"
	NamespaceEnv       = "env"
	NamespaceWebhook   = "webhook"
	NamespaceWebsocket = "websocket"

	// Expression markers. Both forms are recognized; the bracket form exists
	// so expressions can be embedded inside JSON documents that themselves
	// contain brace-marked expressions.
	ExprOpenBrace    = "{!"
	ExprCloseBrace   = "!}"
	ExprOpenBracket  = "[!"
	ExprCloseBracket = "!]"

	// Run Status Constants
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"

	// Step type discriminator for conditional steps
	StepTypeCondition = "condition"

	// Built-in tool names
	BuiltinEcho        = "echo"
	BuiltinFileRead    = "file_read"
	BuiltinFileWrite   = "file_write"
	BuiltinHTTPRequest = "http_request"
	BuiltinDocConvert  = "doc_convert"
	BuiltinNow         = "now"

	// Default Values
	DefaultTimeout = 600 // seconds
	MinTimeout     = 10  // seconds
	MaxTimeout     = 1200

	// Runner Default Values
	DefaultMaxConcurrent     = 5
	DefaultRateLimitRequests = 10
	DefaultRateLimitPeriod   = 60
	DefaultRunHistoryLimit   = 100

	// Limits on pipeline documents
	MaxPipelineDepth = 16 // maximum conditional nesting
	MaxPipelineBytes = 1024 * 1024

	// Log Levels
	LogLevelDebug = "DEBUG"
	LogLevelInfo  = "INFO"
	LogLevelWarn  = "WARN"
	LogLevelError = "ERROR"
	LogLevelFatal = "FATAL"
)

// ValidateTimeout validates and normalizes a timeout value.
// Returns the validated timeout or an error if out of bounds.
// If timeout is 0, returns DefaultTimeout.
func ValidateTimeout(timeout int) (int, error) {
	if timeout == 0 {
		return DefaultTimeout, nil
	}
	if timeout < MinTimeout {
		return 0, fmt.Errorf("timeout must be at least %d seconds", MinTimeout)
	}
	if timeout > MaxTimeout {
		return 0, fmt.Errorf("timeout must be at most %d seconds", MaxTimeout)
	}
	return timeout, nil
}

// ValidateMaxConcurrent validates and normalizes a max_concurrent value.
// If value is 0, returns DefaultMaxConcurrent.
func ValidateMaxConcurrent(maxConcurrent int) (int, error) {
	if maxConcurrent == 0 {
		return DefaultMaxConcurrent, nil
	}
	if maxConcurrent < 1 {
		return 0, fmt.Errorf("max_concurrent must be at least 1")
	}
	return maxConcurrent, nil
}
