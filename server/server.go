/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package server exposes the pipeline engine over MCP stdio.
package server

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/PivotLLM/Conduit/config"
	"github.com/PivotLLM/Conduit/global"
	"github.com/PivotLLM/Conduit/logging"
	"github.com/PivotLLM/Conduit/registry"
	"github.com/PivotLLM/Conduit/runner"
)

// Server wraps the MCP server with the pipeline engine
type Server struct {
	config    *config.Config
	logger    *logging.Logger
	registry  *registry.Registry
	runner    *runner.Runner
	mcpServer *server.MCPServer
}

// New creates a new server instance
func New(cfg *config.Config, logger *logging.Logger, reg *registry.Registry, r *runner.Runner) (*Server, error) {
	mcpServer := server.NewMCPServer(
		global.ProgramName,
		global.Version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	srv := &Server{
		config:    cfg,
		logger:    logger,
		registry:  reg,
		runner:    r,
		mcpServer: mcpServer,
	}

	if err := srv.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return srv, nil
}

// readOnlyTool creates a tool with read-only annotations
// ReadOnly: true, Destructive: false, OpenWorld: false
func (s *Server) readOnlyTool(name string, opts ...mcp.ToolOption) mcp.Tool {
	opts = append(opts, mcp.WithToolAnnotation(mcp.ToolAnnotation{
		ReadOnlyHint:    mcp.ToBoolPtr(true),
		DestructiveHint: mcp.ToBoolPtr(false),
		OpenWorldHint:   mcp.ToBoolPtr(false),
	}))
	return mcp.NewTool(name, opts...)
}

// defaultTool creates a tool with default annotations (non-destructive).
// Pipelines can reach the network through http_request, so OpenWorld is set.
func (s *Server) defaultTool(name string, opts ...mcp.ToolOption) mcp.Tool {
	opts = append(opts, mcp.WithToolAnnotation(mcp.ToolAnnotation{
		ReadOnlyHint:    mcp.ToBoolPtr(false),
		DestructiveHint: mcp.ToBoolPtr(false),
		OpenWorldHint:   mcp.ToBoolPtr(true),
	}))
	return mcp.NewTool(name, opts...)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcpServer.AddTool(
		s.defaultTool(global.ToolPipelineRun,
			mcp.WithDescription("Execute a pipeline document. Provide either 'pipeline' (inline JSON document) or 'file' (name of a document in the pipelines directory). Steps run in order; each step's output is stored in the run context under its output name and is addressable from later steps via {! !} expressions."),
			mcp.WithString("pipeline",
				mcp.Description("Inline pipeline document (JSON)"),
			),
			mcp.WithString("file",
				mcp.Description("Pipeline file name relative to the pipelines directory"),
			),
			mcp.WithString("params",
				mcp.Description("Optional JSON object seeded into the run context under 'user'"),
			),
			mcp.WithString("result",
				mcp.Description("Optional expression evaluated against the final run context, returned as the run value"),
			),
			mcp.WithBoolean("wait",
				mcp.Description("Block until the run completes (default: true). When false, poll with run_status."),
			),
		), s.handlePipelineRun)

	s.mcpServer.AddTool(
		s.readOnlyTool(global.ToolPipelineValidate,
			mcp.WithDescription("Validate a pipeline document without executing it. Checks JSON structure, step shapes, and nesting depth."),
			mcp.WithString("pipeline",
				mcp.Description("Inline pipeline document (JSON)"),
			),
			mcp.WithString("file",
				mcp.Description("Pipeline file name relative to the pipelines directory"),
			),
		), s.handlePipelineValidate)

	s.mcpServer.AddTool(
		s.readOnlyTool(global.ToolRunStatus,
			mcp.WithDescription("Get the status of a pipeline run."),
			mcp.WithString("run_id",
				mcp.Description("Run identifier returned by pipeline_run"),
				mcp.Required(),
			),
		), s.handleRunStatus)

	s.mcpServer.AddTool(
		s.readOnlyTool(global.ToolRunResult,
			mcp.WithDescription("Get the full result of a finished pipeline run, including its outputs and any failure details."),
			mcp.WithString("run_id",
				mcp.Description("Run identifier returned by pipeline_run"),
				mcp.Required(),
			),
		), s.handleRunResult)

	s.mcpServer.AddTool(
		s.readOnlyTool(global.ToolToolList,
			mcp.WithDescription("List the tools available to pipeline steps."),
		), s.handleToolList)

	s.mcpServer.AddTool(
		s.readOnlyTool(global.ToolHealth,
			mcp.WithDescription("Report server health and version information."),
		), s.handleHealth)

	return nil
}

// Run starts the MCP server with graceful shutdown
func (s *Server) Run() error {
	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		err := server.ServeStdio(s.mcpServer)
		// ServeStdio returns when stdin is closed (EOF) or on error
		errChan <- err
	}()

	s.logger.Infof("MCP server started successfully")

	// Wait for shutdown signal, stdin close, or error
	select {
	case <-sigChan:
		s.logger.Info("Shutdown signal received")
		s.waitForRunner()
		s.logger.Info("Server stopped")
		if err := s.logger.Sync(); err != nil {
			s.logger.Warnf("Failed to flush logs on shutdown: %v", err)
		}
		return nil

	case err := <-errChan:
		if err != nil {
			s.logger.Errorf("Server error: %v", err)
			s.waitForRunner()
			return fmt.Errorf("server error: %w", err)
		}
		// nil error means stdin was closed (EOF) - normal exit
		s.logger.Info("Connection closed")
		s.waitForRunner()
		s.logger.Info("Server exiting")
		return nil
	}
}

// waitForRunner waits for any active pipeline runs to complete before
// shutdown so in-flight runs are not abandoned mid-step.
func (s *Server) waitForRunner() {
	if s.runner.IsRunning() {
		s.logger.Info("Waiting for active pipeline runs to complete...")
		s.runner.Wait()
		s.logger.Info("All pipeline runs completed")
	}
}
