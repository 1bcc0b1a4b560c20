/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/PivotLLM/Conduit/global"
	"github.com/PivotLLM/Conduit/pipeline"
	"github.com/PivotLLM/Conduit/runner"
)

// Helper function to create JSON tool results safely
func createJSONResult(data interface{}) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(data)
	if err != nil {
		return mcp.NewToolResultError("Failed to create JSON result"), nil
	}
	return result, nil
}

// logToolCall logs an MCP tool invocation at INFO level
func (s *Server) logToolCall(toolName string, params map[string]string) {
	var parts []string
	for k, v := range params {
		if v != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", k, v))
		}
	}
	if len(parts) == 0 {
		s.logger.Infof("Tool %s called", toolName)
	} else {
		s.logger.Infof("Tool %s called: %s", toolName, strings.Join(parts, ", "))
	}
}

func (s *Server) handlePipelineRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	inline := mcp.ParseString(request, "pipeline", "")
	file := mcp.ParseString(request, "file", "")
	paramsStr := mcp.ParseString(request, "params", "")
	resultExpr := mcp.ParseString(request, "result", "")
	wait := mcp.ParseBoolean(request, "wait", true)

	s.logToolCall(global.ToolPipelineRun, map[string]string{"file": file, "wait": fmt.Sprintf("%v", wait)})

	if inline == "" && file == "" {
		return mcp.NewToolResultError("either pipeline or file parameter is required"), nil
	}
	if inline != "" && file != "" {
		return mcp.NewToolResultError("pipeline and file parameters are mutually exclusive"), nil
	}

	seed := make(map[string]interface{})
	if paramsStr != "" {
		userParams := make(map[string]interface{})
		if err := json.Unmarshal([]byte(paramsStr), &userParams); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("params must be a JSON object: %v", err)), nil
		}
		seed[global.NamespaceUser] = userParams
	}

	req := &runner.RunRequest{
		File:       file,
		Seed:       seed,
		ResultExpr: resultExpr,
		Wait:       wait,
	}
	if inline != "" {
		req.Source = []byte(inline)
	}

	record, err := s.runner.Execute(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return createJSONResult(record)
}

func (s *Server) handlePipelineValidate(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	inline := mcp.ParseString(request, "pipeline", "")
	file := mcp.ParseString(request, "file", "")

	s.logToolCall(global.ToolPipelineValidate, map[string]string{"file": file})

	if inline == "" && file == "" {
		return mcp.NewToolResultError("either pipeline or file parameter is required"), nil
	}
	if inline != "" && file != "" {
		return mcp.NewToolResultError("pipeline and file parameters are mutually exclusive"), nil
	}

	data := []byte(inline)
	if file != "" {
		path, err := global.ResolveWithinDir(s.config.PipelinesDir(), file)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid pipeline file %q: %v", file, err)), nil
		}
		data, err = os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return mcp.NewToolResultError(fmt.Sprintf("pipeline file not found: %s", file)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("failed to read pipeline file: %v", err)), nil
		}
	}

	p, err := pipeline.Parse(data)
	if err != nil {
		response := map[string]interface{}{
			"valid": false,
			"error": err.Error(),
		}
		var formatErr *pipeline.FormatError
		if errors.As(err, &formatErr) && len(formatErr.Issues) > 0 {
			response["issues"] = formatErr.Issues
		}
		return createJSONResult(response)
	}

	return createJSONResult(map[string]interface{}{
		"valid": true,
		"steps": len(p.Steps),
	})
}

func (s *Server) handleRunStatus(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID := mcp.ParseString(request, "run_id", "")

	s.logToolCall(global.ToolRunStatus, map[string]string{"run_id": runID})

	if runID == "" {
		return mcp.NewToolResultError("run_id parameter is required"), nil
	}

	record, err := s.runner.Status(runID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	response := map[string]interface{}{
		"run_id":     record.ID,
		"status":     record.Status,
		"source":     record.Source,
		"started_at": record.StartedAt,
	}
	if record.FinishedAt != nil {
		response["finished_at"] = record.FinishedAt
	}

	return createJSONResult(response)
}

func (s *Server) handleRunResult(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID := mcp.ParseString(request, "run_id", "")

	s.logToolCall(global.ToolRunResult, map[string]string{"run_id": runID})

	if runID == "" {
		return mcp.NewToolResultError("run_id parameter is required"), nil
	}

	record, err := s.runner.Result(runID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return createJSONResult(record)
}

func (s *Server) handleToolList(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logToolCall(global.ToolToolList, nil)

	return createJSONResult(map[string]interface{}{
		"tools": s.registry.Catalog(),
		"count": s.registry.Len(),
	})
}

func (s *Server) handleHealth(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logToolCall(global.ToolHealth, nil)

	return createJSONResult(map[string]interface{}{
		"status":        "ok",
		"program":       global.ProgramName,
		"version":       global.Version,
		"time":          time.Now().Format(time.RFC3339),
		"tools":         s.registry.Len(),
		"runs_active":   s.runner.IsRunning(),
		"pipelines_dir": s.config.PipelinesDir(),
	})
}
