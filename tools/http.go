/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/PivotLLM/Conduit/global"
	"github.com/PivotLLM/Conduit/logging"
)

// maxHTTPResponseBytes caps how much of a response body is read
const maxHTTPResponseBytes = 10 * 1024 * 1024

// HTTPRequestTool performs an HTTP request and returns the response.
// JSON response bodies are decoded so pipeline expressions can address fields
// directly; other bodies are returned as text.
type HTTPRequestTool struct {
	client *http.Client
	logger *logging.Logger
}

// NewHTTPRequestTool creates the http_request tool
func NewHTTPRequestTool(logger *logging.Logger) *HTTPRequestTool {
	return &HTTPRequestTool{
		client: &http.Client{Timeout: time.Duration(global.DefaultTimeout) * time.Second},
		logger: logger,
	}
}

func (t *HTTPRequestTool) Name() string {
	return global.BuiltinHTTPRequest
}

func (t *HTTPRequestTool) Description() string {
	return "Performs an HTTP request (url, method, body, headers, timeout)"
}

func (t *HTTPRequestTool) Invoke(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	url, err := stringParam(params, "url")
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("url must start with http:// or https://")
	}

	method, err := optionalString(params, "method", http.MethodGet)
	if err != nil {
		return nil, err
	}
	method = strings.ToUpper(method)

	var body io.Reader
	if raw, ok := params["body"]; ok && raw != nil {
		switch v := raw.(type) {
		case string:
			body = strings.NewReader(v)
		default:
			// Structured bodies are sent as JSON
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("failed to encode request body: %w", err)
			}
			body = strings.NewReader(string(encoded))
		}
	}

	if raw, ok := params["timeout"]; ok {
		seconds, err := cast.ToIntE(raw)
		if err != nil {
			return nil, fmt.Errorf("parameter \"timeout\": %v", err)
		}
		validated, err := global.ValidateTimeout(seconds)
		if err != nil {
			return nil, err
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(validated)*time.Second)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if raw, ok := params["headers"]; ok && raw != nil {
		headers, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("parameter \"headers\" must be an object")
		}
		for name, value := range headers {
			s, err := cast.ToStringE(value)
			if err != nil {
				return nil, fmt.Errorf("header %q: %v", name, err)
			}
			req.Header.Set(name, s)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	t.logger.Debugf("http_request: %s %s", method, url)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	result := map[string]interface{}{
		"status_code": resp.StatusCode,
		"status":      resp.Status,
		"body":        string(data),
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var decoded interface{}
		if err := json.Unmarshal(data, &decoded); err == nil {
			result["json"] = decoded
		}
	}

	return result, nil
}
