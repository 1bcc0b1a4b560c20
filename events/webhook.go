/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package events hosts the listeners that trigger pipeline runs from outside
// the MCP session: an HTTP webhook listener and a websocket listener.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PivotLLM/Conduit/config"
	"github.com/PivotLLM/Conduit/global"
	"github.com/PivotLLM/Conduit/logging"
	"github.com/PivotLLM/Conduit/runner"
)

// maxEventBodyBytes caps inbound event payloads
const maxEventBodyBytes = 1024 * 1024

// WebhookListener runs pipelines in response to HTTP POST requests.
// Each configured route maps a path to a pipeline file; the request body is
// seeded into the run context under the webhook namespace.
type WebhookListener struct {
	cfg    *config.WebhookConfig
	runner *runner.Runner
	logger *logging.Logger
	server *http.Server
}

// NewWebhookListener creates a webhook listener from configuration
func NewWebhookListener(cfg *config.WebhookConfig, r *runner.Runner, logger *logging.Logger) *WebhookListener {
	return &WebhookListener{
		cfg:    cfg,
		runner: r,
		logger: logger,
	}
}

// Start begins serving in a background goroutine
func (w *WebhookListener) Start() error {
	mux := http.NewServeMux()
	for _, route := range w.cfg.Routes {
		mux.HandleFunc(route.Path, w.makeHandler(route))
	}

	w.server = &http.Server{
		Addr:              w.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	w.logger.Infof("Webhook listener starting on %s (%d routes)", w.cfg.Addr, len(w.cfg.Routes))

	go func() {
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			w.logger.Errorf("Webhook listener failed: %v", err)
		}
	}()

	return nil
}

// Stop shuts the listener down gracefully
func (w *WebhookListener) Stop(ctx context.Context) error {
	if w.server == nil {
		return nil
	}
	return w.server.Shutdown(ctx)
}

func (w *WebhookListener) makeHandler(route config.WebhookRoute) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		payload, err := decodeEventBody(req)
		if err != nil {
			w.logger.Warnf("Webhook %s: bad request: %v", route.Path, err)
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}

		record, err := w.runner.Execute(req.Context(), &runner.RunRequest{
			File:         route.PipelineFile,
			ResultExpr:   route.Result,
			FromListener: true,
			Seed: map[string]interface{}{
				global.NamespaceWebhook: payload,
			},
		})
		if err != nil {
			w.logger.Errorf("Webhook %s: failed to start run: %v", route.Path, err)
			http.Error(rw, "failed to start run", http.StatusInternalServerError)
			return
		}

		w.logger.Infof("Webhook %s: started run %s (pipeline %s)", route.Path, record.ID, route.PipelineFile)

		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(rw).Encode(map[string]interface{}{
			"run_id": record.ID,
			"status": record.Status,
		})
	}
}

// decodeEventBody parses a JSON request body into an event payload.
// An empty body yields an empty object.
func decodeEventBody(req *http.Request) (map[string]interface{}, error) {
	defer func() { _ = req.Body.Close() }()

	decoder := json.NewDecoder(http.MaxBytesReader(nil, req.Body, maxEventBodyBytes))
	payload := make(map[string]interface{})
	if err := decoder.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]interface{}{}, nil
		}
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return payload, nil
}
