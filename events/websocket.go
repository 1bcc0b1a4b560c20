/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package events

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PivotLLM/Conduit/config"
	"github.com/PivotLLM/Conduit/global"
	"github.com/PivotLLM/Conduit/logging"
	"github.com/PivotLLM/Conduit/runner"
)

// WebsocketListener runs the configured pipeline once per inbound message.
// Each JSON message is seeded into the run context under the websocket
// namespace, and the run record is written back on the same connection.
type WebsocketListener struct {
	cfg      *config.WebsocketConfig
	runner   *runner.Runner
	logger   *logging.Logger
	server   *http.Server
	upgrader websocket.Upgrader
}

// NewWebsocketListener creates a websocket listener from configuration
func NewWebsocketListener(cfg *config.WebsocketConfig, r *runner.Runner, logger *logging.Logger) *WebsocketListener {
	return &WebsocketListener{
		cfg:    cfg,
		runner: r,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Start begins serving in a background goroutine
func (w *WebsocketListener) Start() error {
	path := w.cfg.Path
	if path == "" {
		path = "/ws"
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, w.handleConnection)

	w.server = &http.Server{
		Addr:              w.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	w.logger.Infof("Websocket listener starting on %s%s (pipeline %s)", w.cfg.Addr, path, w.cfg.PipelineFile)

	go func() {
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			w.logger.Errorf("Websocket listener failed: %v", err)
		}
	}()

	return nil
}

// Stop shuts the listener down gracefully
func (w *WebsocketListener) Stop(ctx context.Context) error {
	if w.server == nil {
		return nil
	}
	return w.server.Shutdown(ctx)
}

func (w *WebsocketListener) handleConnection(rw http.ResponseWriter, req *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, req, nil)
	if err != nil {
		w.logger.Warnf("Websocket upgrade failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	w.logger.Infof("Websocket connection from %s", conn.RemoteAddr())

	for {
		payload := make(map[string]interface{})
		if err := conn.ReadJSON(&payload); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.logger.Warnf("Websocket read error: %v", err)
			}
			return
		}

		record, err := w.runner.Execute(req.Context(), &runner.RunRequest{
			File:         w.cfg.PipelineFile,
			Wait:         true,
			FromListener: true,
			Seed: map[string]interface{}{
				global.NamespaceWebsocket: payload,
			},
		})
		if err != nil {
			w.logger.Errorf("Websocket run failed to start: %v", err)
			if writeErr := conn.WriteJSON(map[string]interface{}{"error": err.Error()}); writeErr != nil {
				return
			}
			continue
		}

		if err := conn.WriteJSON(record); err != nil {
			w.logger.Warnf("Websocket write error: %v", err)
			return
		}
	}
}
