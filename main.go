/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package main

import (
	"context"
	"embed"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/PivotLLM/Conduit/config"
	"github.com/PivotLLM/Conduit/events"
	"github.com/PivotLLM/Conduit/expression"
	"github.com/PivotLLM/Conduit/global"
	"github.com/PivotLLM/Conduit/logging"
	"github.com/PivotLLM/Conduit/registry"
	"github.com/PivotLLM/Conduit/runner"
	"github.com/PivotLLM/Conduit/server"
	"github.com/PivotLLM/Conduit/tools"
)

// EmbeddedDocs holds the default configuration written on first run
//
//go:embed docs/config-example.json
var EmbeddedDocs embed.FS

func main() {
	// Top-level panic recovery
	defer func() {
		if rec := recover(); rec != nil {
			_, _ = fmt.Fprintf(os.Stderr, "FATAL PANIC: %v\n", rec)
			os.Exit(2)
		}
	}()

	// Parse command line flags
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		version    = flag.Bool("version", false, "Show version information")
		help       = flag.Bool("help", false, "Show help information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", global.ProgramName, global.Version)
		return
	}

	if *help {
		showHelp()
		return
	}

	opts := []config.Option{config.WithEmbeddedFS(EmbeddedDocs)}
	if *configPath != "" {
		opts = append(opts, config.WithConfigPath(*configPath))
	}
	cfg := config.New(opts...)

	if err := cfg.Load(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogFile())
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer func(logger *logging.Logger) {
		_ = logger.Sync()
		_ = logger.Close()
	}(logger)

	logger.SetLevel(cfg.LogLevel())
	logger.Infof("%s v%s starting", global.ProgramName, global.Version)

	if cfg.IsFirstRun() {
		logger.Infof("First run detected - created default configuration at %s", cfg.ConfigPath())
		logger.Info("Edit the configuration to enable the webhook or websocket listeners if needed")
	}

	// Expression evaluator with helper functions available to all pipelines
	evaluator := expression.New(
		expression.WithFunction("uuid", func() string { return uuid.New().String() }),
		expression.WithFunction("now", func() string { return time.Now().Format(time.RFC3339) }),
	)

	// Tool registry with the built-in tools
	reg := registry.New()
	if err := tools.RegisterAll(reg, cfg, logger); err != nil {
		logger.Fatalf("Failed to register tools: %v", err)
	}
	logger.Infof("Registered %d tools", reg.Len())

	run := runner.New(cfg, logger, reg, evaluator)

	// Event listeners (optional)
	if whCfg := cfg.Webhook(); whCfg != nil && whCfg.Enabled {
		listener := events.NewWebhookListener(whCfg, run, logger)
		if err := listener.Start(); err != nil {
			logger.Fatalf("Failed to start webhook listener: %v", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = listener.Stop(ctx)
		}()
	}
	if wsCfg := cfg.Websocket(); wsCfg != nil && wsCfg.Enabled {
		listener := events.NewWebsocketListener(wsCfg, run, logger)
		if err := listener.Start(); err != nil {
			logger.Fatalf("Failed to start websocket listener: %v", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = listener.Stop(ctx)
		}()
	}

	srv, err := server.New(cfg, logger, reg, run)
	if err != nil {
		logger.Fatalf("Failed to create server: %v", err)
	}

	if err := srv.Run(); err != nil {
		logger.Fatalf("Server error: %v", err)
	}
}

func showHelp() {
	fmt.Printf(`%s v%s - MCP Server for JSON Pipeline Execution

USAGE:
    %s [OPTIONS]

OPTIONS:
    --config PATH    Path to configuration file
                     (default: $%s or %s/%s)
    --version        Show version information
    --help           Show this help message

DESCRIPTION:
    Conduit is a Model Context Protocol (MCP) server that executes JSON
    pipeline documents. A pipeline is an ordered list of tool calls whose
    outputs accumulate in a run context; later steps address earlier
    outputs with {! !} expressions, and conditional steps branch on
    expression results.

CONFIGURATION:
    The server uses a JSON configuration file that defines:

    - pipelines_dir: Directory holding pipeline documents (default: pipelines)
    - files_dir: Root directory for the file tools (default: files)
    - runner: Concurrency, rate limit, and run history settings
    - webhook / websocket: Optional event listeners that trigger pipelines

    On first run, a default configuration is created in %s.

FIRST RUN:
    1. Run %s once to create the default config
    2. Edit %s/%s as needed
    3. Run %s again to start the server

EXAMPLES:
    # Start with default config
    %s

    # Start with custom config
    %s --config /path/to/config.json

    # Show version
    %s --version

ENVIRONMENT:
    %s    Path to configuration file (if --config not used)
`, global.ProgramName, global.Version,
		global.ProgramName,
		global.ConfigEnvVar, global.DefaultBaseDir, global.DefaultConfigFileName,
		global.DefaultBaseDir,
		global.ProgramName,
		global.DefaultBaseDir, global.DefaultConfigFileName,
		global.ProgramName,
		global.ProgramName,
		global.ProgramName,
		global.ProgramName,
		global.ConfigEnvVar)
}
