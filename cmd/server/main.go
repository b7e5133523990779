package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jmservera/casabot/internal/config"
	"github.com/jmservera/casabot/internal/metrics"
	"github.com/jmservera/casabot/internal/protocol"
	"github.com/jmservera/casabot/internal/server"
	"github.com/jmservera/casabot/internal/transcription"
)

const (
	serviceName    = "casabot-stt"
	serviceVersion = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional)")
	flag.Parse()

	// Load a local .env file if present; real environment wins
	godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("listen_uri", cfg.Server.ListenURI),
		slog.String("backend_endpoint", cfg.Backend.Endpoint),
		slog.String("api_version", cfg.Backend.APIVersion),
		slog.String("model", cfg.Backend.Model),
		slog.String("language", cfg.Backend.Language),
		slog.Int("timeout", cfg.Backend.Timeout),
		slog.Int("max_concurrent", cfg.Backend.MaxConcurrent),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Create the transcription client; a bad backend config is fatal
	client, err := transcription.NewClient(transcription.Config{
		Endpoint:      cfg.Backend.Endpoint,
		APIKey:        cfg.Backend.APIKey,
		APIVersion:    cfg.Backend.APIVersion,
		Model:         cfg.Backend.Model,
		Language:      cfg.Backend.LanguageHint(),
		Timeout:       cfg.Backend.GetTimeoutDuration(),
		MaxConcurrent: cfg.Backend.MaxConcurrent,
	})
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Transcription client initialized",
		slog.String("endpoint", cfg.Backend.Endpoint),
		slog.String("model", cfg.Backend.Model),
	)

	// Build the capability descriptor advertised to describe queries
	info := buildInfo(cfg)

	// Initialize Wyoming server
	wyomingServer := server.NewWyomingServer(
		&cfg.Server, logger, client, cfg.Backend.LanguageHint(), info, appMetrics)
	logger.Info("Wyoming server initialized")

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, wyomingServer, client, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Start Wyoming server
	if err := wyomingServer.Start(); err != nil {
		logger.Error("Failed to start Wyoming server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start HTTP server (if enabled)
	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("listen_uri", cfg.Server.ListenURI),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop Wyoming server (closes the listener and active connections)
	if err := wyomingServer.Stop(); err != nil {
		logger.Error("Error stopping Wyoming server", slog.String("error", err.Error()))
	}

	// Wait for in-flight backend calls to drain
	if err := client.Close(); err != nil {
		logger.Error("Error closing transcription client", slog.String("error", err.Error()))
	}

	// Get final statistics
	stats := client.GetStats()
	logger.Info("Final transcription statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Uint64("skipped_requests", stats.SkippedRequests),
	)

	logger.Info("Service stopped")
}

// buildInfo constructs the capability descriptor returned to describe
// queries. It advertises exactly one program with the configured model.
func buildInfo(cfg *config.Config) *protocol.Info {
	attribution := protocol.Attribution{
		Name: "Azure OpenAI",
		URL:  "https://azure.microsoft.com/products/ai-services/openai-service",
	}

	return &protocol.Info{
		ASR: []protocol.AsrProgram{{
			Name:        "azure-openai-stt",
			Description: "Azure OpenAI speech-to-text bridge",
			Attribution: attribution,
			Installed:   true,
			Version:     serviceVersion,
			Models: []protocol.AsrModel{{
				Name:        cfg.Backend.Model,
				Description: fmt.Sprintf("Azure OpenAI %s deployment", cfg.Backend.Model),
				Attribution: attribution,
				Installed:   true,
				Languages:   []string{cfg.Backend.Language},
			}},
		}},
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
