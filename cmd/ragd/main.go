// Package main provides the lexrag server: the JSON API, the MCP tools and the
// health endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bull/lexrag/internal/api"
	"github.com/bull/lexrag/internal/app"
	"github.com/bull/lexrag/internal/config"
	"github.com/bull/lexrag/internal/logging"
	mcpserver "github.com/bull/lexrag/internal/mcp"
)

func main() {
	configPath := flag.String("config", getEnv("RAG_CONFIG", "lexrag.yaml"), "path to the YAML config file")
	flag.Parse()

	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.Setup(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	mcpCfg := &mcpserver.Config{Backend: a.Service, Branch: cfg.GitHub.Ref}
	if gh := a.GitHubClient(); gh != nil {
		mcpCfg.GitHub = gh
	}
	server := mcpserver.NewServer(mcpCfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(a.Service))
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, nil))
	api.NewServer(a.Service, logger).Register(mux)
	mux.HandleFunc("/", mcpserver.NewLandingHandler())

	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Server.Mode == "http" {
		logger.Info("Starting HTTP server", "addr", httpServer.Addr, "mcp", "/mcp", "api", "/api/", "health", "/health")
		if err := serve(ctx, httpServer); err != nil {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
		return
	}

	// Stdio mode: MCP on stdin/stdout, the API and health endpoint in the background
	go func() {
		logger.Info("Starting API server", "addr", httpServer.Addr)
		if err := serve(ctx, httpServer); err != nil {
			logger.Warn("API server error", "error", err)
		}
	}()

	logger.Info("Starting lexrag MCP server (stdio mode)")
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("MCP server error", "error", err)
		os.Exit(1)
	}
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
