// Package main provides ragctl, the command line client for the lexrag index.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/lexrag/internal/app"
	"github.com/bull/lexrag/internal/config"
	"github.com/bull/lexrag/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "lexrag index management tool",
	Long: `CLI tool for building and querying a lexrag document index.

Environment variables:
  RAG_INDEX_PATH          Local index file (default: data/index.json)
  RAG_REMOTE              Remote mirror: none, redis or qdrant (default: none)
  REDIS_URL               Redis URL for the redis mirror
  QDRANT_HOST/QDRANT_PORT Qdrant gRPC endpoint for the qdrant mirror
  TRANSCRIBE_WITH_OPENAI  Transcribe audio and video sources (default: false)
  GENERATE_WITH_OPENAI    Generative answers for ask (default: false)
  OPENAI_API_KEY          Required when transcription or generation is enabled
  GITHUB_TOKEN            GitHub token for sync (optional, higher rate limits)`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", getEnv("RAG_CONFIG", "lexrag.yaml"), "path to the YAML config file")
	rootCmd.AddCommand(ingestCmd, searchCmd, askCmd, statusCmd, syncCmd, initConfigCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openApp loads the config and wires the service. The caller closes it.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return app.New(ctx, cfg, logger)
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write the default configuration to a YAML file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.Save(path, config.Default()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
