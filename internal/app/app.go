// Package app wires configuration into a ready retrieval service. Both
// binaries build their dependencies through it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bull/lexrag/internal/answer"
	"github.com/bull/lexrag/internal/config"
	"github.com/bull/lexrag/internal/github"
	"github.com/bull/lexrag/internal/ingest"
	"github.com/bull/lexrag/internal/llm"
	"github.com/bull/lexrag/internal/retriever"
	"github.com/bull/lexrag/internal/service"
	"github.com/bull/lexrag/internal/storage"
	"github.com/bull/lexrag/internal/synth"
	"github.com/bull/lexrag/internal/transcribe"
)

// App holds the wired components.
type App struct {
	Config      *config.Config
	Store       *storage.Store
	Service     *service.Service
	Transcriber *transcribe.OpenAITranscriber // nil unless transcription is enabled
	Logger      *slog.Logger
}

// New connects the configured mirror and builds the service. A mirror that
// cannot be reached is logged and the store runs local only. OpenAI
// credentials are required only when transcription or generation is enabled.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mirror := connectMirror(ctx, cfg, logger)
	store, err := storage.NewStore(storage.Options{
		Path:      cfg.Index.Path,
		RemoteKey: cfg.Index.RemoteKey,
		Mirror:    mirror,
		Logger:    logger,
	})
	if err != nil {
		if mirror != nil {
			mirror.Close()
		}
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}

	var client *llm.Client
	if cfg.Transcription.Enabled || cfg.Generation.Enabled {
		client, err = llm.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
	}

	a := &App{Config: cfg, Store: store, Logger: logger}

	coordOpts := []ingest.Option{
		ingest.WithMediaFetcher(transcribe.NewHTTPFetcher(cfg.Ingest.FetchTimeout(), cfg.Ingest.MaxMediaBytes)),
		ingest.WithDedupe(ingest.DedupePolicy(cfg.Ingest.Dedupe)),
		ingest.WithConcurrency(cfg.Ingest.Concurrency),
		ingest.WithLogger(logger),
	}
	if cfg.Transcription.Enabled {
		a.Transcriber = transcribe.NewOpenAITranscriber(client, cfg.Transcription.Model, logger)
		coordOpts = append(coordOpts, ingest.WithTranscriber(a.Transcriber))
	}

	svcCfg := service.Config{
		Store: store,
		Retriever: retriever.New(store,
			retriever.WithTopK(cfg.Search.DefaultTopK, cfg.Search.MaxTopK),
			retriever.WithLogger(logger),
		),
		Synthesizer: synth.New(synth.Options{
			MaxDocuments:     cfg.Synthesis.MaxDocuments,
			MaxSentences:     cfg.Synthesis.MaxSentences,
			MinSentenceChars: cfg.Synthesis.MinSentenceChars,
			K1:               cfg.Synthesis.K1,
			B:                cfg.Synthesis.B,
			MaxAnswerChars:   cfg.Synthesis.MaxAnswerChars,
		}),
		Coordinator: ingest.NewCoordinator(store, coordOpts...),
		Logger:      logger,
	}
	if cfg.Generation.Enabled {
		svcCfg.Generator = answer.NewGenerator(client, cfg.Generation.Model, logger, cfg.Generation.MaxTokens)
	}
	a.Service = service.New(svcCfg)

	logger.Info("Index store ready",
		"path", cfg.Index.Path,
		"remote", cfg.Remote.Backend,
		"transcription", cfg.Transcription.Enabled,
		"generation", cfg.Generation.Enabled,
	)
	return a, nil
}

// GitHubClient returns a client for the configured token, or nil when it
// cannot be created.
func (a *App) GitHubClient() *github.Client {
	client, err := github.NewClient(a.Config.GitHub.Token)
	if err != nil {
		a.Logger.Warn("GitHub client unavailable", "error", err)
		return nil
	}
	return client
}

// Close releases the mirror connection.
func (a *App) Close() error {
	return a.Store.Close()
}

func connectMirror(ctx context.Context, cfg *config.Config, logger *slog.Logger) storage.Mirror {
	switch cfg.Remote.Backend {
	case config.RemoteRedis:
		m, err := storage.NewRedisMirror(ctx, cfg.Remote.Redis.URL, cfg.Remote.Redis.Prefix)
		if err != nil {
			logger.Warn("Redis mirror unavailable, using local index only", "error", err)
			return nil
		}
		return m
	case config.RemoteQdrant:
		m, err := storage.NewQdrantMirror(ctx, cfg.Remote.Qdrant.Host, cfg.Remote.Qdrant.Port, cfg.Remote.Qdrant.Collection)
		if err != nil {
			logger.Warn("Qdrant mirror unavailable, using local index only", "error", err)
			return nil
		}
		return m
	default:
		return nil
	}
}
