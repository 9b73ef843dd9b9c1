// Package service ties the index store, retriever, synthesizer and ingestion
// coordinator together behind the operations the HTTP API, the MCP server and
// the CLI expose.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bull/lexrag/internal/index"
	"github.com/bull/lexrag/internal/ingest"
	"github.com/bull/lexrag/internal/retriever"
	"github.com/bull/lexrag/internal/storage"
	"github.com/bull/lexrag/internal/synth"
)

// Answer modes.
const (
	ModeExtractive = "extractive"
	ModeGenerative = "generative"
)

var (
	ErrEmptyQuery       = errors.New("query is required")
	ErrDocumentNotFound = errors.New("document not found")
)

// Generator produces a free-form answer from retrieved documents.
type Generator interface {
	Generate(ctx context.Context, query string, docs []retriever.ScoredDocument) (string, error)
}

// Answer is the result of Ask.
type Answer struct {
	Answer    string                     `json:"answer"`
	Mode      string                     `json:"mode"`
	Retrieved []retriever.ScoredDocument `json:"retrieved"`
}

// Status describes the current index.
type Status struct {
	Exists    bool      `json:"exists"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
	Documents int       `json:"documents"`
	Terms     int       `json:"terms"`
	IndexPath string    `json:"indexPath"`
	Remote    string    `json:"remote"`
	// RemoteVersion is the version held by the mirror. It trails Version
	// while saves made during a mirror outage are not yet uploaded.
	RemoteVersion int64 `json:"remoteVersion,omitempty"`
}

// DocumentSummary is a listing entry.
type DocumentSummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Type   string `json:"type,omitempty"`
	Source string `json:"source,omitempty"`
}

// Config holds service dependencies. Generator is optional.
type Config struct {
	Store       *storage.Store
	Retriever   *retriever.Retriever
	Synthesizer *synth.Synthesizer
	Coordinator *ingest.Coordinator
	Generator   Generator
	Logger      *slog.Logger
}

// Service implements the retrieval and ingestion operations.
type Service struct {
	store       *storage.Store
	retriever   *retriever.Retriever
	synth       *synth.Synthesizer
	coordinator *ingest.Coordinator
	generator   Generator
	logger      *slog.Logger
}

// New returns a Service. Missing retriever, synthesizer and coordinator are
// built with their defaults over cfg.Store.
func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Retriever == nil {
		cfg.Retriever = retriever.New(cfg.Store, retriever.WithLogger(cfg.Logger))
	}
	if cfg.Synthesizer == nil {
		cfg.Synthesizer = synth.New(synth.DefaultOptions())
	}
	if cfg.Coordinator == nil {
		cfg.Coordinator = ingest.NewCoordinator(cfg.Store, ingest.WithLogger(cfg.Logger))
	}
	return &Service{
		store:       cfg.Store,
		retriever:   cfg.Retriever,
		synth:       cfg.Synthesizer,
		coordinator: cfg.Coordinator,
		generator:   cfg.Generator,
		logger:      cfg.Logger,
	}
}

// Ingest merges req into the index.
func (s *Service) Ingest(ctx context.Context, req ingest.Request) (*ingest.Result, error) {
	return s.coordinator.Ingest(ctx, req)
}

// Search ranks the index against query.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]retriever.ScoredDocument, error) {
	docs, _, err := s.retriever.Search(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return docs, nil
}

// Ask retrieves documents for query and answers from them. With a generator
// configured the answer is generative; a generator failure falls back to the
// extractive answer.
func (s *Service) Ask(ctx context.Context, query string, topK int) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	docs, idx, err := s.retriever.Search(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	if s.generator != nil && len(docs) > 0 {
		text, err := s.generator.Generate(ctx, query, docs)
		if err == nil && text != "" {
			return &Answer{Answer: text, Mode: ModeGenerative, Retrieved: docs}, nil
		}
		s.logger.Warn("Generative answer failed, using extractive answer", "error", err)
	}

	// a nil *index.Index must not reach the interface as a typed nil
	var stats synth.Stats
	if idx != nil {
		stats = idx
	}
	return &Answer{
		Answer:    s.synth.Synthesize(query, docs, stats),
		Mode:      ModeExtractive,
		Retrieved: docs,
	}, nil
}

// Status reports on the current index. A missing index is not an error.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	st := &Status{IndexPath: s.store.Path(), Remote: s.store.MirrorName()}
	if st.Remote == "" {
		st.Remote = "none"
	} else if v, err := s.store.MirrorVersion(ctx); err != nil {
		s.logger.Warn("Failed to read mirror version", "mirror", st.Remote, "error", err)
	} else {
		st.RemoteVersion = v
	}
	idx, err := s.load(ctx)
	if err != nil || idx == nil {
		return st, err
	}
	st.Exists = true
	st.Version = idx.Version
	st.UpdatedAt = idx.UpdatedAt
	st.Documents = idx.CorpusSize
	st.Terms = len(idx.DocumentFrequency)
	return st, nil
}

// ListDocuments lists indexed documents in index order.
func (s *Service) ListDocuments(ctx context.Context) ([]DocumentSummary, error) {
	idx, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := []DocumentSummary{}
	if idx == nil {
		return out, nil
	}
	for _, d := range idx.Documents {
		sum := DocumentSummary{ID: d.ID, Title: d.Title}
		if d.Meta != nil {
			sum.Type = d.Meta.Type
			sum.Source = d.Meta.Source
			if sum.Source == "" {
				sum.Source = d.Meta.SourceURL
			}
		}
		out = append(out, sum)
	}
	return out, nil
}

// GetDocument returns the last indexed document with id.
func (s *Service) GetDocument(ctx context.Context, id string) (*index.Document, error) {
	idx, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	d, ok := idx.Document(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return &index.Document{ID: d.ID, Title: d.Title, Text: d.Text, Meta: d.Meta}, nil
}

// Health checks the local index directory.
func (s *Service) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}

// MirrorHealth checks the remote mirror, nil when none is configured.
func (s *Service) MirrorHealth(ctx context.Context) error {
	return s.store.MirrorHealth(ctx)
}

// MirrorName names the remote mirror, "" when none is configured.
func (s *Service) MirrorName() string {
	return s.store.MirrorName()
}

// load returns the index, or nil without error when none exists.
func (s *Service) load(ctx context.Context) (*index.Index, error) {
	idx, err := s.store.Load(ctx)
	if errors.Is(err, storage.ErrIndexNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	return idx, nil
}
