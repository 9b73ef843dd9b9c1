// Package ingest resolves submitted documents to plain text and merges them
// into the persisted index.
package ingest

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bull/lexrag/internal/index"
)

const defaultConcurrency = 4

// Transcriber turns audio or video bytes into text. An empty transcript with
// a nil error means the media had no usable speech.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, filename string) (string, error)
}

// MediaFetcher downloads remote media.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// IndexUpdater runs a load-modify-save cycle on the index under a write lock.
type IndexUpdater interface {
	Update(ctx context.Context, fn func(current *index.Index) (*index.Index, error)) (*index.Index, error)
}

// Coordinator orchestrates ingestion from raw documents to a saved index.
type Coordinator struct {
	store       IndexUpdater
	transcriber Transcriber
	fetcher     MediaFetcher
	dedupe      DedupePolicy
	concurrency int
	newID       func() string
	logger      *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTranscriber enables transcription of audio and video sources.
func WithTranscriber(t Transcriber) Option {
	return func(c *Coordinator) { c.transcriber = t }
}

// WithMediaFetcher sets how media URLs are downloaded.
func WithMediaFetcher(f MediaFetcher) Option {
	return func(c *Coordinator) { c.fetcher = f }
}

// WithDedupe sets the duplicate-id policy.
func WithDedupe(p DedupePolicy) Option {
	return func(c *Coordinator) {
		if p != "" {
			c.dedupe = p
		}
	}
}

// WithConcurrency bounds how many documents are resolved at once.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// withIDGenerator overrides id generation for documents submitted without one.
func withIDGenerator(fn func() string) Option {
	return func(c *Coordinator) { c.newID = fn }
}

// NewCoordinator creates a Coordinator writing through store.
func NewCoordinator(store IndexUpdater, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       store,
		dedupe:      DedupeKeep,
		concurrency: defaultConcurrency,
		newID:       func() string { return "doc_" + uuid.New().String() },
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ingest resolves req.Docs to text and rebuilds the index with them, either
// after the existing documents (append) or in their place (replace).
// Transcription and fetch failures are logged and leave the document with
// empty text. A failed save fails the whole call.
func (c *Coordinator) Ingest(ctx context.Context, req Request) (*Result, error) {
	if req.Docs == nil {
		return nil, ErrInvalidRequest
	}
	mode, err := ParseMode(req.Mode)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	docs, err := c.resolveAll(ctx, req.Docs)
	if err != nil {
		return nil, err
	}

	var total int
	saved, err := c.store.Update(ctx, func(current *index.Index) (*index.Index, error) {
		var corpus []index.Document
		if mode == ModeAppend {
			corpus = current.SourceDocuments()
		}
		corpus = append(corpus, docs...)
		if c.dedupe == DedupeLastWriteWins {
			corpus = lastWriteWins(corpus)
		}
		total = len(corpus)
		return index.Build(corpus), nil
	})
	if err != nil {
		return nil, fmt.Errorf("save index: %w", err)
	}

	c.logger.Info("Ingestion complete",
		"mode", mode,
		"indexed", len(docs),
		"total", total,
		"version", saved.Version,
		"duration", time.Since(start),
	)

	return &Result{
		Indexed: len(docs),
		Total:   total,
		Mode:    mode,
		Version: saved.Version,
	}, nil
}

// resolveAll resolves documents concurrently, preserving input order.
func (c *Coordinator) resolveAll(ctx context.Context, raw []RawDocument) ([]index.Document, error) {
	docs := make([]index.Document, len(raw))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := range raw {
		g.Go(func() error {
			docs[i] = c.resolve(gctx, raw[i])
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// resolve produces the indexer's view of one raw document.
func (c *Coordinator) resolve(ctx context.Context, d RawDocument) index.Document {
	id := d.ID
	if id == "" {
		id = c.newID()
	}

	meta := d.Meta
	if meta == nil {
		typ := d.Type
		if typ == "" {
			typ = "text"
		}
		meta = &index.Meta{Type: typ, SourceURL: sourceRef(d)}
	} else {
		m := *meta
		meta = &m
	}

	doc := index.Document{ID: id, Title: d.Title, Meta: meta}

	for _, src := range Sources(d, id) {
		switch s := src.(type) {
		case InlineText:
			doc.Text = s.Text
		case AudioBytes:
			if text := c.transcribeInline(ctx, id, s); text != "" {
				doc.Text = text
				meta.Type = "audio"
				meta.Source = "inline_audio_base64"
			}
		case MediaURL:
			// the reference is kept whether or not transcription succeeds
			doc.Text = c.transcribeURL(ctx, id, s, meta)
		}
		if doc.Text != "" {
			break
		}
	}
	return doc
}

func (c *Coordinator) transcribeInline(ctx context.Context, id string, s AudioBytes) string {
	data, err := base64.StdEncoding.DecodeString(s.Base64)
	if err != nil {
		c.logger.Warn("Invalid inline audio", "id", id, "error", err)
		return ""
	}
	return c.transcribe(ctx, id, data, s.Filename)
}

func (c *Coordinator) transcribeURL(ctx context.Context, id string, s MediaURL, meta *index.Meta) string {
	meta.Type = string(s.Kind)
	meta.Source = s.URL
	if c.fetcher == nil || c.transcriber == nil {
		c.logger.Debug("Media transcription disabled, indexing without text", "id", id, "url", s.URL)
		return ""
	}
	data, err := c.fetcher.Fetch(ctx, s.URL)
	if err != nil {
		c.logger.Warn("Failed to fetch media", "id", id, "url", s.URL, "error", err)
		return ""
	}
	return c.transcribe(ctx, id, data, mediaFilename(s.URL, id))
}

func (c *Coordinator) transcribe(ctx context.Context, id string, data []byte, filename string) string {
	if c.transcriber == nil {
		c.logger.Debug("Transcription disabled, indexing without text", "id", id)
		return ""
	}
	text, err := c.transcriber.Transcribe(ctx, data, filename)
	if err != nil {
		c.logger.Warn("Transcription failed", "id", id, "filename", filename, "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

// lastWriteWins collapses documents sharing an id, keeping the later one at
// the position of the first.
func lastWriteWins(docs []index.Document) []index.Document {
	out := make([]index.Document, 0, len(docs))
	pos := make(map[string]int, len(docs))
	for _, d := range docs {
		if i, ok := pos[d.ID]; ok {
			out[i] = d
			continue
		}
		pos[d.ID] = len(out)
		out = append(out, d)
	}
	return out
}
