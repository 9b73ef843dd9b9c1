// Package indexer syncs documents from a GitHub repository into the index.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/bull/lexrag/internal/github"
	"github.com/bull/lexrag/internal/index"
	"github.com/bull/lexrag/internal/ingest"
	"github.com/bull/lexrag/internal/markdown"
)

// IndexResult contains statistics about a sync operation.
type IndexResult struct {
	TotalDocs      int
	SuccessfulDocs int
	Documents      int // index documents produced, more than SuccessfulDocs when splitting
	FailedDocs     []FailedDoc
	CommitSHA      string
	Ingest         *ingest.Result
	Duration       time.Duration
}

// FailedDoc represents a document that failed to sync.
type FailedDoc struct {
	Path   string
	Reason string
}

// DocSource lists and fetches repository documents.
type DocSource interface {
	Repository() github.Repository
	GetLatestCommitSHA(ctx context.Context) (string, error)
	ListDocs(ctx context.Context) ([]string, error)
	FetchDoc(ctx context.Context, relativePath string) (*github.FetchedDoc, error)
}

// Ingester accepts resolved documents.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (*ingest.Result, error)
}

// Pipeline orchestrates a repository sync from fetching to the saved index.
type Pipeline struct {
	source        DocSource
	converter     *markdown.Converter
	ingester      Ingester
	splitSections bool
	logger        *slog.Logger
}

// NewPipeline creates a sync pipeline. With splitSections, markdown files are
// indexed as one document per H1/H2 section instead of one per file.
func NewPipeline(source DocSource, converter *markdown.Converter, ingester Ingester, splitSections bool, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:        source,
		converter:     converter,
		ingester:      ingester,
		splitSections: splitSections,
		logger:        logger,
	}
}

// IndexAll fetches every document from the repository and ingests them in
// one call with the given mode. Documents that fail to fetch or parse are
// skipped and reported.
func (p *Pipeline) IndexAll(ctx context.Context, mode ingest.Mode) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{}
	repo := p.source.Repository()

	commitSHA, err := p.source.GetLatestCommitSHA(ctx)
	if err != nil {
		return nil, fmt.Errorf("get commit SHA: %w", err)
	}
	result.CommitSHA = commitSHA
	p.logger.Info("Starting sync", "repository", repo.Owner+"/"+repo.Repo, "commit", commitSHA)

	paths, err := p.source.ListDocs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list docs: %w", err)
	}
	result.TotalDocs = len(paths)
	p.logger.Info("Found documents", "count", len(paths))

	docs := []ingest.RawDocument{}
	for _, relPath := range paths {
		converted, err := p.processDocument(ctx, relPath, commitSHA)
		if err != nil {
			p.logger.Warn("Failed to process document", "path", relPath, "error", err)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{
				Path:   relPath,
				Reason: err.Error(),
			})
			continue
		}
		result.SuccessfulDocs++
		docs = append(docs, converted...)
	}
	result.Documents = len(docs)

	res, err := p.ingester.Ingest(ctx, ingest.Request{Docs: docs, Mode: string(mode)})
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	result.Ingest = res

	result.Duration = time.Since(start)
	p.logger.Info("Sync complete",
		"successful", result.SuccessfulDocs,
		"failed", len(result.FailedDocs),
		"documents", result.Documents,
		"total", res.Total,
		"version", res.Version,
		"duration", result.Duration,
	)

	return result, nil
}

// processDocument fetches one file and converts it to ingestion documents.
func (p *Pipeline) processDocument(ctx context.Context, relPath, commitSHA string) ([]ingest.RawDocument, error) {
	fetched, err := p.source.FetchDoc(ctx, relPath)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	p.logger.Debug("Fetched document", "path", relPath, "size", len(fetched.Content))

	repo := p.source.Repository()
	id := fmt.Sprintf("github:%s/%s/%s", repo.Owner, repo.Repo, relPath)
	source := SourceRef(repo.Owner, repo.Repo, commitSHA)
	fallbackTitle := strings.TrimSuffix(path.Base(relPath), path.Ext(relPath))

	if !isMarkdown(relPath) {
		return []ingest.RawDocument{{
			ID:    id,
			Title: fallbackTitle,
			Text:  fetched.Content,
			Meta:  &index.Meta{Type: "text", Source: source, SourceURL: fetched.URL},
		}}, nil
	}

	meta := &index.Meta{Type: "markdown", Source: source, SourceURL: fetched.URL}

	title, body, err := p.converter.Extract([]byte(fetched.Content))
	if err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}
	if title == "" {
		title = fallbackTitle
	}

	if !p.splitSections {
		return []ingest.RawDocument{{ID: id, Title: title, Text: body, Meta: meta}}, nil
	}

	sections, err := p.converter.Sections([]byte(fetched.Content))
	if err != nil {
		return nil, fmt.Errorf("split sections: %w", err)
	}
	docs := make([]ingest.RawDocument, 0, len(sections))
	for _, s := range sections {
		sectionTitle := title
		switch {
		case s.HeaderPath == "":
		case s.HeaderPath == title || strings.HasPrefix(s.HeaderPath, title+" > "):
			sectionTitle = s.HeaderPath
		default:
			sectionTitle = title + " > " + s.HeaderPath
		}
		m := *meta
		docs = append(docs, ingest.RawDocument{
			ID:    fmt.Sprintf("%s#%d", id, s.Index),
			Title: sectionTitle,
			Text:  s.Text,
			Meta:  &m,
		})
	}
	p.logger.Debug("Split document", "path", relPath, "sections", len(docs))
	return docs, nil
}

// SourceRef formats the meta.source value recorded for synced documents.
func SourceRef(owner, repo, commitSHA string) string {
	return fmt.Sprintf("github:%s/%s@%s", owner, repo, commitSHA)
}

// ParseSourceRef is the inverse of SourceRef.
func ParseSourceRef(ref string) (owner, repo, commitSHA string, ok bool) {
	rest, found := strings.CutPrefix(ref, "github:")
	if !found {
		return "", "", "", false
	}
	slug, commitSHA, found := strings.Cut(rest, "@")
	if !found || commitSHA == "" {
		return "", "", "", false
	}
	owner, repo, found = strings.Cut(slug, "/")
	if !found || owner == "" || repo == "" {
		return "", "", "", false
	}
	return owner, repo, commitSHA, true
}

func isMarkdown(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
