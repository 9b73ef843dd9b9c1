package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/lexrag/internal/indexer"
	"github.com/bull/lexrag/internal/ingest"
	"github.com/bull/lexrag/internal/retriever"
	"github.com/bull/lexrag/internal/service"
)

const (
	snippetRunes = 280
	// staleThreshold is how many commits behind HEAD triggers a warning.
	staleThreshold = 20
)

// makeSearchHandler creates the search_docs tool handler.
// Returns ranked documents with a snippet, not full content.
func makeSearchHandler(backend Backend) func(
	context.Context, *mcp.CallToolRequest, SearchDocsInput,
) (*mcp.CallToolResult, SearchDocsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchDocsInput) (
		*mcp.CallToolResult, SearchDocsOutput, error,
	) {
		docs, err := backend.Search(ctx, input.Query, input.TopK)
		if err != nil {
			return nil, SearchDocsOutput{}, fmt.Errorf("search failed: %w", err)
		}

		results := toResults(docs)
		if len(results) == 0 {
			return nil, SearchDocsOutput{
				Results: results,
				Message: "No matching documents found. Try different search terms.",
			}, nil
		}
		return nil, SearchDocsOutput{Results: results}, nil
	}
}

// makeAskHandler creates the ask tool handler.
func makeAskHandler(backend Backend) func(
	context.Context, *mcp.CallToolRequest, AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (
		*mcp.CallToolResult, AskOutput, error,
	) {
		answer, err := backend.Ask(ctx, input.Query, input.TopK)
		if err != nil {
			return nil, AskOutput{}, fmt.Errorf("ask failed: %w", err)
		}
		return nil, AskOutput{
			Answer:  answer.Answer,
			Mode:    answer.Mode,
			Sources: toResults(answer.Retrieved),
		}, nil
	}
}

// makeIngestHandler creates the ingest_docs tool handler.
func makeIngestHandler(backend Backend) func(
	context.Context, *mcp.CallToolRequest, IngestDocsInput,
) (*mcp.CallToolResult, IngestDocsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IngestDocsInput) (
		*mcp.CallToolResult, IngestDocsOutput, error,
	) {
		result, err := backend.Ingest(ctx, ingest.Request{Docs: input.Docs, Mode: input.Mode})
		if err != nil {
			return nil, IngestDocsOutput{}, fmt.Errorf("ingest failed: %w", err)
		}
		return nil, IngestDocsOutput{
			Indexed: result.Indexed,
			Total:   result.Total,
			Mode:    string(result.Mode),
			Version: result.Version,
		}, nil
	}
}

// makeFetchHandler creates the fetch_doc tool handler.
func makeFetchHandler(backend Backend) func(
	context.Context, *mcp.CallToolRequest, FetchDocInput,
) (*mcp.CallToolResult, FetchDocOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input FetchDocInput) (
		*mcp.CallToolResult, FetchDocOutput, error,
	) {
		doc, err := backend.GetDocument(ctx, input.ID)
		if err != nil {
			if errors.Is(err, service.ErrDocumentNotFound) {
				return nil, FetchDocOutput{ID: input.ID, Found: false}, nil
			}
			return nil, FetchDocOutput{}, fmt.Errorf("failed to fetch document: %w", err)
		}

		out := FetchDocOutput{
			ID:      doc.ID,
			Title:   doc.Title,
			Content: doc.Text,
			Found:   true,
		}
		if doc.Meta != nil {
			out.Type = doc.Meta.Type
			out.Source = doc.Meta.Source
			if out.Source == "" {
				out.Source = doc.Meta.SourceURL
			}
		}
		return nil, out, nil
	}
}

// makeListHandler creates the list_docs tool handler.
func makeListHandler(backend Backend) func(
	context.Context, *mcp.CallToolRequest, ListDocsInput,
) (*mcp.CallToolResult, ListDocsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListDocsInput) (
		*mcp.CallToolResult, ListDocsOutput, error,
	) {
		docs, err := backend.ListDocuments(ctx)
		if err != nil {
			return nil, ListDocsOutput{}, fmt.Errorf("failed to list documents: %w", err)
		}

		entries := make([]DocEntry, 0, len(docs))
		for _, d := range docs {
			entries = append(entries, DocEntry{ID: d.ID, Title: d.Title, Type: d.Type, Source: d.Source})
		}
		return nil, ListDocsOutput{Documents: entries, Count: len(entries)}, nil
	}
}

// makeStatusHandler creates the get_index_status tool handler.
// When the index was synced from GitHub and a checker is configured, it also
// reports how far the synced commit is behind the branch head.
func makeStatusHandler(backend Backend, checker StalenessChecker, branch string) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		status, err := backend.Status(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("index_error: %w", err)
		}

		out := StatusOutput{
			Exists:        status.Exists,
			Version:       status.Version,
			Documents:     status.Documents,
			Terms:         status.Terms,
			Remote:        status.Remote,
			RemoteVersion: status.RemoteVersion,
		}
		if status.Exists {
			out.UpdatedAt = status.UpdatedAt.Format(time.RFC3339)
		}

		docs, err := backend.ListDocuments(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("index_error: %w", err)
		}
		owner, repo, commit, synced := syncedCommit(docs)
		if !synced {
			return nil, out, nil
		}
		out.SourceCommit = commit

		// GitHub failures leave CommitsBehind nil; they are not a tool error
		if checker != nil {
			if behind, err := checker.CommitsBehind(ctx, owner, repo, commit, branch); err == nil {
				out.CommitsBehind = &behind
				if behind > staleThreshold {
					out.StaleWarning = fmt.Sprintf("Index is %d commits behind %s. Consider resyncing.", behind, branch)
				}
			}
		}
		return nil, out, nil
	}
}

// syncedCommit finds the GitHub commit of the most recently indexed synced
// document. Appends land at the end of the index, so it is searched backwards.
func syncedCommit(docs []service.DocumentSummary) (owner, repo, commit string, ok bool) {
	for i := len(docs) - 1; i >= 0; i-- {
		if owner, repo, commit, ok = indexer.ParseSourceRef(docs[i].Source); ok {
			return owner, repo, commit, true
		}
	}
	return "", "", "", false
}

func toResults(docs []retriever.ScoredDocument) []SearchResult {
	results := make([]SearchResult, 0, len(docs))
	for _, d := range docs {
		results = append(results, SearchResult{
			ID:      d.ID,
			Title:   d.Title,
			Score:   d.Score,
			Snippet: snippet(d.Text),
		})
	}
	return results
}

func snippet(text string) string {
	if utf8.RuneCountInString(text) <= snippetRunes {
		return text
	}
	return string([]rune(text)[:snippetRunes]) + "..."
}
