package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bull/lexrag/internal/index"
	"github.com/bull/lexrag/internal/ingest"
	"github.com/bull/lexrag/internal/markdown"
)

var audioExtensions = map[string]bool{
	".mp3": true, ".mp4": true, ".m4a": true, ".wav": true,
	".webm": true, ".ogg": true, ".mpeg": true, ".mpga": true,
}

// transcriber is the subset of transcribe.OpenAITranscriber used for local
// audio files.
type transcriber interface {
	Transcribe(ctx context.Context, data []byte, filename string) (string, error)
}

// loadFile turns one local file into an ingestion document. Markdown is
// reduced to plain text; audio is transcribed when t is set, otherwise it is
// passed inline for the coordinator to resolve. A failed transcription keeps
// the document with empty text and its path as source_url.
func loadFile(ctx context.Context, path string, conv *markdown.Converter, t transcriber, logger *slog.Logger) (ingest.RawDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ingest.RawDocument{}, err
	}

	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(path))
	doc := ingest.RawDocument{
		ID:    "file:" + filepath.ToSlash(path),
		Title: strings.TrimSuffix(base, filepath.Ext(base)),
	}

	switch {
	case ext == ".md" || ext == ".markdown":
		title, body, err := conv.Extract(data)
		if err != nil {
			return ingest.RawDocument{}, fmt.Errorf("convert %s: %w", path, err)
		}
		if title != "" {
			doc.Title = title
		}
		doc.Text = body
		doc.Meta = &index.Meta{Type: "markdown", SourceURL: path}
	case audioExtensions[ext]:
		doc.Meta = &index.Meta{Type: "audio", SourceURL: path}
		if t == nil {
			doc.AudioBase64 = base64.StdEncoding.EncodeToString(data)
			return doc, nil
		}
		text, err := t.Transcribe(ctx, data, base)
		if err != nil {
			logger.Warn("Transcription failed, indexing without text", "path", path, "error", err)
			return doc, nil
		}
		doc.Text = text
		doc.Meta.Source = path
	default:
		doc.Text = string(data)
		doc.Meta = &index.Meta{Type: "text", SourceURL: path}
	}
	return doc, nil
}

// loadJSON reads documents from a JSON file holding either an ingestion
// request ({"docs": [...], "mode": ...}) or a bare array of documents.
func loadJSON(path string) (ingest.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ingest.Request{}, err
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var docs []ingest.RawDocument
		if err := json.Unmarshal(data, &docs); err != nil {
			return ingest.Request{}, fmt.Errorf("parse %s: %w", path, err)
		}
		return ingest.Request{Docs: docs}, nil
	}
	var req ingest.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return ingest.Request{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if req.Docs == nil {
		return ingest.Request{}, fmt.Errorf("%s: %w", path, ingest.ErrInvalidRequest)
	}
	return req, nil
}
