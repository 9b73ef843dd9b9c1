// Package transcribe turns audio and video into text for ingestion.
package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go"

	"github.com/bull/lexrag/internal/llm"
)

// DefaultModel is the Whisper model used for transcription.
const DefaultModel = openai.AudioModelWhisper1

// OpenAITranscriber transcribes media with the OpenAI audio API.
type OpenAITranscriber struct {
	client *llm.Client
	model  openai.AudioModel
	logger *slog.Logger
}

// NewOpenAITranscriber creates a transcriber. An empty model uses DefaultModel.
func NewOpenAITranscriber(client *llm.Client, model string, logger *slog.Logger) *OpenAITranscriber {
	m := openai.AudioModel(model)
	if model == "" {
		m = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAITranscriber{client: client, model: m, logger: logger}
}

// Transcribe uploads data under filename and returns the transcript text.
// Rate-limited requests are retried with backoff.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	var text string
	err := llm.RetryRateLimited(ctx, func() error {
		resp, err := t.client.Client().Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
			File:  openai.File(bytes.NewReader(data), filename, contentType(filename)),
			Model: t.model,
		})
		if err != nil {
			return err
		}
		text = resp.Text
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", filename, err)
	}

	text = strings.TrimSpace(text)
	t.logger.Debug("Transcribed media", "filename", filename, "bytes", len(data), "chars", len(text))
	return text, nil
}

func contentType(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
