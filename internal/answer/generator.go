// Package answer produces generative answers from retrieved documents.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"

	"github.com/bull/lexrag/internal/llm"
	"github.com/bull/lexrag/internal/retriever"
)

// DefaultMaxTokens is the maximum context length before truncation (in tokens).
const DefaultMaxTokens = 16000

// DefaultModel is the chat model used when none is configured.
const DefaultModel = openai.ChatModelGPT4o

var ErrEmptyCompletion = errors.New("completion returned no choices")

const systemPrompt = `You answer questions using only the numbered context passages provided.
If the passages do not contain the answer, say so plainly. Keep answers short and cite passage numbers like [1].`

// Generator answers questions with a chat model grounded on retrieved context.
type Generator struct {
	client    *llm.Client
	model     openai.ChatModel
	maxTokens int
	logger    *slog.Logger
}

// NewGenerator creates a generator with the given OpenAI client.
// Optional maxTokens parameter sets truncation limit (defaults to DefaultMaxTokens).
func NewGenerator(client *llm.Client, model string, logger *slog.Logger, maxTokens ...int) *Generator {
	max := DefaultMaxTokens
	if len(maxTokens) > 0 && maxTokens[0] > 0 {
		max = maxTokens[0]
	}
	m := openai.ChatModel(model)
	if model == "" {
		m = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		client:    client,
		model:     m,
		maxTokens: max,
		logger:    logger,
	}
}

// Generate answers query from docs.
func (g *Generator) Generate(ctx context.Context, query string, docs []retriever.ScoredDocument) (string, error) {
	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", g.truncateContent(buildContext(docs)), query)

	var content string
	err := llm.RetryRateLimited(ctx, func() error {
		resp, err := g.client.Client().Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemPrompt),
				openai.UserMessage(prompt),
			},
			Model:       g.model,
			Temperature: openai.Float(0.7),
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return ErrEmptyCompletion
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	return strings.TrimSpace(content), nil
}

func buildContext(docs []retriever.ScoredDocument) string {
	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s\n%s", i+1, d.Title, d.Text)
	}
	return b.String()
}

// truncateContent truncates content to fit within token limits.
// Uses rough estimate of 4 characters per token.
func (g *Generator) truncateContent(content string) string {
	maxChars := g.maxTokens * 4

	if len(content) <= maxChars {
		return content
	}

	g.logger.Warn("Truncating answer context",
		"from_chars", len(content), "to_chars", maxChars, "max_tokens", g.maxTokens)

	return content[:maxChars]
}
