// Package llm wraps the OpenAI client shared by transcription and answer
// generation.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client wraps the OpenAI client.
type Client struct {
	client *openai.Client
}

// NewClient creates an OpenAI client. An empty apiKey falls back to the
// OPENAI_API_KEY environment variable; an error is returned if neither is
// set. baseURL is optional and points the client at a compatible server.
func NewClient(apiKey, baseURL string) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	return &Client{client: &client}, nil
}

// Client returns the underlying OpenAI client.
func (c *Client) Client() *openai.Client {
	return c.client
}

// RetryRateLimited runs op, retrying with exponential backoff while it fails
// with HTTP 429. Other errors are permanent and returned immediately.
func RetryRateLimited(ctx context.Context, op func() error) error {
	operation := func() error {
		err := op()
		if err == nil || IsRateLimitError(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// IsRateLimitError checks if the error is a rate limit error (HTTP 429).
func IsRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
