package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"docresearch/src/log"
)

const (
	DefaultURL   = "http://localhost:11434"
	maxRetries   = 3
	retryBackoff = time.Second
)

// Client wraps the Ollama API for embeddings and liveness checks.
type Client struct {
	api   *api.Client
	model string
}

// NewClient creates a client for the server at rawURL using model for embeddings.
func NewClient(rawURL, model string, timeout time.Duration) (*Client, error) {
	if rawURL == "" {
		rawURL = DefaultURL
	}
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", rawURL, err)
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Client{
		api:   api.NewClient(base, &http.Client{Timeout: timeout}),
		model: model,
	}, nil
}

// EmbedDocuments embeds texts in a single request.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var (
		resp    *api.EmbedResponse
		lastErr error
	)
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			log.Debug("retrying ollama embedding", "attempt", attempt+1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff * time.Duration(1<<(attempt-1))):
			}
		}

		resp, lastErr = c.api.Embed(ctx, &api.EmbedRequest{Model: c.model, Input: texts})
		if lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("ollama embed failed after %d attempts: %w", maxRetries, lastErr)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Ping checks that the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.api.Heartbeat(ctx)
}
