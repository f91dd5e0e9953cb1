// Package llm adapts langchaingo chat models and embedders to the research ports.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"docresearch/src/core/research"
)

const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderOllama = "ollama"

	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
	DefaultOllamaURL   = "http://localhost:11434"
)

// Config selects and configures a chat model provider.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	// RateLimit is the number of completions allowed per second; 0 disables limiting.
	RateLimit float64
	Burst     int
}

// Client completes prompts with a langchaingo model.
type Client struct {
	model        llms.Model
	defaultModel string
	limiter      *rate.Limiter
}

func New(cfg Config) (*Client, error) {
	model, err := newModel(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithModel(model, cfg), nil
}

// NewWithModel wraps an already constructed langchaingo model.
func NewWithModel(model llms.Model, cfg Config) *Client {
	c := &Client{model: model, defaultModel: cfg.Model}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.Burst, 1))
	}
	return c
}

func newModel(cfg Config) (llms.Model, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case ProviderGroq:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultGroqBaseURL
		}
		return openai.New(openai.WithToken(cfg.APIKey), openai.WithModel(cfg.Model), openai.WithBaseURL(baseURL))
	case ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultOllamaURL
		}
		return ollama.New(ollama.WithModel(cfg.Model), ollama.WithServerURL(baseURL))
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func (c *Client) Complete(ctx context.Context, prompt string, opts research.CompletionOptions) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	model := opts.Model
	if model == "" {
		model = c.defaultModel
	}
	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if model != "" {
		callOpts = append(callOpts, llms.WithModel(model))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	resp, err := c.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, callOpts...)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", errors.New("empty response from model")
	}
	return resp.Choices[0].Content, nil
}

// EmbedderConfig configures an OpenAI-compatible embedding model.
type EmbedderConfig struct {
	Model   string
	APIKey  string
	BaseURL string
}

// NewOpenAIEmbedder builds a langchaingo embedder backed by the OpenAI embeddings API.
func NewOpenAIEmbedder(cfg EmbedderConfig) (embeddings.Embedder, error) {
	opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithEmbeddingModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return embeddings.NewEmbedder(client, embeddings.WithBatchSize(100))
}
