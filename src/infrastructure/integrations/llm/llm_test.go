package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"docresearch/src/core/research"
)

type stubModel struct {
	content string
	err     error
	calls   int
	opts    llms.CallOptions
	prompt  string
}

func (s *stubModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	s.calls++
	s.opts = llms.CallOptions{}
	for _, o := range options {
		o(&s.opts)
	}
	if len(messages) > 0 && len(messages[0].Parts) > 0 {
		if text, ok := messages[0].Parts[0].(llms.TextContent); ok {
			s.prompt = text.Text
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.content == "" {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: s.content}}}, nil
}

func (s *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, s, prompt, options...)
}

func TestComplete(t *testing.T) {
	model := &stubModel{content: "answer"}
	c := NewWithModel(model, Config{Model: "default"})

	out, err := c.Complete(context.Background(), "prompt", research.CompletionOptions{Temperature: 0.3, MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	assert.Equal(t, "prompt", model.prompt)
	assert.Equal(t, "default", model.opts.Model)
	assert.Equal(t, 0.3, model.opts.Temperature)
	assert.Equal(t, 100, model.opts.MaxTokens)

	_, err = c.Complete(context.Background(), "prompt", research.CompletionOptions{Model: "override"})
	require.NoError(t, err)
	assert.Equal(t, "override", model.opts.Model)
}

func TestCompleteErrors(t *testing.T) {
	_, err := NewWithModel(&stubModel{err: errors.New("quota")}, Config{}).Complete(context.Background(), "p", research.CompletionOptions{})
	assert.EqualError(t, err, "quota")

	_, err = NewWithModel(&stubModel{}, Config{}).Complete(context.Background(), "p", research.CompletionOptions{})
	assert.Error(t, err)
}

func TestCompleteRespectsRateLimit(t *testing.T) {
	model := &stubModel{content: "ok"}
	c := NewWithModel(model, Config{RateLimit: 0.001, Burst: 1})

	_, err := c.Complete(context.Background(), "p", research.CompletionOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Complete(ctx, "p", research.CompletionOptions{})
	assert.Error(t, err)
	assert.Equal(t, 1, model.calls)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "anthropic"})
	assert.ErrorContains(t, err, "unknown llm provider")
}
