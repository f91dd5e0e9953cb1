package research

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryAnswersWithCitations(t *testing.T) {
	store := &fakeStore{matches: []Match{
		{ID: "a_page-1", Score: 0.9, DocID: "a.pdf", Ref: "page-1", Text: "First excerpt."},
		{ID: "a_page-2", Score: 0.8, DocID: "a.pdf", Ref: "page-2", Text: "Second excerpt."},
		{ID: "a_page-1b", Score: 0.7, DocID: "a.pdf", Ref: "page-1", Text: "Duplicate ref."},
		{ID: "x", Score: 0.456, Text: "No metadata."},
		{ID: "empty", Score: 0.4, DocID: "b.pdf", Ref: "page-9"},
	}}
	llm := &fakeLLM{answer: "  The answer.  "}
	svc := NewQueryService(&fakeEmbedder{}, store, llm, "default-model")

	resp, err := svc.Query(context.Background(), QueryRequest{Q: "What happened?"})
	require.NoError(t, err)

	assert.Equal(t, "The answer.", resp.Answer)
	assert.Equal(t, Citations{
		"a.pdf":       {"page-1", "page-2"},
		"UNKNOWN_DOC": {"score_0.46"},
	}, resp.Citations)
	assert.Equal(t, DefaultQueryTopK, store.lastTopK)

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Excerpt 1:\nFirst excerpt.")
	assert.Contains(t, llm.prompts[0], "Excerpt 4:\nNo metadata.")
	assert.NotContains(t, llm.prompts[0], "Excerpt 5")
	assert.Contains(t, llm.prompts[0], "Question: What happened?")
	assert.Equal(t, CompletionOptions{Model: "default-model", Temperature: 0.2, MaxTokens: 800}, llm.opts[0])
}

func TestQueryUsesRequestedModelAndTopK(t *testing.T) {
	store := &fakeStore{matches: []Match{{DocID: "d", Ref: "r", Text: "t"}}}
	llm := &fakeLLM{answer: "ok"}
	svc := NewQueryService(&fakeEmbedder{}, store, llm, "default-model")

	_, err := svc.Query(context.Background(), QueryRequest{Q: "q", TopK: 3, Model: "other"})
	require.NoError(t, err)
	assert.Equal(t, 3, store.lastTopK)
	assert.Equal(t, "other", llm.opts[0].Model)
}

func TestQueryTruncatesEmbeddingInput(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc := NewQueryService(embedder, &fakeStore{}, &fakeLLM{answer: "ok"}, "m")

	_, err := svc.Query(context.Background(), QueryRequest{Q: "  " + strings.Repeat("ü", 2000) + "  "})
	require.NoError(t, err)
	require.Len(t, embedder.queries, 1)
	assert.Equal(t, 1024, len([]rune(embedder.queries[0])))
}

func TestQueryWithoutMatches(t *testing.T) {
	tests := []struct {
		name       string
		q          string
		llm        *fakeLLM
		wantAnswer string
		wantErr    string
		wantCalls  int
	}{
		{
			name:       "greeting",
			q:          " Hello ",
			llm:        &fakeLLM{answer: "unused"},
			wantAnswer: GreetingAnswer,
		},
		{
			name:       "fallback",
			q:          "Who wrote Hamlet?",
			llm:        &fakeLLM{answer: "Shakespeare."},
			wantAnswer: "Shakespeare.",
			wantCalls:  1,
		},
		{
			name:      "fallback failure",
			q:         "Who wrote Hamlet?",
			llm:       &fakeLLM{err: errors.New("boom")},
			wantErr:   "LLM fallback failed: boom",
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewQueryService(&fakeEmbedder{}, &fakeStore{}, tt.llm, "m")
			resp, err := svc.Query(context.Background(), QueryRequest{Q: tt.q})
			assert.Len(t, tt.llm.prompts, tt.wantCalls)
			if tt.wantErr != "" {
				require.Error(t, err)
				var llmErr *LLMError
				assert.ErrorAs(t, err, &llmErr)
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAnswer, resp.Answer)
			assert.Empty(t, resp.Citations)
			if tt.wantCalls > 0 {
				assert.Contains(t, tt.llm.prompts[0], "The user asked: '"+tt.q+"'")
			}
		})
	}
}

func TestQueryErrors(t *testing.T) {
	t.Run("empty question", func(t *testing.T) {
		svc := NewQueryService(&fakeEmbedder{}, &fakeStore{}, &fakeLLM{}, "m")
		_, err := svc.Query(context.Background(), QueryRequest{Q: "   "})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("embedding failure", func(t *testing.T) {
		svc := NewQueryService(&fakeEmbedder{err: errors.New("down")}, &fakeStore{}, &fakeLLM{}, "m")
		_, err := svc.Query(context.Background(), QueryRequest{Q: "q"})
		assert.ErrorContains(t, err, "down")
	})

	t.Run("answer failure", func(t *testing.T) {
		store := &fakeStore{matches: []Match{{DocID: "d", Ref: "r", Text: "t"}}}
		svc := NewQueryService(&fakeEmbedder{}, store, &fakeLLM{err: errors.New("quota")}, "m")
		_, err := svc.Query(context.Background(), QueryRequest{Q: "q"})
		var llmErr *LLMError
		require.ErrorAs(t, err, &llmErr)
		assert.Equal(t, "LLM answer failed", llmErr.Op)
	})
}
