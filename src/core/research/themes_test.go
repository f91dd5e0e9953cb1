package research

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const themeJSON = `{"Theme 1": {"summary": "s", "docs": ["a.pdf"]}}`

func TestThemesSamplesWithoutQuery(t *testing.T) {
	store := &fakeStore{matches: []Match{
		{DocID: "a.pdf", Text: " first "},
		{Text: "orphan"},
		{DocID: "b.pdf"},
	}}
	embedder := &fakeEmbedder{}
	llm := &fakeLLM{answer: themeJSON}
	svc := NewThemeService(embedder, store, llm, "m")

	themes, err := svc.Themes(context.Background(), ThemesRequest{})
	require.NoError(t, err)

	assert.Contains(t, themes, "Theme 1")
	assert.Nil(t, store.lastQuery)
	assert.Equal(t, DefaultThemesTopK, store.lastTopK)
	assert.Empty(t, embedder.queries)

	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "Excerpt 1 (Doc: a.pdf): first")
	assert.Contains(t, prompt, "Excerpt 2 (Doc: UNKNOWN): orphan")
	assert.NotContains(t, prompt, "User Query:")
	assert.Equal(t, CompletionOptions{Model: "m", Temperature: 0.4, MaxTokens: 1000}, llm.opts[0])
}

func TestThemesRanksByQuery(t *testing.T) {
	store := &fakeStore{matches: []Match{{DocID: "a.pdf", Text: "x"}}}
	embedder := &fakeEmbedder{}
	llm := &fakeLLM{answer: themeJSON}
	svc := NewThemeService(embedder, store, llm, "m")

	_, err := svc.Themes(context.Background(), ThemesRequest{Query: "climate", TopK: 7})
	require.NoError(t, err)
	assert.Equal(t, []string{"climate"}, embedder.queries)
	assert.NotNil(t, store.lastQuery)
	assert.Equal(t, 7, store.lastTopK)
	assert.Contains(t, llm.prompts[0], "User Query: climate")
}

func TestThemesFailures(t *testing.T) {
	t.Run("no excerpts", func(t *testing.T) {
		svc := NewThemeService(&fakeEmbedder{}, &fakeStore{}, &fakeLLM{}, "m")
		_, err := svc.Themes(context.Background(), ThemesRequest{})
		assert.ErrorIs(t, err, ErrNoExcerpts)
	})

	t.Run("unparseable output", func(t *testing.T) {
		store := &fakeStore{matches: []Match{{DocID: "a", Text: "x"}}}
		svc := NewThemeService(&fakeEmbedder{}, store, &fakeLLM{answer: "no json here"}, "m")
		_, err := svc.Themes(context.Background(), ThemesRequest{})
		var parseErr *ThemeParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, "no json here", parseErr.Raw)
	})

	t.Run("llm failure", func(t *testing.T) {
		store := &fakeStore{matches: []Match{{DocID: "a", Text: "x"}}}
		svc := NewThemeService(&fakeEmbedder{}, store, &fakeLLM{err: errors.New("timeout")}, "m")
		_, err := svc.Themes(context.Background(), ThemesRequest{})
		assert.EqualError(t, err, "Theme identification failed: timeout")
	})
}

func TestIdentifyThemes(t *testing.T) {
	chunks := make([]string, 25)
	docIDs := make([]string, 25)
	for i := range chunks {
		chunks[i] = fmt.Sprintf("chunk %d", i)
		docIDs[i] = fmt.Sprintf("DOC%03d", i)
	}

	tests := []struct {
		name    string
		req     IdentifyThemesRequest
		wantErr error
	}{
		{name: "no chunks", req: IdentifyThemesRequest{}, wantErr: ErrNoChunks},
		{name: "missing doc ids", req: IdentifyThemesRequest{Chunks: chunks[:3], DocIDs: docIDs[:2]}, wantErr: ErrInvalidRequest},
		{name: "twenty ids cover a larger request", req: IdentifyThemesRequest{Chunks: chunks, DocIDs: docIDs[:20]}},
		{name: "matching ids", req: IdentifyThemesRequest{Chunks: chunks[:2], DocIDs: docIDs[:2], Query: "q"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &fakeLLM{answer: "Sure: " + themeJSON}
			svc := NewThemeService(&fakeEmbedder{}, &fakeStore{}, llm, "m")

			themes, err := svc.IdentifyThemes(context.Background(), tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, llm.prompts)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, themes, "Theme 1")
			assert.Equal(t, 0.3, llm.opts[0].Temperature)
			assert.NotContains(t, llm.prompts[0], "Excerpt 21")
		})
	}
}
