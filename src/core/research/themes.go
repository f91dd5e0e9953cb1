package research

import (
	"context"
	"fmt"
	"strings"

	"docresearch/src/log"
)

const DefaultThemesTopK = 100

type themeService struct {
	embedder Embedder
	store    VectorStore
	llm      LLM
	model    string
}

// NewThemeService extracts themes with llm; model is the default LLM model.
func NewThemeService(embedder Embedder, store VectorStore, llm LLM, model string) ThemeService {
	return &themeService{
		embedder: embedder,
		store:    store,
		llm:      llm,
		model:    model,
	}
}

// Themes samples stored chunks (ranked by the optional query) and asks the LLM for their themes.
func (s *themeService) Themes(ctx context.Context, req ThemesRequest) (Themes, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = DefaultThemesTopK
	}

	var vector []float32
	if query := strings.TrimSpace(req.Query); query != "" {
		v, err := s.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		vector = v
	}

	matches, err := s.store.Query(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector store: %w", err)
	}

	excerpts := make([]Excerpt, 0, len(matches))
	for _, m := range matches {
		if m.Text == "" {
			continue
		}
		docID := m.DocID
		if docID == "" {
			docID = "UNKNOWN"
		}
		excerpts = append(excerpts, Excerpt{DocID: docID, Text: m.Text})
	}
	if len(excerpts) == 0 {
		return nil, ErrNoExcerpts
	}

	return s.extract(ctx, req.Query, excerpts, CompletionOptions{
		Model:       s.modelFor(req.Model),
		Temperature: 0.4,
		MaxTokens:   1000,
	})
}

// IdentifyThemes asks the LLM for the themes of caller-provided chunks.
func (s *themeService) IdentifyThemes(ctx context.Context, req IdentifyThemesRequest) (Themes, error) {
	if len(req.Chunks) == 0 {
		return nil, ErrNoChunks
	}
	used := min(len(req.Chunks), MaxThemeExcerpts)
	if len(req.DocIDs) < used {
		return nil, fmt.Errorf("%w: %d chunks but %d doc_ids", ErrInvalidRequest, len(req.Chunks), len(req.DocIDs))
	}

	excerpts := make([]Excerpt, used)
	for i := range excerpts {
		excerpts[i] = Excerpt{DocID: req.DocIDs[i], Text: req.Chunks[i]}
	}

	return s.extract(ctx, req.Query, excerpts, CompletionOptions{
		Model:       s.modelFor(req.Model),
		Temperature: 0.3,
		MaxTokens:   1000,
	})
}

func (s *themeService) extract(ctx context.Context, query string, excerpts []Excerpt, opts CompletionOptions) (Themes, error) {
	prompt, err := BuildThemePrompt(query, excerpts)
	if err != nil {
		return nil, err
	}

	content, err := s.llm.Complete(ctx, prompt, opts)
	if err != nil {
		return nil, &LLMError{Op: "Theme identification failed", Err: err}
	}

	themes, err := ParseThemes(content)
	if err != nil {
		log.Info("theme output is not valid JSON", "length", len(content))
		return nil, err
	}
	return themes, nil
}

func (s *themeService) modelFor(requested string) string {
	if requested != "" {
		return requested
	}
	return s.model
}
