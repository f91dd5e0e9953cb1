package research

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"docresearch/src/log"
)

const (
	DefaultQueryTopK   = 5
	maxQueryEmbedRunes = 1024
	unknownDocID       = "UNKNOWN_DOC"
)

type queryService struct {
	embedder Embedder
	store    VectorStore
	llm      LLM
	model    string
}

// NewQueryService answers questions from the chunks in store. model is the default LLM model.
func NewQueryService(embedder Embedder, store VectorStore, llm LLM, model string) QueryService {
	return &queryService{
		embedder: embedder,
		store:    store,
		llm:      llm,
		model:    model,
	}
}

func (s *queryService) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	question := strings.TrimSpace(req.Q)
	if question == "" {
		return nil, fmt.Errorf("%w: q is required", ErrInvalidRequest)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = DefaultQueryTopK
	}

	vector, err := s.embedder.EmbedQuery(ctx, truncateRunes(question, maxQueryEmbedRunes))
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := s.store.Query(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector store: %w", err)
	}
	log.Debug("query matched chunks", "matches", len(matches), "top_k", topK)

	if len(matches) == 0 {
		return s.answerWithoutDocuments(ctx, req)
	}

	excerpts, citations := collectCitations(matches)
	prompt, err := BuildQueryPrompt(req.Q, excerpts)
	if err != nil {
		return nil, err
	}

	answer, err := s.llm.Complete(ctx, prompt, CompletionOptions{
		Model:       s.modelFor(req.Model),
		Temperature: 0.2,
		MaxTokens:   800,
	})
	if err != nil {
		return nil, &LLMError{Op: "LLM answer failed", Err: err}
	}

	return &QueryResponse{
		Answer:    strings.TrimSpace(answer),
		Citations: citations,
	}, nil
}

func (s *queryService) answerWithoutDocuments(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	if IsGreeting(req.Q) {
		return &QueryResponse{Answer: GreetingAnswer, Citations: Citations{}}, nil
	}

	prompt, err := BuildFallbackPrompt(req.Q)
	if err != nil {
		return nil, err
	}
	answer, err := s.llm.Complete(ctx, prompt, CompletionOptions{
		Model:       s.modelFor(req.Model),
		Temperature: 0.2,
		MaxTokens:   800,
	})
	if err != nil {
		return nil, &LLMError{Op: "LLM fallback failed", Err: err}
	}

	return &QueryResponse{Answer: strings.TrimSpace(answer), Citations: Citations{}}, nil
}

func (s *queryService) modelFor(requested string) string {
	if requested != "" {
		return requested
	}
	return s.model
}

// collectCitations keeps matches that carry text and groups their refs by document, preserving the
// order in which documents and refs were first seen.
func collectCitations(matches []Match) ([]string, Citations) {
	excerpts := make([]string, 0, len(matches))
	citations := Citations{}

	for _, m := range matches {
		if m.Text == "" {
			continue
		}
		docID := m.DocID
		if docID == "" {
			docID = unknownDocID
		}
		ref := m.Ref
		if ref == "" {
			ref = fmt.Sprintf("score_%.2f", m.Score)
		}

		excerpts = append(excerpts, m.Text)
		if !slices.Contains(citations[docID], ref) {
			citations[docID] = append(citations[docID], ref)
		}
	}

	return excerpts, citations
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
