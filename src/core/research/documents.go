package research

import "context"

const (
	DefaultDocumentLimit = 20
	MaxDocumentLimit     = 100
)

type documentService struct {
	repo DocumentRepository
}

// NewDocumentService lists and looks up ingested documents. repo may be nil when no metadata database is configured.
func NewDocumentService(repo DocumentRepository) DocumentService {
	return &documentService{repo: repo}
}

func (s *documentService) List(ctx context.Context, limit, offset int) ([]Document, error) {
	if s.repo == nil {
		return nil, ErrNotConfigured
	}
	if limit <= 0 {
		limit = DefaultDocumentLimit
	}
	limit = min(limit, MaxDocumentLimit)
	offset = max(offset, 0)

	docs, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

func (s *documentService) Get(ctx context.Context, id int64) (*DocumentDetail, error) {
	if s.repo == nil {
		return nil, ErrNotConfigured
	}

	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	chunks, err := s.repo.Chunks(ctx, id)
	if err != nil {
		return nil, err
	}
	if chunks == nil {
		chunks = []Chunk{}
	}
	for i := range chunks {
		chunks[i].DocID = doc.DocID
	}
	return &DocumentDetail{Document: *doc, Chunks: chunks}, nil
}
