package research

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoFiles             = errors.New("no files uploaded")
	ErrNoExtractableText   = errors.New("No extractable text found.")
	ErrNoChunks            = errors.New("No document chunks provided for theme analysis")
	ErrNoExcerpts          = errors.New("No document excerpts available for theme analysis.")
	ErrInvalidRequest      = errors.New("Invalid request")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrAsyncUnavailable    = errors.New("asynchronous ingestion is not configured")
	ErrDocumentNotFound    = errors.New("Document not found")
	ErrJobNotFound         = errors.New("Job not found")
	ErrNotConfigured       = errors.New("component not configured")
)

// ThemeParseError is returned when the LLM answer for a theme request is not a JSON object.
type ThemeParseError struct {
	Raw string
}

func (e *ThemeParseError) Error() string {
	return "failed to parse theme output"
}

// LLMError wraps a failed completion call.
type LLMError struct {
	Op  string
	Err error
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// Section is a referenced piece of extracted text, e.g. one PDF page or one paragraph.
type Section struct {
	Text string `json:"text"`
	Ref  string `json:"ref"`
}

// Chunk is the unit of embedding.
type Chunk struct {
	VectorID string `json:"vector_id"`
	DocID    string `json:"doc_id"`
	Ref      string `json:"ref"`
	Text     string `json:"text"`
	Order    int    `json:"order"`
}

// Vector is an embedded chunk ready to be written to a vector store.
type Vector struct {
	ID     string
	Values []float32
	DocID  string
	Ref    string
	Text   string
}

// Match is a chunk returned by a similarity search.
type Match struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	DocID string  `json:"doc_id"`
	Ref   string  `json:"ref"`
	Text  string  `json:"text"`
}

// Citations maps a document id to the refs that support an answer.
type Citations map[string][]string

// Themes is the JSON object produced by the LLM, keyed by theme title.
type Themes map[string]any

// DocumentStatus tracks ingestion progress of an uploaded file
type DocumentStatus string

const (
	DocumentStatusPending   DocumentStatus = "pending"
	DocumentStatusProcessed DocumentStatus = "processed"
	DocumentStatusFailed    DocumentStatus = "failed"
)

// Document is the metadata kept for an uploaded file.
type Document struct {
	ID          int64          `json:"id"`
	DocID       string         `json:"doc_id"`
	Filename    string         `json:"filename"`
	ContentType string         `json:"content_type,omitempty"`
	Size        int64          `json:"size"`
	BlobURL     string         `json:"blob_url,omitempty"`
	Status      DocumentStatus `json:"status"`
	NumChunks   int            `json:"num_chunks"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// CompletionOptions tune a single LLM call.
type CompletionOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Extractor turns a staged file into referenced text sections.
type Extractor interface {
	Supports(filename string) bool
	Extract(ctx context.Context, filename, path string) ([]Section, error)
}

// TextAnalyzer is an Extractor that can return the whole text of a document at once.
type TextAnalyzer interface {
	AnalyzeText(ctx context.Context, filename, path string) (string, error)
}

// Embedder creates embedding vectors.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore stores and searches embedded chunks. Query with a nil vector returns an unranked sample
// of stored chunks.
type VectorStore interface {
	EnsureIndex(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, vectors []Vector) error
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	Ping(ctx context.Context) error
}

// LLM completes a single-turn prompt.
type LLM interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

// BlobStore keeps the original uploaded files.
type BlobStore interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, url string) ([]byte, error)
	Delete(ctx context.Context, url string) error
}

// DocumentRepository persists document and chunk metadata.
type DocumentRepository interface {
	Create(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id int64) (*Document, error)
	List(ctx context.Context, limit, offset int) ([]Document, error)
	MarkProcessed(ctx context.Context, id int64, numChunks int) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	// SaveChunks replaces the chunks stored for a document.
	SaveChunks(ctx context.Context, documentID int64, chunks []Chunk) error
	Chunks(ctx context.Context, documentID int64) ([]Chunk, error)
}

// IngestJob is the payload of an asynchronous ingestion.
type IngestJob struct {
	DocumentID int64  `json:"document_id"`
	Filename   string `json:"filename"`
	BlobURL    string `json:"blob_url"`
	ChunkSize  int    `json:"chunk_size"`
}

// JobQueue hands ingestion work to background workers.
type JobQueue interface {
	EnqueueIngest(ctx context.Context, job IngestJob) (int64, error)
}

// JobInfo is the externally visible state of a background job.
type JobInfo struct {
	ID        int64     `json:"id"`
	TaskType  string    `json:"task_type"`
	Status    string    `json:"status"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobTracker looks up background jobs.
type JobTracker interface {
	GetJob(ctx context.Context, id int64) (*JobInfo, error)
}

// Pinger is implemented by every backing component that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}
