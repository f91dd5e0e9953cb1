package research

import "context"

// IngestService accepts documents and makes them searchable
type IngestService interface {
	Upload(ctx context.Context, files []UploadFile, opts UploadOptions) (*UploadResult, error)
	UploadAsync(ctx context.Context, files []UploadFile, opts UploadOptions) (*AsyncUploadResult, error)
	Analyze(ctx context.Context, file UploadFile) (*AnalyzeResult, error)
}

// QueryService answers questions over the stored chunks
type QueryService interface {
	Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)
}

// ThemeService extracts themes from stored or supplied chunks
type ThemeService interface {
	Themes(ctx context.Context, req ThemesRequest) (Themes, error)
	IdentifyThemes(ctx context.Context, req IdentifyThemesRequest) (Themes, error)
}

// DocumentService exposes document metadata
type DocumentService interface {
	List(ctx context.Context, limit, offset int) ([]Document, error)
	Get(ctx context.Context, id int64) (*DocumentDetail, error)
}

// SystemService reports component health
type SystemService interface {
	CheckHealth(ctx context.Context) (*HealthStatus, error)
}

// UploadFile is one file received by the API.
type UploadFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UploadOptions controls how an upload is ingested.
type UploadOptions struct {
	ChunkSize int
}

// UploadResult is returned by a synchronous upload.
type UploadResult struct {
	Message        string   `json:"message"`
	ProcessedFiles []string `json:"processed_files"`
	TotalChunks    int      `json:"total_chunks"`
}

// QueuedFile describes a file handed to a background worker.
type QueuedFile struct {
	Filename   string `json:"filename"`
	JobID      int64  `json:"job_id"`
	DocumentID int64  `json:"document_id"`
}

// FailedFile is an upload that could not be queued.
type FailedFile struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// AsyncUploadResult is returned by an asynchronous upload.
type AsyncUploadResult struct {
	Message string       `json:"message"`
	Jobs    []QueuedFile `json:"jobs"`
	Failed  []FailedFile `json:"failed,omitempty"`
}

// DocumentDetail is a document with its stored chunks.
type DocumentDetail struct {
	Document
	Chunks []Chunk `json:"chunks"`
}

// AnalyzeResult is the response of a single-document analysis.
type AnalyzeResult struct {
	Filename  string `json:"filename"`
	NumChunks int    `json:"num_chunks"`
	Themes    Themes `json:"themes"`
}

// QueryRequest is a question over the uploaded documents.
type QueryRequest struct {
	Q     string `json:"q" binding:"required"`
	TopK  int    `json:"top_k"`
	Model string `json:"model,omitempty"`
}

// QueryResponse carries the answer and its citations.
type QueryResponse struct {
	Answer    string    `json:"answer"`
	Citations Citations `json:"citations"`
}

// ThemesRequest asks for themes across stored chunks.
type ThemesRequest struct {
	Query string `json:"query,omitempty"`
	TopK  int    `json:"top_k"`
	Model string `json:"model,omitempty"`
}

// IdentifyThemesRequest asks for themes across caller-provided chunks.
type IdentifyThemesRequest struct {
	Chunks []string `json:"chunks"`
	DocIDs []string `json:"doc_ids"`
	Query  string   `json:"query,omitempty"`
	Model  string   `json:"model,omitempty"`
}

// ComponentStatus represents the status of system components
type ComponentStatus string

const (
	StatusUp   ComponentStatus = "up"
	StatusDown ComponentStatus = "down"
)

// HealthStatus represents system health status
type HealthStatus struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
}
