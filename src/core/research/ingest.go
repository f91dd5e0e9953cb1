package research

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"docresearch/src/core/chunking"
	"docresearch/src/fsutil"
	"docresearch/src/log"
)

const (
	// UpsertBatchSize is the number of vectors written to the store per call.
	UpsertBatchSize = 100
	minChunkRunes   = 20
)

// Ingestor adds the single-file entry points used by the worker and the CLI.
type Ingestor interface {
	IngestService
	IngestFile(ctx context.Context, file UploadFile, chunkSize int) (int, error)
	ProcessIngestJob(ctx context.Context, job IngestJob) error
}

type ingestService struct {
	extractor Extractor
	embedder  Embedder
	store     VectorStore
	files     fsutil.FileStore
	themes    ThemeService

	blobs     BlobStore
	docs      DocumentRepository
	queue     JobQueue
	split     chunking.Func
	chunkSize int
}

// IngestOption configures optional collaborators of the ingest service
type IngestOption func(s *ingestService)

// WithBlobStore keeps original uploads in blobs.
func WithBlobStore(blobs BlobStore) IngestOption {
	return func(s *ingestService) {
		s.blobs = blobs
	}
}

// WithDocumentRepository records document and chunk metadata in docs.
func WithDocumentRepository(docs DocumentRepository) IngestOption {
	return func(s *ingestService) {
		s.docs = docs
	}
}

// WithJobQueue enables asynchronous uploads.
func WithJobQueue(queue JobQueue) IngestOption {
	return func(s *ingestService) {
		s.queue = queue
	}
}

// WithChunker replaces the sentence chunker used for uploads.
func WithChunker(split chunking.Func) IngestOption {
	return func(s *ingestService) {
		s.split = split
	}
}

// WithDefaultChunkSize sets the chunk size used when a request does not carry one.
func WithDefaultChunkSize(size int) IngestOption {
	return func(s *ingestService) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

func NewIngestService(extractor Extractor, embedder Embedder, store VectorStore, files fsutil.FileStore, themes ThemeService, opts ...IngestOption) Ingestor {
	s := &ingestService{
		extractor: extractor,
		embedder:  embedder,
		store:     store,
		files:     files,
		themes:    themes,
		chunkSize: chunking.DefaultSize,
		split: func(text string, size int) ([]string, error) {
			return chunking.Sentences(text, size), nil
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// preparedFile is an extracted, chunked and embedded upload that has not been stored yet.
type preparedFile struct {
	file    UploadFile
	docID   string
	chunks  []Chunk
	vectors []Vector
}

func (s *ingestService) Upload(ctx context.Context, files []UploadFile, opts UploadOptions) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	chunkSize := s.chunkSizeFor(opts.ChunkSize)

	var (
		prepared  []preparedFile
		vectors   []Vector
		processed = []string{}
	)
	for _, f := range files {
		p, ok, err := s.prepare(ctx, f, chunkSize)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		processed = append(processed, f.Filename)
		prepared = append(prepared, p)
		vectors = append(vectors, p.vectors...)
	}

	if err := s.upsert(ctx, vectors); err != nil {
		return nil, err
	}
	for _, p := range prepared {
		if err := s.record(ctx, p); err != nil {
			return nil, err
		}
	}

	log.Info("upload ingested", "files", len(processed), "chunks", len(vectors))
	return &UploadResult{
		Message:        fmt.Sprintf("Uploaded %d files. %d chunks embedded.", len(processed), len(vectors)),
		ProcessedFiles: processed,
		TotalChunks:    len(vectors),
	}, nil
}

func (s *ingestService) UploadAsync(ctx context.Context, files []UploadFile, opts UploadOptions) (*AsyncUploadResult, error) {
	if s.blobs == nil || s.docs == nil || s.queue == nil {
		return nil, ErrAsyncUnavailable
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	chunkSize := s.chunkSizeFor(opts.ChunkSize)

	var (
		jobs     = []QueuedFile{}
		failed   []FailedFile
		firstErr error
	)
	for _, f := range files {
		if !s.extractor.Supports(f.Filename) {
			log.Info("skipping unsupported file", "filename", f.Filename)
			continue
		}

		queued, err := s.enqueue(ctx, f, chunkSize)
		if err != nil {
			log.Error(err, "failed to queue file", "filename", f.Filename)
			failed = append(failed, FailedFile{Filename: f.Filename, Error: err.Error()})
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		jobs = append(jobs, queued)
	}
	if len(jobs) == 0 && firstErr != nil {
		return nil, firstErr
	}

	return &AsyncUploadResult{
		Message: fmt.Sprintf("Queued %d files for ingestion.", len(jobs)),
		Jobs:    jobs,
		Failed:  failed,
	}, nil
}

// enqueue stores one upload, records it as pending and queues its ingestion. On failure the blob
// is removed and a recorded document is marked failed.
func (s *ingestService) enqueue(ctx context.Context, f UploadFile, chunkSize int) (QueuedFile, error) {
	url, err := s.blobs.Put(ctx, f.Filename, f.Data, f.ContentType)
	if err != nil {
		return QueuedFile{}, fmt.Errorf("failed to store %s: %w", f.Filename, err)
	}
	doc := &Document{
		DocID:       f.Filename,
		Filename:    f.Filename,
		ContentType: f.ContentType,
		Size:        int64(len(f.Data)),
		BlobURL:     url,
		Status:      DocumentStatusPending,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		s.deleteBlob(ctx, url)
		return QueuedFile{}, fmt.Errorf("failed to record %s: %w", f.Filename, err)
	}

	jobID, err := s.queue.EnqueueIngest(ctx, IngestJob{
		DocumentID: doc.ID,
		Filename:   f.Filename,
		BlobURL:    url,
		ChunkSize:  chunkSize,
	})
	if err != nil {
		err = fmt.Errorf("failed to enqueue %s: %w", f.Filename, err)
		s.markFailed(ctx, doc.ID, err)
		s.deleteBlob(ctx, url)
		return QueuedFile{}, err
	}
	return QueuedFile{Filename: f.Filename, JobID: jobID, DocumentID: doc.ID}, nil
}

// IngestFile runs the upload pipeline for a single file and returns the number of stored chunks.
func (s *ingestService) IngestFile(ctx context.Context, file UploadFile, chunkSize int) (int, error) {
	p, ok, err := s.prepare(ctx, file, s.chunkSizeFor(chunkSize))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	if err := s.upsert(ctx, p.vectors); err != nil {
		return 0, err
	}
	if err := s.record(ctx, p); err != nil {
		return 0, err
	}
	return len(p.vectors), nil
}

// ProcessIngestJob ingests a file queued by UploadAsync and updates its document row.
func (s *ingestService) ProcessIngestJob(ctx context.Context, job IngestJob) error {
	if s.blobs == nil || s.docs == nil {
		return ErrAsyncUnavailable
	}

	data, err := s.blobs.Get(ctx, job.BlobURL)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", job.BlobURL, err)
	}

	p, ok, err := s.prepare(ctx, UploadFile{Filename: job.Filename, Data: data}, s.chunkSizeFor(job.ChunkSize))
	if err != nil {
		s.markFailed(ctx, job.DocumentID, err)
		return err
	}
	if !ok {
		s.markFailed(ctx, job.DocumentID, ErrNoExtractableText)
		return nil
	}

	if err := s.upsert(ctx, p.vectors); err != nil {
		s.markFailed(ctx, job.DocumentID, err)
		return err
	}
	if err := s.docs.SaveChunks(ctx, job.DocumentID, p.chunks); err != nil {
		return fmt.Errorf("failed to save chunks: %w", err)
	}
	return s.docs.MarkProcessed(ctx, job.DocumentID, len(p.chunks))
}

func (s *ingestService) Analyze(ctx context.Context, file UploadFile) (*AnalyzeResult, error) {
	if !s.extractor.Supports(file.Filename) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, file.Filename)
	}

	text, err := s.analyzeText(ctx, file)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoExtractableText
	}

	docID := strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
	var chunks []Chunk
	for i, w := range chunking.Window(text, chunking.DefaultSize, chunking.DefaultOverlap, chunking.DefaultMinWindow) {
		if len([]rune(strings.TrimSpace(w))) < minChunkRunes {
			continue
		}
		chunks = append(chunks, Chunk{
			VectorID: fmt.Sprintf("%s_chunk_%d", docID, i+1),
			DocID:    docID,
			Ref:      fmt.Sprintf("chunk-%d", i+1),
			Text:     w,
			Order:    i,
		})
	}

	vectors, err := s.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if err := s.upsert(ctx, vectors); err != nil {
		return nil, err
	}
	if err := s.record(ctx, preparedFile{file: file, docID: docID, chunks: chunks, vectors: vectors}); err != nil {
		return nil, err
	}

	slices := chunking.Slices(text, chunking.AnalyzeSliceSize)
	docIDs := make([]string, len(slices))
	for i := range docIDs {
		docIDs[i] = docID
	}
	themes, err := s.themes.IdentifyThemes(ctx, IdentifyThemesRequest{Chunks: slices, DocIDs: docIDs})
	if err != nil {
		log.Error(err, "theme identification failed", "filename", file.Filename)
		themes = ThemeErrorObject(err, "Failed to parse LLM output")
	}

	return &AnalyzeResult{
		Filename:  file.Filename,
		NumChunks: len(chunks),
		Themes:    themes,
	}, nil
}

// prepare extracts, chunks and embeds one file. ok is false when the file is skipped because its
// type is unsupported or it has no text.
func (s *ingestService) prepare(ctx context.Context, file UploadFile, chunkSize int) (preparedFile, bool, error) {
	if !s.extractor.Supports(file.Filename) {
		log.Info("skipping unsupported file", "filename", file.Filename)
		return preparedFile{}, false, nil
	}

	sections, err := s.extract(ctx, file)
	if errors.Is(err, ErrUnsupportedFileType) {
		log.Info("skipping unreadable file", "filename", file.Filename, "reason", err.Error())
		return preparedFile{}, false, nil
	}
	if err != nil {
		return preparedFile{}, false, err
	}
	if len(sections) == 0 {
		log.Info("no text extracted", "filename", file.Filename)
		return preparedFile{}, false, nil
	}

	chunks, err := s.chunkSections(file.Filename, sections, chunkSize)
	if err != nil {
		return preparedFile{}, false, err
	}
	vectors, err := s.embed(ctx, chunks)
	if err != nil {
		return preparedFile{}, false, err
	}

	return preparedFile{file: file, docID: file.Filename, chunks: chunks, vectors: vectors}, true, nil
}

// staged writes the upload to disk for fn and removes it afterwards.
func (s *ingestService) staged(file UploadFile, fn func(path string) error) error {
	path, err := s.files.Stage(file.Filename, file.Data)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.files.Remove(path); err != nil {
			log.Error(err, "failed to remove staged file", "path", path)
		}
	}()
	return fn(path)
}

func (s *ingestService) extract(ctx context.Context, file UploadFile) ([]Section, error) {
	var sections []Section
	err := s.staged(file, func(path string) error {
		var err error
		sections, err = s.extractor.Extract(ctx, file.Filename, path)
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", file.Filename, err)
		}
		return nil
	})
	return sections, err
}

// analyzeText returns the full text of a file, asking the extractor directly when it can.
func (s *ingestService) analyzeText(ctx context.Context, file UploadFile) (string, error) {
	analyzer, ok := s.extractor.(TextAnalyzer)
	if !ok {
		sections, err := s.extract(ctx, file)
		if err != nil {
			return "", err
		}
		return JoinSections(sections), nil
	}

	var text string
	err := s.staged(file, func(path string) error {
		var err error
		text, err = analyzer.AnalyzeText(ctx, file.Filename, path)
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", file.Filename, err)
		}
		return nil
	})
	return text, err
}

func (s *ingestService) chunkSections(filename string, sections []Section, chunkSize int) ([]Chunk, error) {
	var chunks []Chunk
	for _, sec := range sections {
		pieces, err := s.split(sec.Text, chunkSize)
		if err != nil {
			return nil, fmt.Errorf("failed to chunk %s: %w", filename, err)
		}
		for i, piece := range pieces {
			if len([]rune(strings.TrimSpace(piece))) < minChunkRunes {
				continue
			}
			ref := sec.Ref
			if len(pieces) > 1 {
				ref = fmt.Sprintf("%s-chunk-%d", sec.Ref, i+1)
			}
			chunks = append(chunks, Chunk{
				VectorID: VectorID(filename, ref),
				DocID:    filename,
				Ref:      ref,
				Text:     piece,
				Order:    len(chunks),
			})
		}
	}
	return chunks, nil
}

func (s *ingestService) embed(ctx context.Context, chunks []Chunk) ([]Vector, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	vectors := make([]Vector, len(chunks))
	for i, c := range chunks {
		vectors[i] = Vector{
			ID:     c.VectorID,
			Values: embeddings[i],
			DocID:  c.DocID,
			Ref:    c.Ref,
			Text:   c.Text,
		}
	}
	return vectors, nil
}

func (s *ingestService) upsert(ctx context.Context, vectors []Vector) error {
	for start := 0; start < len(vectors); start += UpsertBatchSize {
		end := min(start+UpsertBatchSize, len(vectors))
		if err := s.store.Upsert(ctx, vectors[start:end]); err != nil {
			return fmt.Errorf("failed to upsert vectors: %w", err)
		}
	}
	return nil
}

// record keeps the original file and its metadata when those stores are configured.
func (s *ingestService) record(ctx context.Context, p preparedFile) error {
	if s.docs == nil {
		return nil
	}

	doc := &Document{
		DocID:       p.docID,
		Filename:    p.file.Filename,
		ContentType: p.file.ContentType,
		Size:        int64(len(p.file.Data)),
		Status:      DocumentStatusProcessed,
		NumChunks:   len(p.chunks),
	}
	if s.blobs != nil {
		url, err := s.blobs.Put(ctx, p.file.Filename, p.file.Data, p.file.ContentType)
		if err != nil {
			return fmt.Errorf("failed to store %s: %w", p.file.Filename, err)
		}
		doc.BlobURL = url
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		if doc.BlobURL != "" {
			s.deleteBlob(ctx, doc.BlobURL)
		}
		return fmt.Errorf("failed to record %s: %w", p.file.Filename, err)
	}
	if err := s.docs.SaveChunks(ctx, doc.ID, p.chunks); err != nil {
		return fmt.Errorf("failed to record chunks of %s: %w", p.file.Filename, err)
	}
	return nil
}

func (s *ingestService) markFailed(ctx context.Context, documentID int64, cause error) {
	if err := s.docs.MarkFailed(ctx, documentID, cause.Error()); err != nil {
		log.Error(err, "failed to mark document as failed", "document_id", documentID)
	}
}

func (s *ingestService) deleteBlob(ctx context.Context, url string) {
	if err := s.blobs.Delete(ctx, url); err != nil {
		log.Error(err, "failed to delete blob", "url", url)
	}
}

func (s *ingestService) chunkSizeFor(requested int) int {
	if requested > 0 {
		return requested
	}
	return s.chunkSize
}

// VectorID derives the stable vector id of a chunk from its file name and ref.
func VectorID(filename, ref string) string {
	return strings.ReplaceAll(filename+"_"+ref, " ", "_")
}

// JoinSections returns the full text of a document, sections separated by blank lines.
func JoinSections(sections []Section) string {
	texts := make([]string, len(sections))
	for i, sec := range sections {
		texts[i] = sec.Text
	}
	return strings.Join(texts, "\n\n")
}
