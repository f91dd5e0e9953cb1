package research

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

type fakeEmbedder struct {
	err     error
	queries []string
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.queries = append(f.queries, text)
	return []float32{float32(len(text)), 1}, nil
}

type fakeStore struct {
	mu        sync.Mutex
	matches   []Match
	err       error
	batches   [][]Vector
	lastQuery []float32
	lastTopK  int
	queried   bool
}

func (f *fakeStore) EnsureIndex(context.Context, int) error { return nil }

func (f *fakeStore) Upsert(_ context.Context, vectors []Vector) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]Vector(nil), vectors...))
	return nil
}

func (f *fakeStore) Query(_ context.Context, vector []float32, topK int) ([]Match, error) {
	f.queried = true
	f.lastQuery = vector
	f.lastTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

func (f *fakeStore) Ping(context.Context) error { return f.err }

func (f *fakeStore) upserted() []Vector {
	var all []Vector
	for _, b := range f.batches {
		all = append(all, b...)
	}
	return all
}

type fakeLLM struct {
	answer  string
	err     error
	prompts []string
	opts    []CompletionOptions
}

func (f *fakeLLM) Complete(_ context.Context, prompt string, opts CompletionOptions) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

// fakeExtractor returns fixed sections per file extension; files without an entry are unsupported.
type fakeExtractor struct {
	sections map[string][]Section
	err      error
	paths    []string
}

func (f *fakeExtractor) Supports(filename string) bool {
	_, ok := f.sections[strings.ToLower(filepath.Ext(filename))]
	return ok
}

func (f *fakeExtractor) Extract(_ context.Context, filename, path string) ([]Section, error) {
	f.paths = append(f.paths, path)
	if f.err != nil {
		return nil, f.err
	}
	return f.sections[strings.ToLower(filepath.Ext(filename))], nil
}

type fakeBlobs struct {
	objects map[string][]byte
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}}
}

func (f *fakeBlobs) Put(_ context.Context, name string, data []byte, _ string) (string, error) {
	url := fmt.Sprintf("blob://%d/%s", len(f.objects), name)
	f.objects[url] = data
	return url, nil
}

func (f *fakeBlobs) Get(_ context.Context, url string) ([]byte, error) {
	data, ok := f.objects[url]
	if !ok {
		return nil, errors.New("no such blob")
	}
	return data, nil
}

func (f *fakeBlobs) Delete(_ context.Context, url string) error {
	delete(f.objects, url)
	return nil
}

type fakeDocs struct {
	nextID    int64
	createErr error
	docs      map[int64]*Document
	chunks    map[int64][]Chunk
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: map[int64]*Document{}, chunks: map[int64][]Chunk{}}
}

func (f *fakeDocs) Create(_ context.Context, doc *Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	doc.ID = f.nextID
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeDocs) Get(_ context.Context, id int64) (*Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (f *fakeDocs) List(_ context.Context, limit, offset int) ([]Document, error) {
	var out []Document
	for id := int64(1); id <= f.nextID; id++ {
		if doc, ok := f.docs[id]; ok {
			out = append(out, *doc)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDocs) MarkProcessed(_ context.Context, id int64, numChunks int) error {
	f.docs[id].Status = DocumentStatusProcessed
	f.docs[id].NumChunks = numChunks
	return nil
}

func (f *fakeDocs) MarkFailed(_ context.Context, id int64, reason string) error {
	f.docs[id].Status = DocumentStatusFailed
	f.docs[id].Error = reason
	return nil
}

func (f *fakeDocs) SaveChunks(_ context.Context, documentID int64, chunks []Chunk) error {
	f.chunks[documentID] = append([]Chunk(nil), chunks...)
	return nil
}

func (f *fakeDocs) Chunks(_ context.Context, documentID int64) ([]Chunk, error) {
	return append([]Chunk(nil), f.chunks[documentID]...), nil
}

// fakeQueue rejects the jobs of files listed in failFor.
type fakeQueue struct {
	jobs    []IngestJob
	failFor map[string]bool
}

func (f *fakeQueue) EnqueueIngest(_ context.Context, job IngestJob) (int64, error) {
	if f.failFor[job.Filename] {
		return 0, errors.New("broker unavailable")
	}
	f.jobs = append(f.jobs, job)
	return int64(1000 + len(f.jobs)), nil
}

// fakeAnalyzer serves whole-document text from AnalyzeText and counts the calls.
type fakeAnalyzer struct {
	fakeExtractor
	text  string
	calls int
}

func (f *fakeAnalyzer) AnalyzeText(_ context.Context, _, path string) (string, error) {
	f.calls++
	f.paths = append(f.paths, path)
	return f.text, nil
}
