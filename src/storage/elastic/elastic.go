// Package elastic stores chunk vectors in an Elasticsearch dense_vector index.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"docresearch/src/core/research"
)

var invalidIndexChars = regexp.MustCompile(`[^a-z0-9_-]+`)

type Store struct {
	client *elasticsearch.Client
	index  string
}

// Config holds the cluster connection settings.
type Config struct {
	Addresses []string
	APIKey    string
	Username  string
	Password  string
}

func NewStore(cfg Config, index string) (*Store, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		APIKey:    cfg.APIKey,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &Store{client: client, index: IndexName(index)}, nil
}

// IndexName lowercases index and replaces characters Elasticsearch does not accept.
func IndexName(index string) string {
	name := strings.Trim(invalidIndexChars.ReplaceAllString(strings.ToLower(index), "-"), "-_")
	if name == "" {
		return "chunks"
	}
	return name
}

type document struct {
	VectorID  string    `json:"vector_id"`
	DocID     string    `json:"doc_id"`
	Ref       string    `json:"ref"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
}

func (s *Store) EnsureIndex(ctx context.Context, dimension int) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{s.index}}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = esapi.IndicesCreateRequest{
		Index: s.index,
		Body:  bytes.NewReader(mappingBody(dimension)),
	}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create index", res)
	}
	return nil
}

func mappingBody(dimension int) []byte {
	body, _ := json.Marshal(map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"vector_id": map[string]any{"type": "keyword"},
				"doc_id":    map[string]any{"type": "keyword"},
				"ref":       map[string]any{"type": "keyword"},
				"text":      map[string]any{"type": "text"},
				"embedding": map[string]any{
					"type":       "dense_vector",
					"dims":       dimension,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	})
	return body
}

func (s *Store) Upsert(ctx context.Context, vectors []research.Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	body, err := bulkBody(s.index, vectors)
	if err != nil {
		return err
	}
	res, err := esapi.BulkRequest{
		Body:    bytes.NewReader(body),
		Refresh: "true",
	}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("failed to bulk index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("bulk index", res)
	}

	var bulk struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID    string `json:"_id"`
			Error *struct {
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulk); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if bulk.Errors {
		for _, item := range bulk.Items {
			for _, op := range item {
				if op.Error != nil {
					return fmt.Errorf("failed to index %s: %s", op.ID, op.Error.Reason)
				}
			}
		}
	}
	return nil
}

// bulkBody renders the NDJSON index actions for vectors.
func bulkBody(index string, vectors []research.Vector) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, v := range vectors {
		action := map[string]any{"index": map[string]any{"_index": index, "_id": v.ID}}
		if err := enc.Encode(action); err != nil {
			return nil, err
		}
		if err := enc.Encode(document{VectorID: v.ID, DocID: v.DocID, Ref: v.Ref, Text: v.Text, Embedding: v.Values}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// searchBody is a kNN search, or match_all when vector is nil.
func searchBody(vector []float32, topK int) []byte {
	query := map[string]any{
		"size":    topK,
		"_source": []string{"vector_id", "doc_id", "ref", "text"},
	}
	if vector == nil {
		query["query"] = map[string]any{"match_all": map[string]any{}}
	} else {
		query["knn"] = map[string]any{
			"field":          "embedding",
			"query_vector":   vector,
			"k":              topK,
			"num_candidates": max(100, topK*2),
		}
	}
	body, _ := json.Marshal(query)
	return body
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string   `json:"_id"`
			Score  float64  `json:"_score"`
			Source document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]research.Match, error) {
	res, err := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(searchBody(vector, topK)),
	}.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("search", res)
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return toMatches(sr, vector != nil), nil
}

// toMatches converts hits; a cosine _score of (1+cos)/2 is mapped back to the cosine similarity.
func toMatches(sr searchResponse, ranked bool) []research.Match {
	matches := make([]research.Match, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		m := research.Match{
			ID:    h.Source.VectorID,
			DocID: h.Source.DocID,
			Ref:   h.Source.Ref,
			Text:  h.Source.Text,
		}
		if m.ID == "" {
			m.ID = h.ID
		}
		if ranked {
			m.Score = 2*h.Score - 1
		}
		matches = append(matches, m)
	}
	return matches
}

func (s *Store) Ping(ctx context.Context) error {
	res, err := esapi.PingRequest{}.Do(ctx, s.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("ping", res)
	}
	return nil
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	return fmt.Errorf("elasticsearch %s: %s: %s", op, res.Status(), strings.TrimSpace(string(body)))
}
