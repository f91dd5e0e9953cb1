// Package valkey caches embeddings in Valkey so re-uploaded text is not embedded twice.
package valkey

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	vk "github.com/valkey-io/valkey-go"

	"docresearch/src/core/research"
	"docresearch/src/log"
)

const embeddingPrefix = "emb:" // Embedding key prefix

// NewClient connects to a single Valkey node.
func NewClient(addr, password string) (vk.Client, error) {
	client, err := vk.NewClient(vk.ClientOption{
		InitAddress: []string{addr},
		Password:    password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}
	return client, nil
}

// CachedEmbedder looks embeddings up in Valkey before calling the wrapped embedder.
type CachedEmbedder struct {
	client vk.Client
	next   research.Embedder
	model  string
	ttl    int64 // seconds, 0 keeps entries forever
}

// NewCachedEmbedder wraps next. model namespaces the keys so switching models never returns stale
// vectors; ttl 0 keeps entries forever.
func NewCachedEmbedder(client vk.Client, next research.Embedder, model string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{client: client, next: next, model: model, ttl: expirySeconds(ttl)}
}

// expirySeconds rounds ttl up to whole seconds, the SETEX resolution.
func expirySeconds(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return int64((ttl + time.Second - 1) / time.Second)
}

// CacheKey returns the Valkey key of the embedding of text under model.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return embeddingPrefix + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	cmds := make(vk.Commands, len(texts))
	for i, t := range texts {
		cmds[i] = c.client.B().Get().Key(CacheKey(c.model, t)).Build()
	}

	var (
		missing   []string
		missingAt []int
	)
	for i, res := range c.client.DoMulti(ctx, cmds...) {
		vec, ok := decode(res)
		if ok {
			out[i] = vec
			continue
		}
		missing = append(missing, texts[i])
		missingAt = append(missingAt, i)
	}
	log.Debug("embedding cache lookup", "hits", len(texts)-len(missing), "misses", len(missing))
	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := c.next.EmbedDocuments(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missing))
	}
	for j, idx := range missingAt {
		out[idx] = fresh[j]
	}
	c.store(ctx, missing, fresh)
	return out, nil
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// store writes fresh vectors; failures only cost a future cache miss.
func (c *CachedEmbedder) store(ctx context.Context, texts []string, vectors [][]float32) {
	cmds := make(vk.Commands, 0, len(texts))
	for i, t := range texts {
		data, err := json.Marshal(vectors[i])
		if err != nil {
			continue
		}
		key := CacheKey(c.model, t)
		if c.ttl > 0 {
			cmds = append(cmds, c.client.B().Setex().Key(key).Seconds(c.ttl).Value(string(data)).Build())
		} else {
			cmds = append(cmds, c.client.B().Set().Key(key).Value(string(data)).Build())
		}
	}
	for _, res := range c.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			log.Error(err, "failed to cache embedding")
			return
		}
	}
}

func decode(res vk.ValkeyResult) ([]float32, bool) {
	s, err := res.ToString()
	if err != nil {
		if !vk.IsValkeyNil(err) {
			log.Error(err, "embedding cache read failed")
		}
		return nil, false
	}
	return decodeVector(s)
}

func decodeVector(s string) ([]float32, bool) {
	var vec []float32
	if err := json.Unmarshal([]byte(s), &vec); err != nil || len(vec) == 0 {
		return nil, false
	}
	return vec, true
}

// Ping checks the Valkey connection.
func (c *CachedEmbedder) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}
