// Package memory is an in-process vector store for development and tests.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"docresearch/src/core/research"
)

type Store struct {
	mu      sync.RWMutex
	order   []string
	vectors map[string]research.Vector
}

func NewStore() *Store {
	return &Store{vectors: make(map[string]research.Vector)}
}

func (s *Store) EnsureIndex(context.Context, int) error { return nil }

func (s *Store) Upsert(_ context.Context, vectors []research.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range vectors {
		if _, ok := s.vectors[v.ID]; !ok {
			s.order = append(s.order, v.ID)
		}
		v.Values = append([]float32(nil), v.Values...)
		s.vectors[v.ID] = v
	}
	return nil
}

// Query ranks by cosine similarity; a nil vector returns the first topK vectors in insertion order.
func (s *Store) Query(_ context.Context, vector []float32, topK int) ([]research.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]research.Match, 0, len(s.order))
	for _, id := range s.order {
		v := s.vectors[id]
		m := research.Match{ID: v.ID, DocID: v.DocID, Ref: v.Ref, Text: v.Text}
		if vector != nil {
			m.Score = cosine(vector, v.Values)
		}
		matches = append(matches, m)
	}

	if vector != nil {
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].Score > matches[j].Score
		})
	}
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *Store) Ping(context.Context) error { return nil }

// Len returns the number of stored vectors.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
