package valkey

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheKey(t *testing.T) {
	k := CacheKey("model-a", "hello")
	assert.True(t, strings.HasPrefix(k, embeddingPrefix))
	assert.Len(t, k, len(embeddingPrefix)+64)
	assert.Equal(t, k, CacheKey("model-a", "hello"))
	assert.NotEqual(t, k, CacheKey("model-b", "hello"))
	assert.NotEqual(t, CacheKey("ab", "c"), CacheKey("a", "bc"))
}

func TestDecodeVector(t *testing.T) {
	vec, ok := decodeVector("[0.5,1,-2]")
	assert.True(t, ok)
	assert.Equal(t, []float32{0.5, 1, -2}, vec)

	for _, bad := range []string{"", "[]", "not json", `{"a":1}`} {
		_, ok := decodeVector(bad)
		assert.False(t, ok, bad)
	}
}

func TestExpirySeconds(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want int64
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Millisecond, 1},
		{500 * time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{24 * time.Hour, 86400},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expirySeconds(tt.ttl), tt.ttl.String())
	}

	assert.Equal(t, int64(1), NewCachedEmbedder(nil, nil, "m", 200*time.Millisecond).ttl)
}
