package chunkctrl

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, node int64) *ChunkService {
	t.Helper()
	n, err := snowflake.NewNode(node)
	require.NoError(t, err)
	return NewChunkService(nil, n)
}

func TestChunkIDsFromDifferentNodesNeverCollide(t *testing.T) {
	serve := newService(t, 1)
	worker := newService(t, 2)

	batch := make([]NewChunk, 1000)
	for i := range batch {
		batch[i] = NewChunk{VectorID: "v", Ref: "page-1", Text: "t", Order: i}
	}

	seen := make(map[int64]struct{}, 2*len(batch))
	for _, svc := range []*ChunkService{serve, worker} {
		for _, row := range svc.newRows(42, batch) {
			_, dup := seen[row.ID]
			require.False(t, dup, "duplicate chunk id %d", row.ID)
			seen[row.ID] = struct{}{}
		}
	}
	assert.Len(t, seen, 2000)
}

func TestNewRowsKeepsOrderAndDocument(t *testing.T) {
	rows := newService(t, 5).newRows(7, []NewChunk{
		{VectorID: "a", Ref: "page-1", Text: "first", Order: 0},
		{VectorID: "b", Ref: "page-2", Text: "second", Order: 1},
	})

	require.Len(t, rows, 2)
	assert.Equal(t, int64(7), rows[0].DocumentID)
	assert.Equal(t, "page-2", rows[1].Ref)
	assert.Equal(t, 1, rows[1].Order)
	assert.Less(t, rows[0].ID, rows[1].ID)
	assert.Equal(t, int64(5), snowflake.ParseInt64(rows[0].ID).Node())
}
