package qdrant

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"

	"docresearch/src/core/research"
)

func TestPointID(t *testing.T) {
	id := PointID("a.pdf_page-1")
	assert.Equal(t, id, PointID("a.pdf_page-1"))
	assert.NotEqual(t, id, PointID("a.pdf_page-2"))
	assert.Len(t, id, 36)
}

func TestMatchFromPayload(t *testing.T) {
	payload := map[string]*qdrant.Value{
		payloadVectorID: stringValue("a.pdf_page-1"),
		payloadDocID:    stringValue("a.pdf"),
		payloadRef:      stringValue("page-1"),
		payloadText:     stringValue("hello"),
	}
	id := &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: "uuid-1"}}

	assert.Equal(t,
		research.Match{ID: "a.pdf_page-1", DocID: "a.pdf", Ref: "page-1", Text: "hello", Score: 0.5},
		matchFromPayload(id, payload, 0.5),
	)
	assert.Equal(t, research.Match{ID: "uuid-1"}, matchFromPayload(id, nil, 0))
}
