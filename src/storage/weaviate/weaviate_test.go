package weaviate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/weaviate/weaviate/entities/models"

	"docresearch/src/core/research"
)

func TestClassName(t *testing.T) {
	tests := map[string]string{
		"citation-theme-bot": "CitationThemeBot",
		"docs":               "Docs",
		"my_index 2":         "MyIndex2",
		"9lives":             "C9lives",
		"---":                "Chunk",
	}
	for in, want := range tests {
		assert.Equal(t, want, ClassName(in), in)
	}
}

func TestObjectIDIsStable(t *testing.T) {
	a := ObjectID("report.pdf_page-1")
	assert.Equal(t, a, ObjectID("report.pdf_page-1"))
	assert.NotEqual(t, a, ObjectID("report.pdf_page-2"))
	assert.True(t, len(a.String()) == 36)
}

func TestParseMatches(t *testing.T) {
	data := map[string]models.JSONObject{
		"Get": map[string]interface{}{
			"Docs": []interface{}{
				map[string]interface{}{
					"vectorId": "a.pdf_page-1",
					"docId":    "a.pdf",
					"ref":      "page-1",
					"text":     "hello",
					"_additional": map[string]interface{}{
						"id":       "0000",
						"distance": 0.25,
					},
				},
				map[string]interface{}{
					"text":        "no ids",
					"_additional": map[string]interface{}{"id": "1111"},
				},
				"garbage",
			},
		},
	}

	got := parseMatches(data, "Docs", true)
	assert.Equal(t, []research.Match{
		{ID: "a.pdf_page-1", Score: 0.75, DocID: "a.pdf", Ref: "page-1", Text: "hello"},
		{ID: "1111", Text: "no ids"},
	}, got)

	unranked := parseMatches(data, "Docs", false)
	assert.Zero(t, unranked[0].Score)

	assert.Nil(t, parseMatches(data, "Other", true))
}
