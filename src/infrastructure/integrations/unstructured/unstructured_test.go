package unstructured

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, partitionPath, r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "ocr_only", r.FormValue("strategy"))

		_, header, err := r.FormFile("files")
		require.NoError(t, err)
		assert.Equal(t, "scan.png", header.Filename)

		_ = json.NewEncoder(w).Encode([]UnstructuredElement{
			{Type: "Title", Text: " Heading "},
			{Type: "NarrativeText", Text: ""},
			{Type: "NarrativeText", Text: "Body text"},
		})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "scan.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o600))

	text, err := NewUnstructuredService(srv.URL+"/").Recognize(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Heading\n\nBody text", text)
}

func TestPartitionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewUnstructuredService(srv.URL).Partition(context.Background(), "a.pdf", []byte("x"), "fast")
	assert.ErrorContains(t, err, "422")
}
