package pgvector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableName(t *testing.T) {
	tests := map[string]string{
		"citation-theme-bot": "citation_theme_bot",
		"Docs":               "docs",
		"a; DROP TABLE x":    "a_drop_table_x",
		"2024 reports":       "t_2024_reports",
		"--":                 "chunks",
	}
	for in, want := range tests {
		assert.Equal(t, want, TableName(in), in)
	}
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "héllo", sanitizeUTF8("héllo"))
	assert.Equal(t, "ab", sanitizeUTF8("a\xffb"))
}
