package chunking_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docresearch/src/core/chunking"
)

func TestSentences(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   []string
	}{
		{
			name:   "short text is returned as is",
			text:   "One. Two",
			maxLen: 500,
			want:   []string{"One. Two"},
		},
		{
			name:   "groups sentences up to the limit",
			text:   "Alpha beta. Gamma delta. Epsilon zeta",
			maxLen: 25,
			want:   []string{"Alpha beta. Gamma delta.", "Epsilon zeta."},
		},
		{
			name:   "long first sentence becomes its own chunk",
			text:   "This sentence is clearly too long. Short",
			maxLen: 10,
			want:   []string{"This sentence is clearly too long.", "Short."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, chunking.Sentences(tt.text, tt.maxLen))
		})
	}
}

func TestSentencesDefaultsNonPositiveLimit(t *testing.T) {
	text := strings.Repeat("word ", 50)
	assert.Equal(t, []string{text}, chunking.Sentences(text, 0))
}

func TestWindow(t *testing.T) {
	text := strings.Repeat("a", 1000)

	chunks := chunking.Window(text, 500, 50, 100)

	// starts at 0, 450, 900; the last window is 100 runes long and kept
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 500)
	assert.Len(t, chunks[1], 500)
	assert.Len(t, chunks[2], 100)
}

func TestWindowDropsShortTail(t *testing.T) {
	text := strings.Repeat("b", 950)

	chunks := chunking.Window(text, 500, 50, 100)

	require.Len(t, chunks, 2)
	assert.Len(t, chunks[1], 500)
}

func TestWindowShortText(t *testing.T) {
	assert.Equal(t, []string{"tiny"}, chunking.Window("tiny", 500, 50, 100))
}

func TestWindowCountsRunes(t *testing.T) {
	text := strings.Repeat("é", 600)

	chunks := chunking.Window(text, 500, 50, 100)

	require.Len(t, chunks, 2)
	assert.Equal(t, 500, utf8.RuneCountInString(chunks[0]))
	assert.Equal(t, 150, utf8.RuneCountInString(chunks[1]))
	assert.True(t, utf8.ValidString(chunks[1]))
}

func TestSlices(t *testing.T) {
	slices := chunking.Slices(strings.Repeat("x", 1700), 800)

	require.Len(t, slices, 3)
	assert.Len(t, slices[2], 100)
	assert.Empty(t, chunking.Slices("", 800))
}

func TestRecursive(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet ", 40)

	chunks, err := chunking.Recursive(text, 100, 10)

	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 100)
	}
}

func TestNew(t *testing.T) {
	split, err := chunking.New(chunking.StrategySentence)
	require.NoError(t, err)
	chunks, err := split("Hello there. General", 500)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello there. General"}, chunks)

	_, err = chunking.New(chunking.StrategyRecursive)
	require.NoError(t, err)

	_, err = chunking.New("paragraph")
	assert.Error(t, err)
}
