// Package chunking splits extracted document text into the pieces that get embedded.
//
// All lengths are counted in runes so that multi-byte text is never cut mid-character.
package chunking

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultSize       = 500
	DefaultOverlap    = 50
	DefaultMinWindow  = 100
	AnalyzeSliceSize  = 800
	sentenceSeparator = ". "
)

// Strategy names accepted by New.
const (
	StrategySentence  = "sentence"
	StrategyRecursive = "recursive"
)

// Func splits text into chunks of at most size runes (best effort for sentence splitting).
type Func func(text string, size int) ([]string, error)

// New returns the chunking function for a strategy name.
func New(strategy string) (Func, error) {
	switch strategy {
	case "", StrategySentence:
		return func(text string, size int) ([]string, error) {
			return Sentences(text, size), nil
		}, nil
	case StrategyRecursive:
		return func(text string, size int) ([]string, error) {
			return Recursive(text, size, size/10)
		}, nil
	default:
		return nil, fmt.Errorf("unknown chunking strategy %q", strategy)
	}
}

// Sentences groups ". "-separated sentences into chunks whose summed sentence length stays within
// maxLen. A sentence longer than maxLen becomes a chunk of its own.
func Sentences(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultSize
	}
	if utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var (
		chunks  []string
		current []string
		length  int
	)
	for _, sentence := range strings.Split(text, sentenceSeparator) {
		sentence = strings.TrimSpace(sentence)
		if !strings.HasSuffix(sentence, ".") {
			sentence += "."
		}
		n := utf8.RuneCountInString(sentence)
		if length+n <= maxLen {
			current = append(current, sentence)
			length += n
			continue
		}
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
		}
		current = []string{sentence}
		length = n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// Window cuts text into overlapping windows of size runes starting every size-overlap runes.
// Windows shorter than min are dropped.
func Window(text string, size, overlap, min int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}
	step := size - overlap
	if step <= 0 {
		step = 1
	}

	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		if end-i >= min {
			chunks = append(chunks, string(runes[i:end]))
		}
	}
	return chunks
}

// Slices cuts text into consecutive non-overlapping pieces of n runes.
func Slices(text string, n int) []string {
	if n <= 0 {
		n = AnalyzeSliceSize
	}
	runes := []rune(text)
	var out []string
	for i := 0; i < len(runes); i += n {
		end := i + n
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// Recursive splits on paragraph, line and word boundaries using langchaingo's recursive splitter.
func Recursive(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}
	return chunks, nil
}
