package extract

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	docx "github.com/fumiama/go-docx"

	"docresearch/src/core/research"
)

var blankLines = regexp.MustCompile(`\n\s*\n`)

func extractDocx(_ context.Context, path string) ([]research.Section, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat document: %w", err)
	}

	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		if errors.Is(err, zip.ErrFormat) {
			return nil, fmt.Errorf("%w: not an OOXML document", research.ErrUnsupportedFileType)
		}
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	var sections []research.Section
	for _, p := range blankLines.Split(strings.Join(blockTexts(doc.Document.Body.Items), "\n\n"), -1) {
		if p = strings.TrimSpace(p); p != "" {
			sections = append(sections, research.Section{Text: p, Ref: fmt.Sprintf("para-%d", len(sections)+1)})
		}
	}
	return sections, nil
}

// blockTexts returns the text of every body paragraph and table cell paragraph in document order.
func blockTexts(items []interface{}) []string {
	var out []string
	for _, item := range items {
		switch it := item.(type) {
		case *docx.Paragraph:
			out = append(out, paragraphText(it))
		case *docx.Table:
			out = append(out, tableTexts(it)...)
		}
	}
	return out
}

func tableTexts(t *docx.Table) []string {
	var out []string
	for _, row := range t.TableRows {
		for _, cell := range row.TableCells {
			for _, p := range cell.Paragraphs {
				out = append(out, paragraphText(p))
			}
			for _, nested := range cell.Tables {
				out = append(out, tableTexts(nested)...)
			}
		}
	}
	return out
}

// paragraphText keeps run text, tabs and line breaks. Drawings and text boxes are skipped.
func paragraphText(p *docx.Paragraph) string {
	var sb strings.Builder
	for _, child := range p.Children {
		switch c := child.(type) {
		case *docx.Run:
			writeRun(&sb, c)
		case *docx.Hyperlink:
			writeRun(&sb, &c.Run)
		}
	}
	return sb.String()
}

func writeRun(sb *strings.Builder, r *docx.Run) {
	for _, child := range r.Children {
		switch c := child.(type) {
		case *docx.Text:
			sb.WriteString(c.Text)
		case *docx.Tab:
			sb.WriteByte('\t')
		case *docx.BarterRabbet:
			sb.WriteByte('\n')
		}
	}
}
