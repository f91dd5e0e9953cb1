// Package extract turns uploaded files into referenced text sections, with OCR for scanned pages and images.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"docresearch/src/core/research"
)

var _ research.TextAnalyzer = (*Registry)(nil)

type extractFunc func(ctx context.Context, path string) ([]research.Section, error)

// Registry dispatches extraction on the lowercase file extension.
type Registry struct {
	byExt map[string]extractFunc
}

// New builds the registry. ocr and renderer may be nil: without ocr, image files are unsupported and
// blank PDF pages are skipped.
func New(ocr OCR, renderer PageRenderer) *Registry {
	pdf := &pdfExtractor{readPages: readPDFPages, renderer: renderer, ocr: ocr}

	r := &Registry{byExt: map[string]extractFunc{
		".pdf":  pdf.extract,
		".docx": extractDocx,
		".doc":  extractDocx,
		".txt":  extractText,
		".html": extractHTML,
		".htm":  extractHTML,
	}}
	if ocr != nil {
		img := &imageExtractor{ocr: ocr}
		for _, ext := range []string{".png", ".jpg", ".jpeg", ".bmp", ".tiff"} {
			r.byExt[ext] = img.extract
		}
	}
	return r
}

// Supports reports whether filename has an extension the registry can read.
func (r *Registry) Supports(filename string) bool {
	_, ok := r.byExt[ext(filename)]
	return ok
}

// Extensions lists the supported extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for e := range r.byExt {
		exts = append(exts, e)
	}
	sort.Strings(exts)
	return exts
}

func (r *Registry) Extract(ctx context.Context, filename, path string) ([]research.Section, error) {
	fn, ok := r.byExt[ext(filename)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", research.ErrUnsupportedFileType, filename)
	}
	return fn(ctx, path)
}

// AnalyzeText returns the whole text of a document with sections separated by blank lines.
func (r *Registry) AnalyzeText(ctx context.Context, filename, path string) (string, error) {
	sections, err := r.Extract(ctx, filename, path)
	if err != nil {
		return "", err
	}
	return research.JoinSections(sections), nil
}

func ext(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
