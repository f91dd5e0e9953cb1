package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"docresearch/src/core/research"
	"docresearch/src/log"
)

type pdfExtractor struct {
	readPages func(path string) ([]string, error)
	renderer  PageRenderer
	ocr       OCR
}

func (e *pdfExtractor) extract(ctx context.Context, path string) ([]research.Section, error) {
	pages, err := e.readPages(path)
	if err != nil {
		return nil, err
	}

	var (
		sections []research.Section
		tmpDir   string
	)
	defer func() {
		if tmpDir != "" {
			_ = os.RemoveAll(tmpDir)
		}
	}()

	for i, text := range pages {
		page := i + 1
		if text = strings.TrimSpace(text); text != "" {
			sections = append(sections, research.Section{Text: text, Ref: fmt.Sprintf("page-%d", page)})
			continue
		}
		if e.ocr == nil || e.renderer == nil {
			continue
		}

		if tmpDir == "" {
			if tmpDir, err = os.MkdirTemp("", "pdf-ocr-"); err != nil {
				return nil, fmt.Errorf("failed to create render directory: %w", err)
			}
		}
		ocrText, err := e.ocrPage(ctx, path, page, tmpDir)
		if err != nil {
			log.Error(err, "skipping pdf page", "page", page)
			continue
		}
		if ocrText != "" {
			sections = append(sections, research.Section{Text: ocrText, Ref: fmt.Sprintf("page-%d-ocr", page)})
		}
	}
	return sections, nil
}

func (e *pdfExtractor) ocrPage(ctx context.Context, path string, page int, dir string) (string, error) {
	log.Debug("running OCR on blank pdf page", "page", page)
	img, err := e.renderer.RenderPage(ctx, path, page, dir)
	if err != nil {
		return "", err
	}
	defer os.Remove(img)

	text, err := e.ocr.Recognize(ctx, img)
	if err != nil {
		return "", fmt.Errorf("failed to OCR page %d: %w", page, err)
	}
	return strings.TrimSpace(text), nil
}

// readPDFPages returns the plain text of every page; pages without content yield "".
func readPDFPages(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	pages := make([]string, r.NumPage())
	for i := range pages {
		p := r.Page(i + 1)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			log.Info("failed to read pdf page text", "page", i+1, "error", err.Error())
			continue
		}
		pages[i] = text
	}
	return pages, nil
}
