package extract

import (
	"context"
	"strings"

	"docresearch/src/core/research"
)

type imageExtractor struct {
	ocr OCR
}

func (e *imageExtractor) extract(ctx context.Context, path string) ([]research.Section, error) {
	text, err := e.ocr.Recognize(ctx, path)
	if err != nil {
		return nil, err
	}
	if text = strings.TrimSpace(text); text == "" {
		return nil, nil
	}
	return []research.Section{{Text: text, Ref: "image-ocr"}}, nil
}
