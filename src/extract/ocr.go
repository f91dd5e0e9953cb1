package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// OCR recognizes the text of an image file.
type OCR interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// PageRenderer rasterizes one PDF page (1-based) into a PNG inside dir and returns its path.
type PageRenderer interface {
	RenderPage(ctx context.Context, pdfPath string, page int, dir string) (string, error)
}

// Tesseract runs the tesseract command line tool.
type Tesseract struct {
	Path     string
	Language string
}

func NewTesseract(path, language string) *Tesseract {
	if path == "" {
		path = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	return &Tesseract{Path: path, Language: language}
}

func (t *Tesseract) args(imagePath string) []string {
	return []string{imagePath, "stdout", "-l", t.Language}
}

func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (string, error) {
	out, err := run(ctx, t.Path, t.args(imagePath)...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Ping checks that the binary can be found.
func (t *Tesseract) Ping(context.Context) error {
	_, err := exec.LookPath(t.Path)
	return err
}

// Pdftoppm renders PDF pages with poppler's pdftoppm.
type Pdftoppm struct {
	Path string
	DPI  int
}

func NewPdftoppm(path string, dpi int) *Pdftoppm {
	if path == "" {
		path = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 300
	}
	return &Pdftoppm{Path: path, DPI: dpi}
}

func (p *Pdftoppm) args(pdfPath string, page int, prefix string) []string {
	n := strconv.Itoa(page)
	return []string{"-singlefile", "-png", "-r", strconv.Itoa(p.DPI), "-f", n, "-l", n, pdfPath, prefix}
}

func (p *Pdftoppm) RenderPage(ctx context.Context, pdfPath string, page int, dir string) (string, error) {
	prefix := filepath.Join(dir, fmt.Sprintf("page-%d", page))
	if _, err := run(ctx, p.Path, p.args(pdfPath, page, prefix)...); err != nil {
		return "", fmt.Errorf("pdftoppm: %w", err)
	}

	out := prefix + ".png"
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("pdftoppm produced no image for page %d: %w", page, err)
	}
	return out, nil
}

func run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}
	return out, nil
}
