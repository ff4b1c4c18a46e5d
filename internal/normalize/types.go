package normalize

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/fileutil"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/format"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/textutil"
)

// SourceDocument is one manifest entry.
type SourceDocument struct {
	Path string
	Base string
	Kind format.Kind
}

// NewSourceDocument derives the base name used for every output of path.
func NewSourceDocument(path string) SourceDocument {
	base := fileutil.Stem(path)
	if safe := textutil.SanitizeFileName(base); safe != "" {
		base = safe
	}
	return SourceDocument{Path: path, Base: base, Kind: format.Document}
}

// RasterPage is one rendered page. PageIndex is 1-based.
type RasterPage struct {
	Document  SourceDocument
	PageIndex int
	Path      string
}

// PageFileName names the PNG for page (1-based) of a document with total
// pages. Single-page documents carry no page suffix.
func PageFileName(base string, page, total int) string {
	if total <= 1 {
		return base + ".png"
	}
	return fmt.Sprintf("%s_page%d.png", base, page)
}

// PagePath joins PageFileName with dir.
func PagePath(dir, base string, page, total int) string {
	return filepath.Join(dir, PageFileName(base, page, total))
}

// Inspection is what the structural read of a document reports.
type Inspection struct {
	PageCount int
	// PageSizes holds each page's width and height in points, in page order.
	PageSizes [][2]float64
}

// Renderer rasterizes every page of a document into dir. A renderer either
// produces all pages or returns an error; callers discard partial output.
type Renderer interface {
	Name() string
	Render(ctx context.Context, doc SourceDocument, info Inspection, dir string) ([]RasterPage, error)
}

// Result summarizes one normalization pass.
type Result struct {
	Documents    int
	Rendered     int
	Alternative  int
	Placeholders int
	Missing      int
	Skipped      int
	Failed       int
	Pages        int
	Success      bool
}
