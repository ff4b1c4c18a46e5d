package normalize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/fileutil"
)

var disableConfigDir sync.Once

func readPDF(path string) (*model.Context, error) {
	// pdfcpu otherwise writes a config.yml under the user config dir.
	disableConfigDir.Do(api.DisableConfigDir)

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return ctx, nil
}

// InspectPDF reads page count and page sizes.
func InspectPDF(path string) (Inspection, error) {
	ctx, err := readPDF(path)
	if err != nil {
		return Inspection{}, err
	}
	info := Inspection{PageCount: ctx.PageCount}
	if ctx.PageCount == 0 {
		return info, nil
	}
	dims, err := ctx.PageDims()
	if err != nil {
		return Inspection{}, fmt.Errorf("pdfcpu page dims: %w", err)
	}
	for _, d := range dims {
		info.PageSizes = append(info.PageSizes, [2]float64{d.Width, d.Height})
	}
	return info, nil
}

// ScanRenderer rasterizes scanned documents without an external tool: each
// page's largest embedded image is decoded and resampled to the page's
// raster size. Pages without an embedded image fail the whole document.
type ScanRenderer struct {
	scale int
}

// NewScanRenderer builds the alternative renderer.
func NewScanRenderer(scale int) *ScanRenderer {
	if scale <= 0 {
		scale = 2
	}
	return &ScanRenderer{scale: scale}
}

func (r *ScanRenderer) Name() string { return "pdfcpu" }

func (r *ScanRenderer) Render(ctx context.Context, doc SourceDocument, _ Inspection, dir string) ([]RasterPage, error) {
	pdf, err := readPDF(doc.Path)
	if err != nil {
		return nil, err
	}
	total := pdf.PageCount
	if total == 0 {
		return nil, errors.New("document has no pages")
	}
	dims, err := pdf.PageDims()
	if err != nil {
		return nil, fmt.Errorf("pdfcpu page dims: %w", err)
	}
	if len(dims) != total {
		return nil, fmt.Errorf("page dims cover %d of %d pages", len(dims), total)
	}

	encoded := make([][]byte, 0, total)
	for pageNr := 1; pageNr <= total; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := largestPageImage(pdf, pageNr)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pageNr, err)
		}
		dim := dims[pageNr-1]
		w, h := int(dim.Width*float64(r.scale)+0.5), int(dim.Height*float64(r.scale)+0.5)
		if w <= 0 || h <= 0 {
			w, h = src.Bounds().Dx(), src.Bounds().Dy()
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

		var buf bytes.Buffer
		if err := png.Encode(&buf, dst); err != nil {
			return nil, fmt.Errorf("page %d: encode png: %w", pageNr, err)
		}
		encoded = append(encoded, buf.Bytes())
	}

	pages := make([]RasterPage, 0, total)
	for i, data := range encoded {
		path := PagePath(dir, doc.Base, i+1, total)
		if err := fileutil.WriteFile(path, data); err != nil {
			for _, page := range pages {
				_ = os.Remove(page.Path)
			}
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		pages = append(pages, RasterPage{Document: doc, PageIndex: i + 1, Path: path})
	}
	return pages, nil
}

func largestPageImage(pdf *model.Context, pageNr int) (image.Image, error) {
	images, err := pdfcpu.ExtractPageImages(pdf, pageNr, false)
	if err != nil {
		return nil, fmt.Errorf("extract images: %w", err)
	}
	var best image.Image
	var bestArea int
	var lastErr error
	for _, embedded := range images {
		if embedded.Reader == nil {
			continue
		}
		img, _, err := image.Decode(embedded.Reader)
		if err != nil {
			lastErr = fmt.Errorf("decode %s image: %w", embedded.FileType, err)
			continue
		}
		if area := img.Bounds().Dx() * img.Bounds().Dy(); area > bestArea {
			best, bestArea = img, area
		}
	}
	if best != nil {
		return best, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("no embedded page image")
}
