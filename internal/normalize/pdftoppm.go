package normalize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/services"
)

// PopplerRenderer shells out to pdftoppm once per document and renames the
// numbered output into the layout's naming scheme.
type PopplerRenderer struct {
	binary  string
	scale   int
	timeout time.Duration
	exec    services.Executor
}

// NewPopplerRenderer builds the primary renderer. scale is the linear factor
// over 72 dpi.
func NewPopplerRenderer(binary string, scale int, timeout time.Duration, exec services.Executor) *PopplerRenderer {
	if scale <= 0 {
		scale = 2
	}
	if exec == nil {
		exec = services.CommandExecutor{}
	}
	return &PopplerRenderer{binary: binary, scale: scale, timeout: timeout, exec: exec}
}

func (r *PopplerRenderer) Name() string { return "pdftoppm" }

func (r *PopplerRenderer) Render(ctx context.Context, doc SourceDocument, info Inspection, dir string) ([]RasterPage, error) {
	scratch, err := os.MkdirTemp(dir, scratchPattern(doc.Base))
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	args := []string{"-r", strconv.Itoa(72 * r.scale), "-png", doc.Path, filepath.Join(scratch, "page")}
	if err := r.exec.Run(runCtx, r.binary, args, nil); err != nil {
		return nil, err
	}

	rendered, err := collectNumbered(scratch, "page-", ".png")
	if err != nil {
		return nil, err
	}
	if len(rendered) == 0 {
		return nil, fmt.Errorf("%s produced no pages", r.binary)
	}
	if info.PageCount > 0 && len(rendered) != info.PageCount {
		return nil, fmt.Errorf("%s produced %d of %d pages", r.binary, len(rendered), info.PageCount)
	}

	total := len(rendered)
	pages := make([]RasterPage, 0, total)
	for i, src := range rendered {
		dst := PagePath(dir, doc.Base, i+1, total)
		if err := os.Rename(src, dst); err != nil {
			for _, page := range pages {
				_ = os.Remove(page.Path)
			}
			return nil, fmt.Errorf("move page %d: %w", i+1, err)
		}
		pages = append(pages, RasterPage{Document: doc, PageIndex: i + 1, Path: dst})
	}
	return pages, nil
}

// collectNumbered lists prefix-N.ext files in dir ordered by N. pdftoppm
// zero-pads N to the width of the page count, so lexical order is not enough.
func collectNumbered(dir, prefix, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type numbered struct {
		n    int
		path string
	}
	var found []numbered
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ext))
		if err != nil {
			continue
		}
		found = append(found, numbered{n: n, path: filepath.Join(dir, name)})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.path
	}
	return paths, nil
}
