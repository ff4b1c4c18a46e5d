package normalize

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/config"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/deps"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/fileutil"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/logging"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/services"
)

const placeholderFormat = "Document content from %s could not be rasterized (%d bytes of binary data).\n"

// Normalizer turns the manifest of acquired documents into page images.
type Normalizer struct {
	primary        Renderer
	alternative    Renderer
	inspect        func(string) (Inspection, error)
	logger         *slog.Logger
	primaryMissing string
}

// Option customizes a Normalizer.
type Option func(*Normalizer)

// WithPrimary replaces the primary renderer. nil marks it unavailable.
func WithPrimary(r Renderer) Option {
	return func(n *Normalizer) {
		n.primary = r
		n.primaryMissing = ""
		if r == nil {
			n.primaryMissing = "primary renderer disabled"
		}
	}
}

// WithAlternative replaces the alternative renderer. nil disables it.
func WithAlternative(r Renderer) Option {
	return func(n *Normalizer) { n.alternative = r }
}

// WithInspector replaces the structural document reader.
func WithInspector(fn func(string) (Inspection, error)) Option {
	return func(n *Normalizer) {
		if fn != nil {
			n.inspect = fn
		}
	}
}

// WithExecutor runs the primary renderer through exec.
func WithExecutor(exec services.Executor) Option {
	return func(n *Normalizer) {
		if p, ok := n.primary.(*PopplerRenderer); ok && exec != nil {
			p.exec = exec
		}
	}
}

// New builds a Normalizer from configuration. The primary renderer binary is
// looked up once here; a missing binary leaves only the alternative.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Normalizer {
	n := &Normalizer{
		inspect: InspectPDF,
		logger:  logging.NewComponentLogger(logger, "normalize"),
	}
	binary := cfg.RendererBinary()
	status := deps.CheckBinaries([]deps.Requirement{{Name: "Renderer", Command: binary}})
	if status[0].Available {
		timeout := time.Duration(cfg.Normalize.TimeoutSeconds) * time.Second
		n.primary = NewPopplerRenderer(binary, cfg.Normalize.Scale, timeout, nil)
	} else {
		n.primaryMissing = deps.Describe(status)
	}
	if cfg.Normalize.AlternativeRenderer {
		n.alternative = NewScanRenderer(cfg.Normalize.Scale)
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Run rasterizes every manifest entry into imagesDir and deletes the
// manifest afterwards. Per-document problems are counted, never returned.
// The returned error is non-nil only when the manifest cannot be read or no
// renderer is available at all; in the latter case placeholders are still
// written.
func (n *Normalizer) Run(ctx context.Context, manifestPath, imagesDir string) (Result, error) {
	logger := logging.WithContext(ctx, n.logger)
	var result Result

	docs, err := readManifest(manifestPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, services.Wrap(services.ErrNotFound, "normalize", "read manifest", manifestPath, err)
		}
		return result, services.Wrap(services.ErrExternalTool, "normalize", "read manifest", manifestPath, err)
	}
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return result, services.Wrap(services.ErrExternalTool, "normalize", "prepare images dir", imagesDir, err)
	}
	SweepScratch(imagesDir, logger)

	var capErr error
	if n.primary == nil {
		logging.WarnWithContext(logger, "primary renderer unavailable", "renderer_unavailable",
			logging.String("detail", n.primaryMissing),
			logging.Bool("alternative_enabled", n.alternative != nil),
			logging.String(logging.FieldImpact, "documents without embedded scans become placeholders"),
			logging.String(logging.FieldErrorHint, "install poppler-utils (pdftoppm) or set normalize.renderer"),
		)
		if n.alternative == nil {
			capErr = services.Wrap(services.ErrCapabilityUnavailable, "normalize", "select renderer", n.primaryMissing, nil)
		}
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Documents++
		n.normalizeDocument(ctx, logger, doc, imagesDir, &result)
	}

	if err := os.Remove(manifestPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(logger, "failed to delete manifest", "manifest_cleanup_failed",
			logging.String("path", manifestPath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the next run will normalize these documents again"),
			logging.String(logging.FieldErrorHint, "remove the manifest manually"),
		)
	}

	result.Success = result.Rendered > 0
	logger.Info("normalization complete",
		logging.String(logging.FieldEventType, "normalize_complete"),
		logging.Int("documents", result.Documents),
		logging.Int("rendered", result.Rendered),
		logging.Int("alternative", result.Alternative),
		logging.Int("placeholders", result.Placeholders),
		logging.Int("missing", result.Missing),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", result.Failed),
		logging.Int("pages", result.Pages),
	)
	return result, capErr
}

func (n *Normalizer) normalizeDocument(ctx context.Context, logger *slog.Logger, doc SourceDocument, imagesDir string, result *Result) {
	logger = logger.With(logging.String(logging.FieldArtifact, doc.Base))

	if _, err := os.Stat(doc.Path); err != nil {
		result.Missing++
		logging.WarnWithContext(logger, "document not found", "document_missing",
			logging.String("path", doc.Path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "document skipped"),
			logging.String(logging.FieldErrorHint, "check the export output"),
		)
		return
	}

	info, err := n.inspect(doc.Path)
	switch {
	case err != nil:
		// The primary renderer may still cope with what the inspector rejects.
		logger.Debug("document inspection failed", logging.String("path", doc.Path), logging.Error(err))
		info = Inspection{}
	case info.PageCount == 0:
		result.Skipped++
		logger.Info("document has no pages", logging.String("path", doc.Path))
		return
	}

	pages, renderer := n.render(ctx, logger, doc, info, imagesDir)
	if len(pages) > 0 {
		result.Rendered++
		result.Pages += len(pages)
		if renderer == n.alternative {
			result.Alternative++
		}
		removeStalePlaceholder(imagesDir, doc.Base)
		logger.Info("document rasterized",
			logging.String(logging.FieldEventType, "document_rendered"),
			logging.String("renderer", renderer.Name()),
			logging.Int("pages", len(pages)),
		)
		return
	}

	if err := writePlaceholder(doc, imagesDir); err != nil {
		result.Failed++
		logging.ErrorWithContext(logger, "document dropped", "document_failed",
			logging.String("path", doc.Path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "no text will be produced for this document"),
			logging.String(logging.FieldErrorHint, "check file permissions"),
		)
		return
	}
	result.Placeholders++
	logging.WarnWithContext(logger, "document replaced by placeholder", "document_placeholder",
		logging.String("path", doc.Path),
		logging.String(logging.FieldImpact, "a placeholder note is sent instead of page text"),
		logging.String(logging.FieldErrorHint, "install pdftoppm or check that the document is a valid PDF"),
	)
}

func (n *Normalizer) render(ctx context.Context, logger *slog.Logger, doc SourceDocument, info Inspection, dir string) ([]RasterPage, Renderer) {
	for _, renderer := range []Renderer{n.primary, n.alternative} {
		if renderer == nil {
			continue
		}
		pages, err := renderer.Render(ctx, doc, info, dir)
		if err == nil && len(pages) > 0 {
			return pages, renderer
		}
		if err == nil {
			err = errors.New("no pages produced")
		}
		logging.WarnWithContext(logger, "renderer failed", "render_failed",
			logging.String("renderer", renderer.Name()),
			logging.String("path", doc.Path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "trying the next fallback"),
			logging.String(logging.FieldErrorHint, "inspect the document with pdfinfo"),
		)
	}
	return nil, nil
}

func writePlaceholder(doc SourceDocument, dir string) error {
	data, err := os.ReadFile(doc.Path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	body := fmt.Sprintf(placeholderFormat, doc.Path, len(data))
	return fileutil.WriteFile(filepath.Join(dir, doc.Base+".txt"), []byte(body))
}

func removeStalePlaceholder(dir, base string) {
	_ = os.Remove(filepath.Join(dir, base+".txt"))
}

// readManifest parses one path per line. Relative entries resolve against
// the manifest's directory.
func readManifest(path string) ([]SourceDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	root := filepath.Dir(path)
	var docs []SourceDocument
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(root, line)
		}
		docs = append(docs, NewSourceDocument(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}
