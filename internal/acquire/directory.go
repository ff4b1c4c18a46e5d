package acquire

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/fileutil"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/format"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/layout"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/logging"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/services"
)

// DirectoryExporter imports documents from a local directory instead of a
// notes application. Images are copied into images/; other documents are
// listed in the manifest for the normalizer. The folder argument selects a
// sub-directory of the source.
type DirectoryExporter struct {
	sourceDir  string
	imageTypes []string
	logger     *slog.Logger
}

// NewDirectoryExporter builds a DirectoryExporter.
func NewDirectoryExporter(sourceDir string, imageTypes []string, opts ...Option) *DirectoryExporter {
	o := buildOptions(opts)
	return &DirectoryExporter{
		sourceDir:  strings.TrimSpace(sourceDir),
		imageTypes: imageTypes,
		logger:     o.logger,
	}
}

// Export copies images and writes the manifest. An empty source is not an
// error; it simply yields nothing downstream.
func (e *DirectoryExporter) Export(ctx context.Context, targetDir, folder string) error {
	dir := e.sourceDir
	if folder = strings.TrimSpace(folder); folder != "" {
		dir = filepath.Join(dir, folder)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "acquire", "read source", dir, err)
		}
		return services.Wrap(services.ErrExternalTool, "acquire", "read source", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	out, err := layout.New(targetDir)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "acquire", "resolve layout", "", err)
	}
	if err := out.Ensure(); err != nil {
		return services.Wrap(services.ErrExternalTool, "acquire", "prepare output", "", err)
	}

	var documents []string
	var images int
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		src := filepath.Join(dir, entry.Name())
		switch format.Classify(src, e.imageTypes) {
		case format.Image:
			dst := filepath.Join(out.Images, entry.Name())
			if err := fileutil.CopyFileVerified(src, dst); err != nil {
				return services.Wrap(services.ErrExternalTool, "acquire", "copy image", entry.Name(), err)
			}
			images++
		case format.Document:
			abs, err := filepath.Abs(src)
			if err != nil {
				return services.Wrap(services.ErrExternalTool, "acquire", "resolve document", entry.Name(), err)
			}
			documents = append(documents, abs)
		default:
			e.logger.Debug("skipping unsupported file", logging.String("path", src))
		}
	}

	if len(documents) > 0 {
		manifest := strings.Join(documents, "\n") + "\n"
		if err := fileutil.WriteFile(out.Manifest, []byte(manifest)); err != nil {
			return services.Wrap(services.ErrExternalTool, "acquire", "write manifest", "", err)
		}
	}

	e.logger.Info("documents imported",
		logging.String(logging.FieldEventType, "export_complete"),
		logging.String("source_dir", dir),
		logging.Int("images", images),
		logging.Int("documents", len(documents)),
	)
	if images == 0 && len(documents) == 0 {
		logging.WarnWithContext(e.logger, "source directory contained no documents", "export_empty",
			logging.String("source_dir", dir),
			logging.String(logging.FieldImpact, "later stages have nothing to process"),
			logging.String(logging.FieldErrorHint, fmt.Sprintf("place PDFs or images in %s", dir)),
		)
	}
	return nil
}
