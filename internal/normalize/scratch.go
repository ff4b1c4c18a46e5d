package normalize

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/logging"
)

const scratchMarker = "-render-"

func scratchPattern(base string) string {
	return "." + base + scratchMarker
}

// isScratchDir matches the hidden per-document directories pdftoppm writes
// into before pages are renamed into place.
func isScratchDir(entry os.DirEntry) bool {
	name := entry.Name()
	return entry.IsDir() && strings.HasPrefix(name, ".") && strings.Contains(name, scratchMarker)
}

// SweepResult lists what SweepScratch removed and what it could not.
type SweepResult struct {
	Removed []string
	Errors  []SweepError
}

// SweepError pairs a scratch directory with its removal error.
type SweepError struct {
	Path  string
	Error error
}

// SweepScratch removes render scratch directories left in imagesDir by an
// interrupted run. Callers must hold the output-root lock, so no renderer is
// writing to them.
func SweepScratch(imagesDir string, logger *slog.Logger) SweepResult {
	var result SweepResult
	entries, err := os.ReadDir(imagesDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, SweepError{Path: imagesDir, Error: err})
		}
		return result
	}
	for _, entry := range entries {
		if !isScratchDir(entry) {
			continue
		}
		path := filepath.Join(imagesDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			result.Errors = append(result.Errors, SweepError{Path: path, Error: err})
			logging.WarnWithContext(logger, "failed to remove render scratch directory", "scratch_cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
				logging.String(logging.FieldErrorHint, "check permissions on the images directory"),
			)
			continue
		}
		result.Removed = append(result.Removed, path)
		logger.Info("removed stale render scratch directory",
			logging.String("path", path),
			logging.String(logging.FieldEventType, "scratch_cleanup"),
		)
	}
	return result
}
