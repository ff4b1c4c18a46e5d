package normalize_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/logging"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/normalize"
)

func TestSweepScratchRemovesOnlyRenderDirs(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, ".Notes-render-12345")
	keep := filepath.Join(dir, "album")
	for _, d := range []string{stale, keep} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	page := filepath.Join(dir, "Notes_page1.png")
	if err := os.WriteFile(page, []byte("png"), 0o644); err != nil {
		t.Fatalf("write page: %v", err)
	}

	result := normalize.SweepScratch(dir, logging.NewNop())
	if len(result.Removed) != 1 || result.Removed[0] != stale || len(result.Errors) != 0 {
		t.Fatalf("unexpected sweep result %+v", result)
	}
	for _, path := range []string{keep, page} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to survive: %v", path, err)
		}
	}
}

func TestSweepScratchMissingDir(t *testing.T) {
	result := normalize.SweepScratch(filepath.Join(t.TempDir(), "absent"), logging.NewNop())
	if len(result.Removed) != 0 || len(result.Errors) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}
