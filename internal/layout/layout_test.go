package layout

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewAndEnsure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	l, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	for _, dir := range []string{l.Images, l.Text, l.Responses} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
	// Second call is a no-op.
	if err := l.Ensure(); err != nil {
		t.Fatalf("Ensure (again): %v", err)
	}
	if l.Manifest != filepath.Join(root, "pdf_paths.txt") {
		t.Fatalf("unexpected manifest path %s", l.Manifest)
	}
}

func TestNewRejectsEmptyRoot(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected error for empty root")
	}
}

func TestArtifactNames(t *testing.T) {
	l, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if got := filepath.Base(l.ResponseJSON("Notes_page1")); got != "Notes_page1_claude_response.json" {
		t.Fatalf("unexpected json name %s", got)
	}
	if got := filepath.Base(l.ResponseMarkdown("Notes_page1")); got != "Notes_page1_claude_response.md" {
		t.Fatalf("unexpected markdown name %s", got)
	}
	if got := filepath.Base(l.ErrorRecord("Notes_page1")); got != "Notes_page1_error.txt" {
		t.Fatalf("unexpected error name %s", got)
	}
}

func TestManifestExists(t *testing.T) {
	l, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if l.ManifestExists() {
		t.Fatal("expected no manifest")
	}
	if err := os.WriteFile(l.Manifest, []byte("/tmp/a.pdf\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !l.ManifestExists() {
		t.Fatal("expected manifest")
	}
}
