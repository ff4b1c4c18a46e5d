package format

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClassifyByExtension(t *testing.T) {
	tests := map[string]Kind{
		"scan.PNG":   Image,
		"scan.jpeg":  Image,
		"scan.tiff":  Image,
		"Notes.pdf":  Document,
		"Notes.PDF":  Document,
		"readme.txt": Unknown,
	}
	dir := t.TempDir()
	for name, want := range tests {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("plain"), 0o644); err != nil {
			t.Fatal(err)
		}
		if got := Classify(path, nil); got != want {
			t.Fatalf("Classify(%s) = %v, want %v", name, got, want)
		}
	}
}

func TestClassifySniffsContent(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "export")
	if err := os.WriteFile(pdf, []byte("%PDF-1.7\n..."), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := Classify(pdf, nil); got != Document {
		t.Fatalf("expected document, got %v", got)
	}
	png := filepath.Join(dir, "attachment.bin")
	if err := os.WriteFile(png, []byte("\x89PNG\r\n\x1a\nrest"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := Classify(png, nil); got != Image {
		t.Fatalf("expected image, got %v", got)
	}
	if got := Classify(filepath.Join(dir, "missing"), nil); got != Unknown {
		t.Fatalf("expected unknown for missing file, got %v", got)
	}
}

func TestClassifyRespectsConfiguredExts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.tif")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := Classify(path, []string{".png"}); got != Unknown {
		t.Fatalf("expected unknown when .tif not configured, got %v", got)
	}
}
