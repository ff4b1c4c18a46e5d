package recognition_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ocasazza/apple-notes-ocr-flow/internal/config"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/recognition"
	"github.com/ocasazza/apple-notes-ocr-flow/internal/services"
)

type stubEngine struct {
	texts map[string]string
	fail  map[string]bool
	calls []string
}

func (s *stubEngine) Name() string { return "stub" }

func (s *stubEngine) Recognize(_ context.Context, imagePath string) (string, error) {
	name := filepath.Base(imagePath)
	s.calls = append(s.calls, name)
	if s.fail[name] {
		return "", errors.New("engine crashed")
	}
	return s.texts[name], nil
}

type recordingExecutor struct {
	binary string
	args   []string
	out    []string
}

func (e *recordingExecutor) Run(_ context.Context, binary string, args []string, onStdout func(string)) error {
	e.binary = binary
	e.args = append([]string(nil), args...)
	for _, line := range e.out {
		onStdout(line)
	}
	return nil
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func newRunner(opts ...recognition.Option) *recognition.Runner {
	cfg := config.Default()
	return recognition.New(&cfg, nil, opts...)
}

func TestRunRecognizesPagesAndCopiesPlaceholders(t *testing.T) {
	root := t.TempDir()
	images := filepath.Join(root, "images")
	text := filepath.Join(root, "text")
	for _, name := range []string{"Notes_page1.png", "Notes_page2.png", "Notes_page3.png"} {
		writeFile(t, filepath.Join(images, name), "png")
	}
	writeFile(t, filepath.Join(images, "Broken.txt"), "placeholder body")
	writeFile(t, filepath.Join(images, "ignored.md"), "# no")

	engine := &stubEngine{texts: map[string]string{
		"Notes_page1.png": "Café  \r\nline two",
		"Notes_page2.png": "two",
		"Notes_page3.png": "three",
	}}
	result, err := newRunner(recognition.WithEngine(engine)).Run(context.Background(), images, text)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !result.Success || result.Recognized != 3 || result.Copied != 1 || len(result.Artifacts) != 4 {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := readFile(t, filepath.Join(text, "Notes_page1.txt")); got != "Café\nline two\n" {
		t.Fatalf("unexpected normalized text %q", got)
	}
	if got := readFile(t, filepath.Join(text, "Broken.txt")); got != "placeholder body" {
		t.Fatalf("placeholder altered: %q", got)
	}
	if len(engine.calls) != 3 {
		t.Fatalf("expected one attempt per page, got %v", engine.calls)
	}
}

func TestRunContinuesAfterPageFailure(t *testing.T) {
	root := t.TempDir()
	images := filepath.Join(root, "images")
	writeFile(t, filepath.Join(images, "a.png"), "png")
	writeFile(t, filepath.Join(images, "b.jpg"), "jpg")

	engine := &stubEngine{texts: map[string]string{"b.jpg": "ok"}, fail: map[string]bool{"a.png": true}}
	result, err := newRunner(recognition.WithEngine(engine)).Run(context.Background(), images, filepath.Join(root, "text"))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Failed != 1 || result.Recognized != 1 || !result.Success {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := os.Stat(filepath.Join(root, "text", "a.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected no artifact for failed page, got %v", err)
	}
}

func TestRunWithoutInputs(t *testing.T) {
	root := t.TempDir()
	engine := &stubEngine{}
	result, err := newRunner(recognition.WithEngine(engine)).Run(context.Background(), filepath.Join(root, "images"), filepath.Join(root, "text"))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Success {
		t.Fatalf("expected Success=false without inputs, got %+v", result)
	}
}

func TestRunWithoutEngineStillCopiesPlaceholders(t *testing.T) {
	root := t.TempDir()
	images := filepath.Join(root, "images")
	writeFile(t, filepath.Join(images, "page.png"), "png")
	writeFile(t, filepath.Join(images, "Doc.txt"), "placeholder")

	result, err := newRunner(recognition.WithEngine(nil)).Run(context.Background(), images, filepath.Join(root, "text"))
	if !errors.Is(err, services.ErrCapabilityUnavailable) {
		t.Fatalf("expected capability error, got %v", err)
	}
	if result.Copied != 1 || !result.Success || result.Failed != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestTesseractEngineArguments(t *testing.T) {
	exec := &recordingExecutor{out: []string{"hello", "world"}}
	profile := recognition.Profile{Name: "default", Languages: []string{"eng", "deu"}, PageSegMode: 6}
	engine := recognition.NewTesseractEngine("tesseract", profile, time.Minute, exec)

	text, err := engine.Recognize(context.Background(), "/tmp/page.png")
	if err != nil {
		t.Fatalf("Recognize returned error: %v", err)
	}
	if text != "hello\nworld\n" {
		t.Fatalf("unexpected text %q", text)
	}
	want := "/tmp/page.png stdout -l eng+deu --psm 6"
	if got := strings.Join(exec.args, " "); got != want {
		t.Fatalf("unexpected args %q", got)
	}
}

func TestResolveProfile(t *testing.T) {
	cfg := config.Default().Recognition
	profile, err := recognition.ResolveProfile(cfg)
	if err != nil {
		t.Fatalf("ResolveProfile returned error: %v", err)
	}
	if profile.PageSegMode != cfg.PageSegMode || strings.Join(profile.Languages, "+") != "eng" {
		t.Fatalf("unexpected default profile %+v", profile)
	}

	cfg.Profile = "sparse"
	if profile, _ = recognition.ResolveProfile(cfg); profile.PageSegMode != 11 {
		t.Fatalf("expected sparse psm 11, got %d", profile.PageSegMode)
	}

	cfg.Profile = "mystery"
	if _, err := recognition.ResolveProfile(cfg); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
