// Package layout fixes where each pipeline stage reads and writes beneath the
// output root. The three stage directories are disjoint.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	ImagesDirName    = "images"
	TextDirName      = "text"
	ResponsesDirName = "claude_responses"
	ManifestName     = "pdf_paths.txt"
	LockName         = ".notesflow.lock"

	responseJSONSuffix     = "_claude_response.json"
	responseMarkdownSuffix = "_claude_response.md"
	errorRecordSuffix      = "_error.txt"
)

// Layout holds the resolved output locations for one run.
type Layout struct {
	Root      string
	Images    string
	Text      string
	Responses string
	Manifest  string
	Lock      string
}

// New resolves the layout beneath root without touching the filesystem.
func New(root string) (Layout, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return Layout{}, errors.New("layout: output root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, fmt.Errorf("layout: resolve %q: %w", root, err)
	}
	return Layout{
		Root:      abs,
		Images:    filepath.Join(abs, ImagesDirName),
		Text:      filepath.Join(abs, TextDirName),
		Responses: filepath.Join(abs, ResponsesDirName),
		Manifest:  filepath.Join(abs, ManifestName),
		Lock:      filepath.Join(abs, LockName),
	}, nil
}

// Ensure creates the root and the three stage directories. Existing
// directories are left as they are.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.Root, l.Images, l.Text, l.Responses} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ManifestExists reports whether acquisition left a document manifest.
func (l Layout) ManifestExists() bool {
	info, err := os.Stat(l.Manifest)
	return err == nil && info.Mode().IsRegular()
}

// ResponseJSON is the raw model payload for the artifact base name.
func (l Layout) ResponseJSON(base string) string {
	return filepath.Join(l.Responses, base+responseJSONSuffix)
}

// ResponseMarkdown is the extracted markdown for the artifact base name.
func (l Layout) ResponseMarkdown(base string) string {
	return filepath.Join(l.Responses, base+responseMarkdownSuffix)
}

// ErrorRecord is the diagnostic file for the artifact base name.
func (l Layout) ErrorRecord(base string) string {
	return filepath.Join(l.Responses, base+errorRecordSuffix)
}
