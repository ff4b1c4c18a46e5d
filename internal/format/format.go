// Package format classifies acquired files as raster images or documents
// that need rasterizing.
package format

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Kind tags a source file.
type Kind int

const (
	Unknown Kind = iota
	Image
	Document
)

func (k Kind) String() string {
	switch k {
	case Image:
		return "image"
	case Document:
		return "document"
	default:
		return "unknown"
	}
}

// DefaultImageExts are the raster formats the recognition engine accepts.
var DefaultImageExts = []string{".png", ".jpg", ".jpeg", ".tif", ".tiff"}

var signatures = []struct {
	magic []byte
	kind  Kind
}{
	{[]byte("%PDF-"), Document},
	{[]byte("\x89PNG\r\n\x1a\n"), Image},
	{[]byte("\xff\xd8\xff"), Image},
	{[]byte("II*\x00"), Image},
	{[]byte("MM\x00*"), Image},
}

// Classify decides by extension first and falls back to the leading bytes
// for files with unfamiliar or missing extensions.
func Classify(path string, imageExts []string) Kind {
	if len(imageExts) == 0 {
		imageExts = DefaultImageExts
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range imageExts {
		if ext == candidate {
			return Image
		}
	}
	if ext == ".pdf" {
		return Document
	}
	return sniff(path)
}

func sniff(path string) Kind {
	f, err := os.Open(path)
	if err != nil {
		return Unknown
	}
	defer f.Close()
	head := make([]byte, 8)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return Unknown
	}
	head = head[:n]
	for _, sig := range signatures {
		if bytes.HasPrefix(head, sig.magic) {
			return sig.kind
		}
	}
	return Unknown
}
