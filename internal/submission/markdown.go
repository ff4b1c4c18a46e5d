package submission

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdownParser = goldmark.New().Parser()

// unwrapMarkdownFence returns the body of a reply that consists of a single
// ```markdown (or ```md) fenced block. Anything else is returned unchanged.
func unwrapMarkdownFence(content string) string {
	src := []byte(content)
	doc := markdownParser.Parse(text.NewReader(src))
	block, ok := doc.FirstChild().(*ast.FencedCodeBlock)
	if !ok || block.NextSibling() != nil {
		return content
	}
	switch strings.ToLower(string(block.Language(src))) {
	case "markdown", "md":
	default:
		return content
	}
	var buf bytes.Buffer
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		buf.Write(segment.Value(src))
	}
	return buf.String()
}
