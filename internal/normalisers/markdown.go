package normalisers

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// MarkdownNormaliser renders Markdown to plain text: markup is dropped,
// text, link labels, image alt text and code are kept, and blocks are
// separated by blank lines.
type MarkdownNormaliser struct {
	md goldmark.Markdown
}

// NewMarkdownNormaliser creates a normaliser that understands GFM.
func NewMarkdownNormaliser() *MarkdownNormaliser {
	return &MarkdownNormaliser{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (n *MarkdownNormaliser) Normalise(content string, mimeType string) string {
	return markdownToText(n.md, content)
}

func (n *MarkdownNormaliser) SupportedTypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

func (n *MarkdownNormaliser) Priority() int {
	return 50
}

func markdownToText(md goldmark.Markdown, content string) string {
	src := []byte(content)
	doc := md.Parser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := node.(type) {
		case *ast.Text:
			if entering {
				buf.Write(n.Segment.Value(src))
				if n.SoftLineBreak() || n.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
			return ast.WalkContinue, nil
		case *ast.String:
			if entering {
				buf.Write(n.Value)
			}
			return ast.WalkContinue, nil
		case *ast.AutoLink:
			if entering {
				buf.Write(n.Label(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := node.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					buf.Write(seg.Value(src))
				}
				buf.WriteString("\n")
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}

		if !entering && node.Type() == ast.TypeBlock && node.Kind() != ast.KindDocument {
			buf.WriteString("\n\n")
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(buf.String())
}
