package normalisers

import (
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// HTMLNormaliser converts HTML to Markdown, then renders that to plain text
// the same way the Markdown normaliser does.
type HTMLNormaliser struct {
	md goldmark.Markdown
}

// NewHTMLNormaliser creates a new HTML normaliser.
func NewHTMLNormaliser() *HTMLNormaliser {
	return &HTMLNormaliser{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (n *HTMLNormaliser) Normalise(content string, mimeType string) string {
	markdown, err := htmltomarkdown.ConvertString(content)
	if err != nil {
		// Unparseable markup still carries text worth indexing
		return strings.TrimSpace(content)
	}
	return markdownToText(n.md, markdown)
}

func (n *HTMLNormaliser) SupportedTypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

func (n *HTMLNormaliser) Priority() int {
	return 50
}
