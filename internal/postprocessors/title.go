package postprocessors

import (
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// TitlePrefixer prepends the document title to every chunk so title
// context survives chunk boundaries. It runs last.
type TitlePrefixer struct {
	title string
}

// Verify interface compliance
var _ driven.PostProcessor = (*TitlePrefixer)(nil)

// NewTitlePrefixer creates a prefixer for one document title.
func NewTitlePrefixer(title string) *TitlePrefixer {
	return &TitlePrefixer{title: title}
}

// Process prefixes each chunk's content with the title.
func (t *TitlePrefixer) Process(chunks []driven.Chunk) []driven.Chunk {
	if t.title == "" {
		return chunks
	}
	result := make([]driven.Chunk, len(chunks))
	for i, chunk := range chunks {
		chunk.Content = t.title + "\n\n" + chunk.Content
		result[i] = chunk
	}
	return result
}

// Name returns the processor name.
func (t *TitlePrefixer) Name() string {
	return "title-prefixer"
}

// Order returns 20.
func (t *TitlePrefixer) Order() int {
	return 20
}
