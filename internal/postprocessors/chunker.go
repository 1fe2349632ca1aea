package postprocessors

import (
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// lookback is how far before the size limit the chunker searches for a
// natural break.
const lookback = 100

// ChunkConfig configures the chunker behavior.
type ChunkConfig struct {
	// MaxChunkSize is the maximum characters (runes) per chunk
	MaxChunkSize int

	// Overlap is how many characters each chunk repeats from the previous one.
	// Must be smaller than MaxChunkSize.
	Overlap int

	// PreserveSentences tries to break at sentence boundaries
	PreserveSentences bool

	// PreserveParagraphs tries to break at paragraph boundaries
	PreserveParagraphs bool
}

// DefaultChunkConfig returns the process defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChunkSize:       1000,
		Overlap:            200,
		PreserveSentences:  true,
		PreserveParagraphs: true,
	}
}

// Chunker splits content into overlapping chunks. It runs first (Order 0).
type Chunker struct {
	config ChunkConfig
}

// Verify interface compliance
var _ driven.PostProcessor = (*Chunker)(nil)

// NewChunker creates a new chunker with the given config.
func NewChunker(config ChunkConfig) *Chunker {
	if config.MaxChunkSize <= 0 {
		config.MaxChunkSize = DefaultChunkConfig().MaxChunkSize
	}
	return &Chunker{config: config}
}

// Process splits every input chunk and renumbers the result.
func (c *Chunker) Process(chunks []driven.Chunk) []driven.Chunk {
	var result []driven.Chunk
	for _, chunk := range chunks {
		result = append(result, c.split(chunk.Content, chunk.StartOffset, len(result))...)
	}
	return result
}

// Name returns the processor name.
func (c *Chunker) Name() string {
	return "chunker"
}

// Order returns 0: the chunker runs first.
func (c *Chunker) Order() int {
	return 0
}

func (c *Chunker) split(content string, baseOffset, position int) []driven.Chunk {
	runes := []rune(content)
	if len(runes) <= c.config.MaxChunkSize {
		return []driven.Chunk{{
			Content:     content,
			Position:    position,
			StartOffset: baseOffset,
			EndOffset:   baseOffset + len(runes),
		}}
	}

	var chunks []driven.Chunk
	start := 0
	for start < len(runes) {
		end := start + c.config.MaxChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else if bp := c.findBreakPoint(runes, start, end); bp > start {
			end = bp
		}

		chunks = append(chunks, driven.Chunk{
			Content:     string(runes[start:end]),
			Position:    position,
			StartOffset: baseOffset + start,
			EndOffset:   baseOffset + end,
		})
		position++

		if end >= len(runes) {
			break
		}

		next := end - c.config.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// findBreakPoint looks for a paragraph, sentence or word boundary near the
// end of the window. Positions are rune indexes. It returns maxEnd when no
// boundary is found.
func (c *Chunker) findBreakPoint(runes []rune, start, maxEnd int) int {
	searchStart := maxEnd - lookback
	if searchStart < start {
		searchStart = start
	}
	window := string(runes[searchStart:maxEnd])

	// after converts a byte index in window to a rune index in runes
	after := func(idx, width int) int {
		return searchStart + utf8.RuneCountInString(window[:idx+width])
	}

	if c.config.PreserveParagraphs {
		if idx := strings.LastIndex(window, "\n\n"); idx != -1 {
			return after(idx, 2)
		}
	}

	if c.config.PreserveSentences {
		best, width := -1, 0
		for _, ender := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
			if idx := strings.LastIndex(window, ender); idx != -1 && idx+len(ender) > best+width {
				best, width = idx, len(ender)
			}
		}
		if best >= 0 {
			return after(best, width)
		}
	}

	if idx := strings.LastIndexAny(window, " \n\t"); idx != -1 {
		return after(idx, 1)
	}
	return maxEnd
}
