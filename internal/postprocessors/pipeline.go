package postprocessors

import (
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline chains post-processors by Order, starting from one chunk that
// holds the whole document.
type Pipeline struct {
	mu         sync.Mutex
	processors []driven.PostProcessor
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Add adds a processor. Processors run in ascending Order regardless of
// the order they were added in.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processors = append(p.processors, processor)
	sort.SliceStable(p.processors, func(i, j int) bool {
		return p.processors[i].Order() < p.processors[j].Order()
	})
}

// Process runs the document text through every processor.
func (p *Pipeline) Process(content string) []driven.Chunk {
	p.mu.Lock()
	processors := append([]driven.PostProcessor(nil), p.processors...)
	p.mu.Unlock()

	chunks := []driven.Chunk{{
		Content:   content,
		EndOffset: utf8.RuneCountInString(content),
	}}
	for _, proc := range processors {
		chunks = proc.Process(chunks)
	}
	return chunks
}

// List returns processor names in run order.
func (p *Pipeline) List() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}

// Build returns the indexing pipeline for one document:
// chunker, then whitespace normalizer, then title prefixer when a title is set.
func Build(opts driven.PipelineOptions) driven.PostProcessorPipeline {
	cfg := DefaultChunkConfig()
	if opts.ChunkSize > 0 {
		cfg.MaxChunkSize = opts.ChunkSize
	}
	cfg.Overlap = opts.ChunkOverlap
	if cfg.Overlap >= cfg.MaxChunkSize || cfg.Overlap < 0 {
		cfg.Overlap = 0
	}

	p := NewPipeline()
	p.Add(NewChunker(cfg))
	p.Add(NewWhitespaceNormalizer())
	if opts.Title != "" {
		p.Add(NewTitlePrefixer(opts.Title))
	}
	return p
}

// Verify Build satisfies the factory signature
var _ driven.PipelineFactory = Build
