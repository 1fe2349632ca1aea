package ai

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Embedding implements EmbeddingService
var _ driven.EmbeddingService = (*Embedding)(nil)

// Embedding adapts a langchaingo embedder
type Embedding struct {
	embedder embeddings.Embedder
	model    string
}

// EmbedDocuments generates embeddings for multiple texts, in order
func (e *Embedding) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embed documents: %v", domain.ErrServiceUnavailable, err)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a search query
func (e *Embedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", domain.ErrServiceUnavailable, err)
	}
	return vector, nil
}

// Model returns the embedding model name
func (e *Embedding) Model() string {
	return e.model
}
