package driven

import "context"

// EmbeddingService turns text into vectors.
// Implementations are stateless per provider configuration and safe for
// concurrent use.
type EmbeddingService interface {
	// EmbedDocuments generates embeddings for multiple texts, in order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single search query.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Model returns the embedding model name
	Model() string
}
