package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// VectorStore persists embedded chunks and answers nearest-neighbour queries
// under a metadata filter.
type VectorStore interface {
	// Upsert inserts or replaces chunks by ID.
	Upsert(ctx context.Context, chunks []*domain.IndexedChunk) error

	// DeleteWhere removes every chunk matching the filter.
	// An empty filter is rejected so a bug cannot wipe the index.
	DeleteWhere(ctx context.Context, filter domain.MetadataFilter) error

	// Query returns up to k chunks nearest to the vector, ascending by
	// distance. Stores may ignore parts of the filter they cannot express;
	// callers re-check results.
	Query(ctx context.Context, vector []float32, k int, filter domain.MetadataFilter) ([]domain.RetrievedSource, error)

	// FindOneWhere returns the metadata of any chunk matching the filter,
	// or nil if none exists.
	FindOneWhere(ctx context.Context, filter domain.MetadataFilter) (*domain.ChunkMetadata, error)

	// Close releases the store's resources
	Close() error
}

// IndexStatusStore answers aggregate questions about the index.
type IndexStatusStore interface {
	// ListIndexedDocuments groups a team's chunks by document with counts
	// and the latest updatedAt.
	ListIndexedDocuments(ctx context.Context, teamID string) ([]domain.IndexedDocument, error)
}
