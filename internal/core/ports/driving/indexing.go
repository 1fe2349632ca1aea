package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// IndexingService keeps a document's chunks in the vector store in step with
// its content.
type IndexingService interface {
	// IndexDocument replaces the document's chunks. Unless force is set, a
	// document whose indexed copy is not older than its updatedAt is skipped.
	IndexDocument(ctx context.Context, doc *domain.Document, force bool) (*domain.IndexResult, error)

	// DeleteDocument removes every chunk the team holds for a document.
	DeleteDocument(ctx context.Context, teamID, documentID string) error

	// FindDocumentMetadata returns the metadata of any of the team's indexed
	// chunks of the document, or nil if it has none.
	FindDocumentMetadata(ctx context.Context, teamID, documentID string) (*domain.ChunkMetadata, error)
}

// StatusService reports per-team indexing progress.
type StatusService interface {
	// GetIndexingStatus lists indexed documents and in-flight jobs for a team.
	GetIndexingStatus(ctx context.Context, teamID string) (*domain.IndexingStatus, error)
}
