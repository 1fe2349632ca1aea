package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// DocumentStore reads the host's documents. It is read-only: documents are
// owned and edited by the host.
type DocumentStore interface {
	// GetDocument returns a document by ID, or domain.ErrNotFound.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetTitles resolves titles for many documents in one lookup.
	// Unknown IDs are absent from the result.
	GetTitles(ctx context.Context, ids []string) (map[string]string, error)
}
