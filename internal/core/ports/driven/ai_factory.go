package driven

import (
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// ProviderFactory builds provider clients from resolved settings.
// Clients are cheap to build; implementations may cache them by
// settings hash. Returns domain.ErrProviderNotConfigured when the
// settings lack credentials or a model.
type ProviderFactory interface {
	// EmbeddingService returns an embedding client for the settings
	EmbeddingService(settings domain.ProviderSettings) (EmbeddingService, error)

	// ChatService returns a chat client for the settings
	ChatService(settings domain.ProviderSettings) (ChatService, error)
}
