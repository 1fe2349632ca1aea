package mocks

import (
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// MockProviderFactory hands out fixed clients and records the settings it
// was asked for.
type MockProviderFactory struct {
	Embedding driven.EmbeddingService
	Chat      driven.ChatService

	EmbeddingErr error
	ChatErr      error

	EmbeddingSettings []domain.ProviderSettings
	ChatSettings      []domain.ProviderSettings
}

func (m *MockProviderFactory) EmbeddingService(settings domain.ProviderSettings) (driven.EmbeddingService, error) {
	m.EmbeddingSettings = append(m.EmbeddingSettings, settings)
	if m.EmbeddingErr != nil {
		return nil, m.EmbeddingErr
	}
	return m.Embedding, nil
}

func (m *MockProviderFactory) ChatService(settings domain.ProviderSettings) (driven.ChatService, error) {
	m.ChatSettings = append(m.ChatSettings, settings)
	if m.ChatErr != nil {
		return nil, m.ChatErr
	}
	return m.Chat, nil
}
