package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// MockSettingsStore is a mock implementation of SettingsStore for testing
type MockSettingsStore struct {
	mu       sync.RWMutex
	settings map[string]*domain.TeamSettings

	GetErr  error
	SaveErr error
}

// NewMockSettingsStore creates a new MockSettingsStore
func NewMockSettingsStore() *MockSettingsStore {
	return &MockSettingsStore{settings: make(map[string]*domain.TeamSettings)}
}

func (m *MockSettingsStore) GetTeamSettings(ctx context.Context, teamID string) (*domain.TeamSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	s, ok := m.settings[teamID]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (m *MockSettingsStore) SaveTeamSettings(ctx context.Context, settings *domain.TeamSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	copied := *settings
	m.settings[settings.TeamID] = &copied
	return nil
}
