package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// MockDocumentStore is a mock implementation of DocumentStore for testing
type MockDocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*domain.Document

	GetErr error

	titleLookups int
}

// NewMockDocumentStore creates a new MockDocumentStore
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{documents: make(map[string]*domain.Document)}
}

func (m *MockDocumentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	doc, ok := m.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (m *MockDocumentStore) GetTitles(ctx context.Context, ids []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.titleLookups++
	titles := make(map[string]string, len(ids))
	for _, id := range ids {
		if doc, ok := m.documents[id]; ok {
			titles[id] = doc.Title
		}
	}
	return titles, nil
}

// Helper methods for testing

// Put stores a document
func (m *MockDocumentStore) Put(doc *domain.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *doc
	m.documents[doc.ID] = &copied
}

// TitleLookups returns how many times GetTitles was called
func (m *MockDocumentStore) TitleLookups() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.titleLookups
}
