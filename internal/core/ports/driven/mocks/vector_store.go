package mocks

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// MockVectorStore is an in-memory VectorStore and IndexStatusStore.
type MockVectorStore struct {
	mu     sync.RWMutex
	chunks map[string]*domain.IndexedChunk

	// Results, when set, is returned by Query instead of a real search
	Results []domain.RetrievedSource

	// IgnoreCollectionFilter simulates a store that drops the collection
	// predicate from queries
	IgnoreCollectionFilter bool

	UpsertErr error
	DeleteErr error
	FindErr   error
	QueryErr  error

	upserts int
	deletes int
	filters []domain.MetadataFilter
}

// NewMockVectorStore creates a new MockVectorStore
func NewMockVectorStore() *MockVectorStore {
	return &MockVectorStore{chunks: make(map[string]*domain.IndexedChunk)}
}

func (m *MockVectorStore) Upsert(ctx context.Context, chunks []*domain.IndexedChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	for _, c := range chunks {
		m.chunks[c.ID] = c
	}
	return nil
}

func (m *MockVectorStore) DeleteWhere(ctx context.Context, filter domain.MetadataFilter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if filter.IsEmpty() {
		return errors.New("refusing to delete with an empty filter")
	}
	for id, c := range m.chunks {
		if filter.Matches(c.Metadata) {
			delete(m.chunks, id)
		}
	}
	return nil
}

func (m *MockVectorStore) Query(ctx context.Context, vector []float32, k int, filter domain.MetadataFilter) ([]domain.RetrievedSource, error) {
	m.mu.Lock()
	m.filters = append(m.filters, filter)
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	if m.Results != nil {
		return m.Results, nil
	}

	if m.IgnoreCollectionFilter {
		filter.CollectionIDs = nil
	}

	var results []domain.RetrievedSource
	for _, c := range m.chunks {
		if !filter.Matches(c.Metadata) {
			continue
		}
		results = append(results, domain.RetrievedSource{
			ID:       c.ID,
			Content:  c.Content,
			Metadata: c.Metadata,
			Score:    cosineDistance(vector, c.Embedding),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score < results[j].Score })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *MockVectorStore) FindOneWhere(ctx context.Context, filter domain.MetadataFilter) (*domain.ChunkMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	for _, c := range m.chunks {
		if filter.Matches(c.Metadata) {
			meta := c.Metadata
			return &meta, nil
		}
	}
	return nil, nil
}

func (m *MockVectorStore) ListIndexedDocuments(ctx context.Context, teamID string) ([]domain.IndexedDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byDoc := make(map[string]*domain.IndexedDocument)
	for _, c := range m.chunks {
		if c.Metadata.TeamID != teamID {
			continue
		}
		d, ok := byDoc[c.Metadata.DocumentID]
		if !ok {
			d = &domain.IndexedDocument{DocumentID: c.Metadata.DocumentID, Title: c.Metadata.DocumentTitle}
			byDoc[c.Metadata.DocumentID] = d
		}
		d.ChunkCount++
		if c.Metadata.UpdatedAt.After(d.UpdatedAt) {
			d.UpdatedAt = c.Metadata.UpdatedAt
		}
	}

	out := make([]domain.IndexedDocument, 0, len(byDoc))
	for _, d := range byDoc {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out, nil
}

func (m *MockVectorStore) Close() error {
	return nil
}

// Helper methods for testing

// Seed stores chunks without counting them as writes.
func (m *MockVectorStore) Seed(chunks ...*domain.IndexedChunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.chunks[c.ID] = c
	}
}

// ChunksFor returns the stored chunks of a document ordered by ordinal.
func (m *MockVectorStore) ChunksFor(documentID string) []*domain.IndexedChunk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.IndexedChunk
	for _, c := range m.chunks {
		if c.Metadata.DocumentID == documentID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Metadata.ChunkOrdinal < out[j].Metadata.ChunkOrdinal })
	return out
}

// Writes returns the number of Upsert and DeleteWhere calls.
func (m *MockVectorStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.upserts + m.deletes
}

// Filters returns the filters passed to Query.
func (m *MockVectorStore) Filters() []domain.MetadataFilter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filters
}

// SeedDocument is a shorthand for seeding one chunk of a document.
func (m *MockVectorStore) SeedDocument(id, teamID, collectionID string, updatedAt time.Time) {
	m.Seed(&domain.IndexedChunk{
		ID:      id + "-0",
		Content: "seeded",
		Metadata: domain.ChunkMetadata{
			DocumentID:   id,
			TeamID:       teamID,
			CollectionID: collectionID,
			UpdatedAt:    updatedAt,
		},
	})
}

func cosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
