package http

import (
	"context"
	"errors"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Mock services for testing

type mockEventScheduler struct {
	submitFn func(ctx context.Context, event *domain.LifecycleEvent) (*domain.Job, error)
}

func (m *mockEventScheduler) Submit(ctx context.Context, event *domain.LifecycleEvent) (*domain.Job, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, event)
	}
	return nil, errors.New("not implemented")
}

func (m *mockEventScheduler) HandleLifecycleEvent(ctx context.Context, job *domain.Job) error {
	return nil
}

func (m *mockEventScheduler) HandleProcessorJob(ctx context.Context, job *domain.Job) error {
	return nil
}

type mockIndexingService struct {
	indexFn  func(ctx context.Context, doc *domain.Document, force bool) (*domain.IndexResult, error)
	deleteFn func(ctx context.Context, teamID, documentID string) error
	findFn   func(ctx context.Context, teamID, documentID string) (*domain.ChunkMetadata, error)
}

func (m *mockIndexingService) IndexDocument(ctx context.Context, doc *domain.Document, force bool) (*domain.IndexResult, error) {
	if m.indexFn != nil {
		return m.indexFn(ctx, doc, force)
	}
	return nil, errors.New("not implemented")
}

func (m *mockIndexingService) DeleteDocument(ctx context.Context, teamID, documentID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, teamID, documentID)
	}
	return errors.New("not implemented")
}

func (m *mockIndexingService) FindDocumentMetadata(ctx context.Context, teamID, documentID string) (*domain.ChunkMetadata, error) {
	if m.findFn != nil {
		return m.findFn(ctx, teamID, documentID)
	}
	return nil, nil
}

type mockStatusService struct {
	statusFn func(ctx context.Context, teamID string) (*domain.IndexingStatus, error)
}

func (m *mockStatusService) GetIndexingStatus(ctx context.Context, teamID string) (*domain.IndexingStatus, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx, teamID)
	}
	return &domain.IndexingStatus{Indexed: []domain.IndexedDocument{}, Indexing: []domain.InFlightDocument{}}, nil
}

type mockRetrievalService struct {
	searchFn func(ctx context.Context, req domain.SearchRequest) ([]domain.RetrievedSource, error)
}

func (m *mockRetrievalService) SimilaritySearchWithScore(ctx context.Context, req domain.SearchRequest) ([]domain.RetrievedSource, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, req)
	}
	return nil, nil
}

func (m *mockRetrievalService) SimilaritySearch(ctx context.Context, req domain.SearchRequest) ([]domain.RetrievedSource, error) {
	return m.SimilaritySearchWithScore(ctx, req)
}

type mockChatService struct {
	streamFn func(ctx context.Context, req domain.ChatRequest) (<-chan domain.ChatStreamEvent, error)
}

func (m *mockChatService) StreamAnswer(ctx context.Context, req domain.ChatRequest) (<-chan domain.ChatStreamEvent, error) {
	if m.streamFn != nil {
		return m.streamFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

type mockSettingsService struct {
	getFn    func(ctx context.Context, teamID string) (*driving.SettingsView, error)
	updateFn func(ctx context.Context, teamID string, req driving.UpdateSettingsRequest) (*driving.SettingsView, error)
}

func (m *mockSettingsService) Overrides(ctx context.Context, teamID string) *domain.TeamSettings {
	return nil
}

func (m *mockSettingsService) Resolve(ctx context.Context, teamID string) domain.EffectiveSettings {
	return domain.DefaultEffectiveSettings()
}

func (m *mockSettingsService) Get(ctx context.Context, teamID string) (*driving.SettingsView, error) {
	if m.getFn != nil {
		return m.getFn(ctx, teamID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockSettingsService) Update(ctx context.Context, teamID string, req driving.UpdateSettingsRequest) (*driving.SettingsView, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, teamID, req)
	}
	return nil, errors.New("not implemented")
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}
