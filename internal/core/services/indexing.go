package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure indexingService implements IndexingService
var _ driving.IndexingService = (*indexingService)(nil)

// indexingService chunks, embeds and replaces a document's index entries.
type indexingService struct {
	store       driven.VectorStore
	settings    driving.SettingsService
	providers   driven.ProviderFactory
	normalisers driven.NormaliserRegistry
	pipeline    driven.PipelineFactory
	logger      *slog.Logger
}

// IndexingServiceConfig holds configuration for the indexing service.
type IndexingServiceConfig struct {
	Store       driven.VectorStore
	Settings    driving.SettingsService
	Providers   driven.ProviderFactory
	Normalisers driven.NormaliserRegistry // Optional: raw text is used when nil
	Pipeline    driven.PipelineFactory
	Logger      *slog.Logger
}

// NewIndexingService creates a new IndexingService
func NewIndexingService(cfg IndexingServiceConfig) driving.IndexingService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &indexingService{
		store:       cfg.Store,
		settings:    cfg.Settings,
		providers:   cfg.Providers,
		normalisers: cfg.Normalisers,
		pipeline:    cfg.Pipeline,
		logger:      logger,
	}
}

// IndexDocument replaces the document's chunks with a fresh set.
func (s *indexingService) IndexDocument(ctx context.Context, doc *domain.Document, force bool) (*domain.IndexResult, error) {
	if doc == nil || doc.ID == "" || doc.TeamID == "" {
		return nil, fmt.Errorf("%w: document id and team are required", domain.ErrInvalidInput)
	}
	logger := s.logger.With("document_id", doc.ID, "team_id", doc.TeamID)

	if !force {
		upToDate, err := s.isUpToDate(ctx, doc)
		if err != nil {
			return nil, err
		}
		if upToDate {
			logger.Debug("index up to date, skipping")
			return &domain.IndexResult{DocumentID: doc.ID, Skipped: true, Reason: domain.SkipReasonUpToDate}, nil
		}
	}

	text := strings.TrimSpace(s.normalise(doc))
	if text == "" {
		logger.Debug("document has no text, skipping")
		return &domain.IndexResult{DocumentID: doc.ID, Skipped: true, Reason: domain.SkipReasonEmpty}, nil
	}

	settings := s.settings.Resolve(ctx, doc.TeamID)
	pipeline := s.pipeline(driven.PipelineOptions{
		ChunkSize:    settings.ChunkSize,
		ChunkOverlap: settings.ChunkOverlap,
		Title:        doc.Title,
	})
	pieces := pipeline.Process(text)
	if len(pieces) == 0 {
		return &domain.IndexResult{DocumentID: doc.ID, Skipped: true, Reason: domain.SkipReasonEmpty}, nil
	}

	embedder, err := s.providers.EmbeddingService(settings.Embedding)
	if err != nil {
		return nil, err
	}

	contents := make([]string, len(pieces))
	for i, p := range pieces {
		contents[i] = p.Content
	}
	vectors, err := embedder.EmbedDocuments(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(pieces) {
		return nil, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(pieces))
	}

	base := domain.MetadataFor(doc)
	chunks := make([]*domain.IndexedChunk, len(pieces))
	for i, p := range pieces {
		meta := base
		meta.ChunkOrdinal = i
		chunks[i] = &domain.IndexedChunk{
			ID:        uuid.NewString(),
			Content:   p.Content,
			Metadata:  meta,
			Embedding: vectors[i],
		}
	}

	// Replace, never merge: old chunks go before the new set is written.
	if err := s.store.DeleteWhere(ctx, documentFilter(doc.TeamID, doc.ID)); err != nil {
		logger.Warn("failed to remove previous chunks", "error", err)
		return nil, fmt.Errorf("remove previous chunks: %w", err)
	}
	if err := s.store.Upsert(ctx, chunks); err != nil {
		logger.Error("document left without chunks until next reindex", "error", err)
		return nil, fmt.Errorf("insert chunks: %w", err)
	}

	logger.Info("document indexed", "chunks", len(chunks), "forced", force)
	return &domain.IndexResult{DocumentID: doc.ID, Chunks: len(chunks)}, nil
}

// isUpToDate reports whether an indexed copy exists that is not older than
// the document.
func (s *indexingService) isUpToDate(ctx context.Context, doc *domain.Document) (bool, error) {
	existing, err := s.store.FindOneWhere(ctx, documentFilter(doc.TeamID, doc.ID))
	if err != nil {
		return false, fmt.Errorf("find indexed metadata: %w", err)
	}
	if existing == nil || existing.UpdatedAt.IsZero() {
		return false, nil
	}
	return !existing.UpdatedAt.Before(doc.UpdatedAt), nil
}

func (s *indexingService) normalise(doc *domain.Document) string {
	if s.normalisers == nil {
		return doc.Text
	}
	n := s.normalisers.Get(doc.MimeType)
	if n == nil {
		return doc.Text
	}
	return n.Normalise(doc.Text, doc.MimeType)
}

// DeleteDocument removes every chunk the team holds for a document
func (s *indexingService) DeleteDocument(ctx context.Context, teamID, documentID string) error {
	if teamID == "" || documentID == "" {
		return fmt.Errorf("%w: document id and team are required", domain.ErrInvalidInput)
	}
	if err := s.store.DeleteWhere(ctx, documentFilter(teamID, documentID)); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	s.logger.Info("document removed from index", "document_id", documentID, "team_id", teamID)
	return nil
}

// FindDocumentMetadata returns the metadata of any of the team's indexed
// chunks of the document
func (s *indexingService) FindDocumentMetadata(ctx context.Context, teamID, documentID string) (*domain.ChunkMetadata, error) {
	if teamID == "" || documentID == "" {
		return nil, fmt.Errorf("%w: document id and team are required", domain.ErrInvalidInput)
	}
	return s.store.FindOneWhere(ctx, documentFilter(teamID, documentID))
}

// documentFilter selects one team's chunks of a document. Both keys are
// always set: document IDs are not unique across teams.
func documentFilter(teamID, documentID string) domain.MetadataFilter {
	return domain.MetadataFilter{TeamID: teamID, DocumentID: documentID}
}
