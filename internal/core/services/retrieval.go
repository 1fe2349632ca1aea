package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure retrievalService implements RetrievalService
var _ driving.RetrievalService = (*retrievalService)(nil)

// retrievalService implements filtered similarity search
type retrievalService struct {
	store     driven.VectorStore
	settings  driving.SettingsService
	providers driven.ProviderFactory
	logger    *slog.Logger
}

// RetrievalServiceConfig holds configuration for the retrieval service.
type RetrievalServiceConfig struct {
	Store     driven.VectorStore
	Settings  driving.SettingsService
	Providers driven.ProviderFactory
	Logger    *slog.Logger
}

// NewRetrievalService creates a new RetrievalService
func NewRetrievalService(cfg RetrievalServiceConfig) driving.RetrievalService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &retrievalService{
		store:     cfg.Store,
		settings:  cfg.Settings,
		providers: cfg.Providers,
		logger:    logger,
	}
}

// SimilaritySearch returns matching chunks without scores
func (s *retrievalService) SimilaritySearch(ctx context.Context, req domain.SearchRequest) ([]domain.RetrievedSource, error) {
	results, err := s.SimilaritySearchWithScore(ctx, req)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Score = 0
	}
	return results, nil
}

// SimilaritySearchWithScore returns chunks ascending by distance
func (s *retrievalService) SimilaritySearchWithScore(ctx context.Context, req domain.SearchRequest) ([]domain.RetrievedSource, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}

	settings := s.settings.Resolve(ctx, req.TeamID)
	k := req.K
	if k <= 0 {
		k = settings.RetrievalK
	}

	embedder, err := s.providers.EmbeddingService(settings.Embedding)
	if err != nil {
		return nil, err
	}
	vector, err := embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	filter := req.Filter()
	raw, err := s.store.Query(ctx, vector, k, filter)
	if err != nil {
		return nil, fmt.Errorf("query vector store: %w", err)
	}

	results := filterResults(raw, filter, settings.ScoreThreshold)
	if dropped := len(raw) - len(results); dropped > 0 {
		s.logger.Debug("retrieval results filtered",
			"team_id", req.TeamID,
			"returned", len(raw),
			"dropped", dropped,
		)
	}
	return results, nil
}

// filterResults re-checks each result's own metadata against the filter,
// drops results farther than the threshold and duplicates, and orders the
// rest by ascending distance.
func filterResults(raw []domain.RetrievedSource, filter domain.MetadataFilter, threshold float64) []domain.RetrievedSource {
	seen := make(map[string]bool, len(raw))
	results := make([]domain.RetrievedSource, 0, len(raw))
	for _, r := range raw {
		if !filter.Matches(r.Metadata) {
			continue
		}
		if r.Score > threshold {
			continue
		}
		if r.ID != "" {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
		}
		results = append(results, r)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score < results[j].Score })
	return results
}
