package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure statusService implements StatusService
var _ driving.StatusService = (*statusService)(nil)

// statusService merges index aggregates and queue state per team.
type statusService struct {
	index     driven.IndexStatusStore
	queues    []driven.JobQueue
	documents driven.DocumentStore
	logger    *slog.Logger
}

// StatusServiceConfig holds configuration for the status service.
type StatusServiceConfig struct {
	Index     driven.IndexStatusStore
	Queues    []driven.JobQueue // Scanned in order
	Documents driven.DocumentStore
	Logger    *slog.Logger
}

// NewStatusService creates a new StatusService
func NewStatusService(cfg StatusServiceConfig) driving.StatusService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &statusService{
		index:     cfg.Index,
		queues:    cfg.Queues,
		documents: cfg.Documents,
		logger:    logger,
	}
}

// GetIndexingStatus lists indexed documents and in-flight jobs for a team.
func (s *statusService) GetIndexingStatus(ctx context.Context, teamID string) (*domain.IndexingStatus, error) {
	if teamID == "" {
		return nil, fmt.Errorf("%w: team is required", domain.ErrInvalidInput)
	}

	indexed, err := s.index.ListIndexedDocuments(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("list indexed documents: %w", err)
	}

	indexing, err := s.inFlight(ctx, teamID)
	if err != nil {
		return nil, err
	}

	if indexed == nil {
		indexed = []domain.IndexedDocument{}
	}
	return &domain.IndexingStatus{Indexed: indexed, Indexing: indexing}, nil
}

// inFlight scans every partition of every queue. States are scanned in
// priority order and the first classification of a document wins.
func (s *statusService) inFlight(ctx context.Context, teamID string) ([]domain.InFlightDocument, error) {
	seen := make(map[string]bool)
	docs := []domain.InFlightDocument{}

	for _, state := range domain.InFlightStates {
		for _, queue := range s.queues {
			jobs, err := queue.ListByState(ctx, state)
			if err != nil {
				return nil, fmt.Errorf("list %s jobs on %s: %w", state, queue.Name(), err)
			}
			for _, job := range jobs {
				if job.TeamID != teamID || job.DocumentID == "" || job.Name.IsRemoval() {
					continue
				}
				if seen[job.DocumentID] {
					continue
				}
				seen[job.DocumentID] = true
				docs = append(docs, domain.InFlightDocument{
					DocumentID: job.DocumentID,
					State:      classify(state, job),
					Event:      job.Name,
					Queue:      queue.Name(),
					JobID:      job.ID,
					Attempts:   job.Attempts,
					Error:      job.Error,
				})
			}
		}
	}

	if len(docs) == 0 {
		return docs, nil
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.DocumentID
	}
	titles, err := s.documents.GetTitles(ctx, ids)
	if err != nil {
		// Titles are cosmetic
		s.logger.Warn("failed to resolve in-flight titles", "team_id", teamID, "error", err)
		return docs, nil
	}
	for i := range docs {
		docs[i].Title = titles[docs[i].DocumentID]
	}
	return docs, nil
}

func classify(state domain.JobState, job *domain.Job) domain.InFlightState {
	switch state {
	case domain.JobStateActive:
		return domain.InFlightIndexing
	case domain.JobStateFailed:
		return domain.InFlightFailed
	case domain.JobStateDelayed:
		// A delayed job with attempts behind it is backing off
		if job.Attempts > 0 {
			return domain.InFlightRetrying
		}
		return domain.InFlightPending
	default:
		return domain.InFlightPending
	}
}
