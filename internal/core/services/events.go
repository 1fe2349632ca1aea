package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure eventScheduler implements EventScheduler
var _ driving.EventScheduler = (*eventScheduler)(nil)

// eventScheduler routes lifecycle events to the two queues.
//
// Updates are debounced on the lifecycle queue under the team and document
// ID, so a burst of edits leaves exactly one pending settle job whose payload
// is the latest event. Everything that should index right away goes to the
// processor queue.
type eventScheduler struct {
	lifecycle driven.JobQueue
	processor driven.JobQueue
	documents driven.DocumentStore
	indexer   driving.IndexingService
	debounce  time.Duration
	logger    *slog.Logger
}

// EventSchedulerConfig holds configuration for the event scheduler.
type EventSchedulerConfig struct {
	Lifecycle     driven.JobQueue
	Processor     driven.JobQueue
	Documents     driven.DocumentStore
	Indexer       driving.IndexingService
	DebounceDelay time.Duration // Quiet period after the last update (default: 60s)
	Logger        *slog.Logger
}

// NewEventScheduler creates a new EventScheduler
func NewEventScheduler(cfg EventSchedulerConfig) driving.EventScheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := cfg.DebounceDelay
	if debounce == 0 {
		debounce = 60 * time.Second
	}
	return &eventScheduler{
		lifecycle: cfg.Lifecycle,
		processor: cfg.Processor,
		documents: cfg.Documents,
		indexer:   cfg.Indexer,
		debounce:  debounce,
		logger:    logger,
	}
}

// Submit validates an event and schedules the work it implies.
// It returns nil, nil when the event is dropped.
func (s *eventScheduler) Submit(ctx context.Context, event *domain.LifecycleEvent) (*domain.Job, error) {
	if event == nil {
		return nil, domain.ErrInvalidInput
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	switch {
	case event.Name.IsRemoval(), event.Name == domain.EventUpdateDebounced:
		// Removals and settles run on the worker
		return s.lifecycle.Schedule(ctx, event, driven.ScheduleOptions{})
	default:
		return s.route(ctx, event)
	}
}

// HandleLifecycleEvent runs one job from the lifecycle queue.
func (s *eventScheduler) HandleLifecycleEvent(ctx context.Context, job *domain.Job) error {
	event := job.Event
	if err := event.Validate(); err != nil {
		// Retrying cannot fix a malformed event
		s.logger.Warn("dropping invalid lifecycle job", "job_id", job.ID, "error", err)
		return nil
	}

	switch {
	case event.Name.IsRemoval():
		s.remove(ctx, &event)
		return nil
	case event.Name == domain.EventUpdateDebounced:
		return s.settle(ctx, &event)
	default:
		_, err := s.route(ctx, &event)
		return err
	}
}

// HandleProcessorJob reindexes the job's document.
func (s *eventScheduler) HandleProcessorJob(ctx context.Context, job *domain.Job) error {
	logger := s.logger.With("job_id", job.ID, "document_id", job.DocumentID, "team_id", job.Event.TeamID)

	doc, err := s.ownedDocument(ctx, &job.Event)
	if err != nil {
		return err
	}
	if doc == nil {
		logger.Info("document no longer exists for team, skipping index")
		return nil
	}
	if !doc.IsPublished() {
		logger.Info("document is not published, skipping index")
		return nil
	}

	_, err = s.indexer.IndexDocument(ctx, doc, job.Event.Data.Force)
	return err
}

// route handles events that either index immediately or start a debounce.
func (s *eventScheduler) route(ctx context.Context, event *domain.LifecycleEvent) (*domain.Job, error) {
	if event.ForcesReindex() {
		return s.enqueueIndex(ctx, event)
	}
	if event.Name == domain.EventUpdate {
		return s.debounceUpdate(ctx, event)
	}
	return nil, domain.ErrUnknownEvent
}

// debounceUpdate schedules the settle job for a published document. The
// document ID is the dedupe key, so a newer update replaces a pending one.
func (s *eventScheduler) debounceUpdate(ctx context.Context, event *domain.LifecycleEvent) (*domain.Job, error) {
	doc, err := s.ownedDocument(ctx, event)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		s.logger.Debug("update for unknown document dropped", "document_id", event.DocumentID, "team_id", event.TeamID)
		return nil, nil
	}
	if !doc.IsPublished() {
		s.logger.Debug("update for unpublished document dropped", "document_id", event.DocumentID)
		return nil, nil
	}

	return s.lifecycle.Schedule(ctx, event.Debounced(), driven.ScheduleOptions{
		Delay:     s.debounce,
		DedupeKey: debounceKey(event),
	})
}

// settle runs a debounced update once its quiet period is over.
func (s *eventScheduler) settle(ctx context.Context, event *domain.LifecycleEvent) error {
	logger := s.logger.With("document_id", event.DocumentID)

	doc, err := s.ownedDocument(ctx, event)
	if err != nil {
		return err
	}
	if doc == nil {
		logger.Debug("settled document no longer exists for team")
		return nil
	}
	if !doc.IsPublished() {
		logger.Debug("settled document is not published")
		return nil
	}
	if doc.UpdatedAt.After(event.CreatedAt) {
		logger.Debug("settle superseded by a newer update",
			"updated_at", doc.UpdatedAt,
			"event_created_at", event.CreatedAt,
		)
		return nil
	}

	_, err = s.enqueueIndex(ctx, event)
	return err
}

// remove deletes a document's chunks. Failures are logged, never returned.
func (s *eventScheduler) remove(ctx context.Context, event *domain.LifecycleEvent) {
	if err := s.indexer.DeleteDocument(ctx, event.TeamID, event.DocumentID); err != nil {
		s.logger.Warn("failed to remove document from index",
			"document_id", event.DocumentID,
			"team_id", event.TeamID,
			"event", event.Name,
			"error", err,
		)
	}
}

// ownedDocument loads the event's document. A document that is missing or
// belongs to another team yields nil.
func (s *eventScheduler) ownedDocument(ctx context.Context, event *domain.LifecycleEvent) (*domain.Document, error) {
	doc, err := s.documents.GetDocument(ctx, event.DocumentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if doc.TeamID != event.TeamID {
		s.logger.Warn("event team does not own document",
			"document_id", event.DocumentID,
			"event_team_id", event.TeamID,
		)
		return nil, nil
	}
	return doc, nil
}

// debounceKey identifies the pending settle job of one team's document.
func debounceKey(event *domain.LifecycleEvent) string {
	return event.TeamID + ":" + event.DocumentID
}

func (s *eventScheduler) enqueueIndex(ctx context.Context, event *domain.LifecycleEvent) (*domain.Job, error) {
	index := *event
	index.Name = domain.EventIndex
	job, err := s.processor.Schedule(ctx, &index, driven.ScheduleOptions{})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("index job queued",
		"document_id", event.DocumentID,
		"job_id", job.ID,
		"trigger", event.Name,
	)
	return job, nil
}
