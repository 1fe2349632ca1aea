package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// EventScheduler turns document lifecycle events into indexing work.
type EventScheduler interface {
	// Submit validates an event and queues it on the lifecycle queue.
	Submit(ctx context.Context, event *domain.LifecycleEvent) (*domain.Job, error)

	// HandleLifecycleEvent runs one job from the lifecycle queue:
	// immediate index, debounce, settle, or removal.
	HandleLifecycleEvent(ctx context.Context, job *domain.Job) error

	// HandleProcessorJob runs one job from the processor queue by
	// reindexing the job's document.
	HandleProcessorJob(ctx context.Context, job *domain.Job) error
}
