package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// ScheduleOptions controls when and under which key a job is queued.
type ScheduleOptions struct {
	// Delay postpones the job. Zero means run as soon as possible.
	Delay time.Duration

	// DedupeKey becomes the job ID. Scheduling again with the same key
	// replaces the pending job's payload and due time instead of adding a
	// second job, so at most one job per key is pending.
	DedupeKey string
}

// JobQueue is one named queue of lifecycle jobs.
// Implementations must make schedule-with-replace safe across processes.
type JobQueue interface {
	// Name returns the queue name
	Name() string

	// Schedule queues an event as a job.
	Schedule(ctx context.Context, event *domain.LifecycleEvent, opts ScheduleOptions) (*domain.Job, error)

	// DequeueWithTimeout retrieves the next due job, waiting up to timeout.
	// Returns nil, nil if nothing arrived in time.
	DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Job, error)

	// Ack marks a job completed.
	Ack(ctx context.Context, jobID string) error

	// Nack records a failure. The job is retried with backoff until its
	// attempts are exhausted, then marked failed.
	Nack(ctx context.Context, jobID string, reason string) error

	// GetJob retrieves a job by ID. Returns nil, nil if unknown.
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)

	// ListByState returns the jobs currently in a queue partition.
	ListByState(ctx context.Context, state domain.JobState) ([]*domain.Job, error)

	// PurgeJobs removes finished jobs last updated before the cutoff.
	PurgeJobs(ctx context.Context, before time.Time) (int, error)

	// Ping checks if the queue backend is healthy.
	Ping(ctx context.Context) error

	// Close cleans up resources.
	Close() error
}
