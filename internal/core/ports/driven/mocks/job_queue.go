package mocks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// MockJobQueue is an in-memory JobQueue with schedule-with-replace.
type MockJobQueue struct {
	mu   sync.Mutex
	name string
	jobs map[string]*domain.Job

	ScheduleErr error
	ListErr     error

	schedules []driven.ScheduleOptions
	acked     []string
	nacked    []string
}

// NewMockJobQueue creates a named in-memory queue
func NewMockJobQueue(name string) *MockJobQueue {
	return &MockJobQueue{name: name, jobs: make(map[string]*domain.Job)}
}

func (m *MockJobQueue) Name() string {
	return m.name
}

func (m *MockJobQueue) Schedule(ctx context.Context, event *domain.LifecycleEvent, opts driven.ScheduleOptions) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ScheduleErr != nil {
		return nil, m.ScheduleErr
	}

	job := domain.NewJob(m.name, event)
	if opts.DedupeKey != "" {
		job.ID = opts.DedupeKey
	}
	job.ScheduledFor = job.CreatedAt.Add(opts.Delay)
	m.jobs[job.ID] = job
	m.schedules = append(m.schedules, opts)

	copied := *job
	return &copied, nil
}

func (m *MockJobQueue) DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, job := range m.sorted() {
		if job.State(now) == domain.JobStateWaiting {
			job.MarkProcessing()
			copied := *job
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *MockJobQueue) Ack(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return errors.New("job not found")
	}
	job.MarkCompleted()
	m.acked = append(m.acked, jobID)
	return nil
}

func (m *MockJobQueue) Nack(ctx context.Context, jobID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return errors.New("job not found")
	}
	if job.CanRetry() {
		job.Retry(reason)
	} else {
		job.MarkFailed(reason)
	}
	m.nacked = append(m.nacked, jobID)
	return nil
}

func (m *MockJobQueue) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (m *MockJobQueue) ListByState(ctx context.Context, state domain.JobState) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	now := time.Now()
	var out []*domain.Job
	for _, job := range m.sorted() {
		if job.State(now) == state {
			copied := *job
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *MockJobQueue) PurgeJobs(ctx context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	purged := 0
	for id, job := range m.jobs {
		if job.IsFinished() && job.UpdatedAt.Before(before) {
			delete(m.jobs, id)
			purged++
		}
	}
	return purged, nil
}

func (m *MockJobQueue) Ping(ctx context.Context) error {
	return nil
}

func (m *MockJobQueue) Close() error {
	return nil
}

func (m *MockJobQueue) sorted() []*domain.Job {
	jobs := make([]*domain.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].CreatedAt.Before(jobs[k].CreatedAt) })
	return jobs
}

// Helper methods for testing

// Put stores a job as-is.
func (m *MockJobQueue) Put(job *domain.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
}

// Jobs returns a snapshot of all stored jobs.
func (m *MockJobQueue) Jobs() []*domain.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Job
	for _, j := range m.sorted() {
		copied := *j
		out = append(out, &copied)
	}
	return out
}

// Schedules returns the options of every Schedule call.
func (m *MockJobQueue) Schedules() []driven.ScheduleOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schedules
}

// Acked returns acknowledged job IDs.
func (m *MockJobQueue) Acked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acked
}

// Nacked returns failed job IDs.
func (m *MockJobQueue) Nacked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nacked
}
