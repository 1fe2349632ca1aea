package domain

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// Queue names. Lifecycle events and their debounced settle jobs go to the
// lifecycle queue; immediate index work goes to the processor queue.
const (
	QueueLifecycle = "lifecycle"
	QueueProcessor = "processor"
)

// JobStatus is the stored status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobState is the queue partition a job currently sits in
type JobState string

const (
	JobStateActive    JobState = "active"
	JobStateWaiting   JobState = "waiting"
	JobStateDelayed   JobState = "delayed"
	JobStateFailed    JobState = "failed"
	JobStateCompleted JobState = "completed"
)

// InFlightStates are the partitions scanned for in-flight work, in scan order.
var InFlightStates = []JobState{JobStateActive, JobStateWaiting, JobStateDelayed, JobStateFailed}

// Job is a lifecycle event held by a queue.
type Job struct {
	ID         string         `json:"id"`
	Queue      string         `json:"queue"`
	Name       EventName      `json:"name"`
	TeamID     string         `json:"team_id"`
	DocumentID string         `json:"document_id"`
	Event      LifecycleEvent `json:"event"`

	Status      JobStatus `json:"status"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	Error       string    `json:"error,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ScheduledFor time.Time  `json:"scheduled_for"`
}

// NewJob creates a pending job for an event, due immediately.
func NewJob(queue string, event *LifecycleEvent) *Job {
	now := time.Now()
	return &Job{
		ID:           GenerateID(),
		Queue:        queue,
		Name:         event.Name,
		TeamID:       event.TeamID,
		DocumentID:   event.DocumentID,
		Event:        *event,
		Status:       JobStatusPending,
		MaxAttempts:  3,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// State derives the queue partition from status and schedule.
func (j *Job) State(now time.Time) JobState {
	switch j.Status {
	case JobStatusProcessing:
		return JobStateActive
	case JobStatusFailed:
		return JobStateFailed
	case JobStatusCompleted:
		return JobStateCompleted
	}
	if j.ScheduledFor.After(now) {
		return JobStateDelayed
	}
	return JobStateWaiting
}

// CanRetry returns true if the job can be retried
func (j *Job) CanRetry() bool {
	return j.Attempts < j.MaxAttempts
}

// MarkProcessing updates the job to processing state
func (j *Job) MarkProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.StartedAt = &now
	j.UpdatedAt = now
	j.Attempts++
}

// MarkCompleted updates the job to completed state
func (j *Job) MarkCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.Error = ""
}

// MarkFailed updates the job to failed state
func (j *Job) MarkFailed(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.UpdatedAt = now
	j.Error = err
}

// Retry resets the job for retry with exponential backoff
func (j *Job) Retry(err string) {
	now := time.Now()
	j.Status = JobStatusPending
	j.UpdatedAt = now
	j.Error = err

	// 2s, 4s, 8s ... capped at 5 minutes
	backoff := time.Duration(1<<j.Attempts) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	j.ScheduledFor = now.Add(backoff)
}

// IsFinished returns true for completed or failed jobs
func (j *Job) IsFinished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
