package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

const (
	keyPrefix = "sercha:"

	// Default consumer name prefix
	consumerPrefix = "worker-"

	// How long a delivered message may sit unacknowledged before another
	// worker claims it
	claimTimeout = 5 * time.Minute

	// Job records outlive their purge window as a safety net
	jobTTL = 7 * 24 * time.Hour

	msgSuffix = ":msg"
)

// Verify interface compliance
var _ driven.JobQueue = (*Queue)(nil)

// Queue is one named job queue on Redis.
//
// The job record under jobKey is the source of truth. Due jobs are pointed
// to by entries in a stream read through a consumer group; delayed jobs sit
// in a sorted set scored by due time until a dequeue promotes them. A stream
// entry whose job has since been rescheduled or finished is acknowledged and
// skipped, which is what makes schedule-with-replace safe across processes.
type Queue struct {
	client       *redis.Client
	name         string
	consumerName string
	logger       *slog.Logger

	stream  string
	group   string
	delayed string
}

// Config holds configuration for a Redis queue.
type Config struct {
	Client       *redis.Client
	Name         string // Queue name, e.g. "lifecycle"
	ConsumerName string // Unique per worker instance (default: generated)
	Logger       *slog.Logger
}

// NewQueue creates a Redis-backed job queue and its consumer group.
func NewQueue(ctx context.Context, cfg Config) (*Queue, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Name == "" {
		return nil, errors.New("queue name is required")
	}
	consumer := cfg.ConsumerName
	if consumer == "" {
		consumer = fmt.Sprintf("%s%d", consumerPrefix, time.Now().UnixNano())
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := keyPrefix + cfg.Name
	q := &Queue{
		client:       cfg.Client,
		name:         cfg.Name,
		consumerName: consumer,
		logger:       logger.With("queue", cfg.Name),
		stream:       base + ":stream",
		group:        base + ":workers",
		delayed:      base + ":delayed",
	}

	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return q, nil
}

// Name returns the queue name
func (q *Queue) Name() string {
	return q.name
}

// Schedule stores the event as a job. With a dedupe key the job ID is the
// key and any pending job under it is overwritten in place.
func (q *Queue) Schedule(ctx context.Context, event *domain.LifecycleEvent, opts driven.ScheduleOptions) (*domain.Job, error) {
	if event == nil {
		return nil, errors.New("event is required")
	}

	job := domain.NewJob(q.name, event)
	if opts.DedupeKey != "" {
		job.ID = opts.DedupeKey
	}
	if opts.Delay > 0 {
		job.ScheduledFor = job.CreatedAt.Add(opts.Delay)
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, q.jobKey(job.ID), data, jobTTL)
	if opts.Delay > 0 {
		// ZADD replaces the score of an existing member
		pipe.ZAdd(ctx, q.delayed, redis.Z{Score: score(job.ScheduledFor), Member: job.ID})
	} else {
		pipe.ZRem(ctx, q.delayed, job.ID)
		pipe.XAdd(ctx, q.pointer(job.ID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to schedule job: %w", err)
	}

	return job, nil
}

// DequeueWithTimeout returns the next due job, waiting up to timeout.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Job, error) {
	if err := q.promoteDelayed(ctx); err != nil {
		q.logger.Warn("failed to promote delayed jobs", "error", err)
	}

	if job, err := q.claimAbandoned(ctx); err == nil && job != nil {
		return job, nil
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumerName,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    timeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	return q.start(ctx, streams[0].Messages[0])
}

// start marks the job behind a stream message as processing. Messages that
// no longer point at a due, pending job are dropped.
func (q *Queue) start(ctx context.Context, msg redis.XMessage) (*domain.Job, error) {
	jobID, _ := msg.Values["job_id"].(string)
	if jobID == "" {
		q.drop(ctx, msg.ID)
		return nil, nil
	}

	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil || job.Status != domain.JobStatusPending || job.ScheduledFor.After(time.Now()) {
		q.drop(ctx, msg.ID)
		return nil, nil
	}

	job.MarkProcessing()
	if err := q.save(ctx, job); err != nil {
		return nil, err
	}
	if err := q.client.Set(ctx, q.jobKey(job.ID)+msgSuffix, msg.ID, jobTTL).Err(); err != nil {
		return nil, fmt.Errorf("failed to record message id: %w", err)
	}
	return job, nil
}

// Ack marks a job completed.
func (q *Queue) Ack(ctx context.Context, jobID string) error {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	pipe := q.client.TxPipeline()
	q.releaseMessage(ctx, pipe, jobID)

	// A job rescheduled while it ran stays pending for its next run
	if job != nil && job.Status == domain.JobStatusProcessing {
		job.MarkCompleted()
		data, _ := json.Marshal(job)
		pipe.Set(ctx, q.jobKey(jobID), data, jobTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

// Nack records a failure and retries with backoff until attempts run out.
func (q *Queue) Nack(ctx context.Context, jobID string, reason string) error {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}

	pipe := q.client.TxPipeline()
	q.releaseMessage(ctx, pipe, jobID)

	if job.Status == domain.JobStatusProcessing {
		if job.CanRetry() {
			job.Retry(reason)
			pipe.ZAdd(ctx, q.delayed, redis.Z{Score: score(job.ScheduledFor), Member: job.ID})
		} else {
			job.MarkFailed(reason)
		}
		data, _ := json.Marshal(job)
		pipe.Set(ctx, q.jobKey(jobID), data, jobTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to nack job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (q *Queue) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	data, err := q.client.Get(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job domain.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// ListByState returns the jobs currently in a partition.
// It scans every job record, so it is O(N) in the number of stored jobs.
func (q *Queue) ListByState(ctx context.Context, state domain.JobState) ([]*domain.Job, error) {
	now := time.Now()
	var jobs []*domain.Job
	err := q.scanJobs(ctx, func(_ string, job *domain.Job) {
		if job.State(now) == state {
			jobs = append(jobs, job)
		}
	})
	return jobs, err
}

// PurgeJobs removes finished jobs last updated before the cutoff.
func (q *Queue) PurgeJobs(ctx context.Context, before time.Time) (int, error) {
	var stale []string
	err := q.scanJobs(ctx, func(key string, job *domain.Job) {
		if job.IsFinished() && job.UpdatedAt.Before(before) {
			stale = append(stale, key, key+msgSuffix)
		}
	})
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := q.client.Del(ctx, stale...).Err(); err != nil {
		return 0, fmt.Errorf("failed to purge jobs: %w", err)
	}
	return len(stale) / 2, nil
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close cleans up resources.
func (q *Queue) Close() error {
	// Redis client is shared, don't close it here
	return nil
}

// promoteDelayed moves due delayed jobs onto the stream. ZREM decides which
// worker promotes a job, so concurrent promoters never double-publish.
func (q *Queue) promoteDelayed(ctx context.Context) error {
	due, err := q.client.ZRangeByScore(ctx, q.delayed, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(time.Now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return err
	}

	for _, jobID := range due {
		removed, err := q.client.ZRem(ctx, q.delayed, jobID).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		if err := q.client.XAdd(ctx, q.pointer(jobID)).Err(); err != nil {
			return err
		}
	}
	return nil
}

// claimAbandoned takes over a message another worker read but never
// acknowledged.
func (q *Queue) claimAbandoned(ctx context.Context) (*domain.Job, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.stream,
		Group:  q.group,
		Start:  "-",
		End:    "+",
		Count:  10,
		Idle:   claimTimeout,
	}).Result()
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   q.stream,
			Group:    q.group,
			Consumer: q.consumerName,
			MinIdle:  claimTimeout,
			Messages: []string{p.ID},
		}).Result()
		if err != nil || len(claimed) == 0 {
			continue
		}

		msg := claimed[0]
		jobID, _ := msg.Values["job_id"].(string)
		job, err := q.GetJob(ctx, jobID)
		if err != nil || job == nil || job.IsFinished() {
			q.drop(ctx, msg.ID)
			continue
		}

		// The previous worker died mid-run: hand the job out again
		job.Status = domain.JobStatusPending
		job.ScheduledFor = time.Now()
		if err := q.save(ctx, job); err != nil {
			return nil, err
		}
		q.logger.Info("claimed abandoned job", "job_id", job.ID)
		return q.start(ctx, msg)
	}

	return nil, nil
}

// scanJobs calls fn for every stored job record.
func (q *Queue) scanJobs(ctx context.Context, fn func(key string, job *domain.Job)) error {
	var cursor uint64
	pattern := q.jobKey("*")

	for {
		keys, next, err := q.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan jobs: %w", err)
		}

		for _, key := range keys {
			if strings.HasSuffix(key, msgSuffix) {
				continue
			}
			data, err := q.client.Get(ctx, key).Result()
			if err != nil {
				continue
			}
			var job domain.Job
			if err := json.Unmarshal([]byte(data), &job); err != nil {
				continue
			}
			fn(key, &job)
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (q *Queue) save(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.Set(ctx, q.jobKey(job.ID), data, jobTTL).Err(); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// releaseMessage queues the ack and delete of the job's current stream
// message on pipe.
func (q *Queue) releaseMessage(ctx context.Context, pipe redis.Pipeliner, jobID string) {
	msgKey := q.jobKey(jobID) + msgSuffix
	if msgID, err := q.client.Get(ctx, msgKey).Result(); err == nil && msgID != "" {
		pipe.XAck(ctx, q.stream, q.group, msgID)
		pipe.XDel(ctx, q.stream, msgID)
	}
	pipe.Del(ctx, msgKey)
}

func (q *Queue) drop(ctx context.Context, msgID string) {
	q.client.XAck(ctx, q.stream, q.group, msgID)
	q.client.XDel(ctx, q.stream, msgID)
}

func (q *Queue) pointer(jobID string) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{"job_id": jobID},
	}
}

func (q *Queue) jobKey(jobID string) string {
	return keyPrefix + q.name + ":job:" + jobID
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func isGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
