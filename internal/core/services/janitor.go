package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure Janitor implements driving.Janitor
var _ driving.Janitor = (*Janitor)(nil)

const janitorLockName = "janitor"

// Janitor periodically purges finished job records from the queues.
// It runs on worker nodes.
//
// For multi-worker deployments, configure a DistributedLock so only one
// instance sweeps per interval.
type Janitor struct {
	queues []driven.JobQueue
	lock   driven.DistributedLock
	logger *slog.Logger

	// Internal state
	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	interval  time.Duration
	retention time.Duration
	lockTTL   time.Duration
}

// JanitorConfig holds configuration for the janitor.
type JanitorConfig struct {
	Queues    []driven.JobQueue
	Lock      driven.DistributedLock // Optional: distributed lock for multi-instance coordination
	Logger    *slog.Logger
	Interval  time.Duration // How often to sweep (default: 10m)
	Retention time.Duration // How long finished jobs are kept (default: 24h)
	LockTTL   time.Duration // TTL for the distributed lock (default: 60s)
}

// NewJanitor creates a new janitor.
func NewJanitor(cfg JanitorConfig) *Janitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = 10 * time.Minute
	}

	retention := cfg.Retention
	if retention == 0 {
		retention = 24 * time.Hour
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 60 * time.Second
	}

	return &Janitor{
		queues:    cfg.Queues,
		lock:      cfg.Lock,
		logger:    logger,
		interval:  interval,
		retention: retention,
		lockTTL:   lockTTL,
	}
}

// Start begins the sweep loop.
// It runs until Stop is called or context is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	j.logger.Info("janitor starting", "interval", j.interval, "retention", j.retention)

	go j.run(ctx)
}

// Stop gracefully stops the janitor.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	close(j.stopCh)
	j.mu.Unlock()

	<-j.doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()

	j.logger.Info("janitor stopped")
}

func (j *Janitor) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweepLocked(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopCh:
			return
		case <-ticker.C:
			j.sweepLocked(ctx)
		}
	}
}

// sweepLocked runs a sweep if this instance holds the lock.
func (j *Janitor) sweepLocked(ctx context.Context) {
	if j.lock != nil {
		acquired, err := j.lock.Acquire(ctx, janitorLockName, j.lockTTL)
		if err != nil {
			j.logger.Warn("failed to acquire janitor lock", "error", err)
			return
		}
		if !acquired {
			j.logger.Debug("janitor lock held by another instance, skipping sweep")
			return
		}
		defer func() {
			if err := j.lock.Release(ctx, janitorLockName); err != nil {
				j.logger.Warn("failed to release janitor lock", "error", err)
			}
		}()
	}

	if _, err := j.Sweep(ctx); err != nil {
		j.logger.Error("janitor sweep failed", "error", err)
	}
}

// Sweep purges finished jobs older than the retention from every queue.
// A failing queue does not stop the others; the first error is returned.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-j.retention)
	total := 0
	var firstErr error
	for _, q := range j.queues {
		n, err := q.PurgeJobs(ctx, cutoff)
		if err != nil {
			j.logger.Warn("failed to purge jobs", "queue", q.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		total += n
		if n > 0 {
			j.logger.Info("purged finished jobs", "queue", q.Name(), "count", n)
		}
	}
	return total, firstErr
}
