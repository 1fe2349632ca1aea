package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// JobHandler runs one job. A returned error nacks the job.
type JobHandler func(ctx context.Context, job *domain.Job) error

// binding pairs a queue with the handler for its jobs
type binding struct {
	queue  driven.JobQueue
	handle JobHandler
}

// Worker processes jobs from the lifecycle and processor queues.
// Each queue gets its own pool of goroutines.
type Worker struct {
	bindings []binding
	janitor  driving.Janitor
	logger   *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout time.Duration

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	Lifecycle      driven.JobQueue
	Processor      driven.JobQueue
	Events         driving.EventScheduler
	Janitor        driving.Janitor // Optional: started and stopped with the worker
	Logger         *slog.Logger
	Concurrency    int           // Goroutines per queue
	DequeueTimeout time.Duration // How long to block waiting for a job
}

// NewWorker creates a new job worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5 * time.Second
	}

	var bindings []binding
	if cfg.Lifecycle != nil {
		bindings = append(bindings, binding{queue: cfg.Lifecycle, handle: cfg.Events.HandleLifecycleEvent})
	}
	if cfg.Processor != nil {
		bindings = append(bindings, binding{queue: cfg.Processor, handle: cfg.Events.HandleProcessorJob})
	}

	return &Worker{
		bindings:       bindings,
		janitor:        cfg.Janitor,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
	}
}

// Start begins the worker loops.
// They run until Stop is called or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"queues", len(w.bindings),
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	if w.janitor != nil {
		w.janitor.Start(ctx)
	}

	var wg sync.WaitGroup
	for _, b := range w.bindings {
		for i := 0; i < w.concurrency; i++ {
			wg.Add(1)
			go func(b binding, workerID int) {
				defer wg.Done()
				w.processLoop(ctx, b, workerID)
			}(b, i)
		}
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker. Jobs already dequeued finish first.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	if w.janitor != nil {
		w.janitor.Stop()
	}

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	w.mu.RLock()
	done := w.doneCh
	w.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// processLoop is the main loop of one worker goroutine.
func (w *Worker) processLoop(ctx context.Context, b binding, workerID int) {
	logger := w.logger.With("queue", b.queue.Name(), "worker_id", workerID)
	logger.Debug("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		job, err := b.queue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue job", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			case <-w.stopCh:
			}
			continue
		}

		if job == nil {
			continue
		}

		w.processJob(ctx, b, job, logger)
	}
}

// processJob runs one job and acks or nacks it.
func (w *Worker) processJob(ctx context.Context, b binding, job *domain.Job, logger *slog.Logger) {
	logger = logger.With("job_id", job.ID, "event", job.Name, "document_id", job.DocumentID, "team_id", job.TeamID)
	logger.Debug("processing job", "attempt", job.Attempts)

	startTime := time.Now()
	err := b.handle(ctx, job)
	duration := time.Since(startTime)

	if err != nil {
		logger.Warn("job failed", "duration", duration, "attempt", job.Attempts, "error", err)
		if nackErr := b.queue.Nack(ctx, job.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack job", "nack_error", nackErr)
		}
		return
	}

	logger.Info("job completed", "duration", duration)
	if ackErr := b.queue.Ack(ctx, job.ID); ackErr != nil {
		logger.Error("failed to ack job", "ack_error", ackErr)
	}
}

// Health reports whether the worker runs and its queues answer.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{Running: running, QueueHealth: true}
	for _, b := range w.bindings {
		if err := b.queue.Ping(ctx); err != nil {
			health.QueueHealth = false
			health.Error = b.queue.Name() + ": " + err.Error()
			break
		}
	}
	return health
}
