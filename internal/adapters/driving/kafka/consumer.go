package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads lifecycle events from a Kafka topic and submits them to
// the event scheduler. An offset is committed only once its event has been
// submitted or judged unprocessable.
type Consumer struct {
	reader MessageReader
	events driving.EventScheduler
	logger *slog.Logger

	retryBackoff time.Duration
	maxBackoff   time.Duration

	mu      sync.Mutex
	running bool
	doneCh  chan struct{}
}

// Config holds configuration for the consumer.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string

	// Reader overrides the reader built from Brokers, Topic and GroupID
	Reader MessageReader

	Events       driving.EventScheduler
	Logger       *slog.Logger
	RetryBackoff time.Duration // First wait after a transient submit failure (default: 1s)
	MaxBackoff   time.Duration // Cap on the wait between retries (default: 30s)
}

// NewConsumer creates a consumer.
func NewConsumer(cfg Config) (*Consumer, error) {
	if cfg.Events == nil {
		return nil, errors.New("kafka consumer: event scheduler is required")
	}

	reader := cfg.Reader
	if reader == nil {
		if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
			return nil, errors.New("kafka consumer: brokers, topic and group id are required")
		}
		reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: 1,
			MaxBytes: 10e6, // 10MB
		})
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}

	return &Consumer{
		reader:       reader,
		events:       cfg.Events,
		logger:       logger.With("component", "kafka_consumer"),
		retryBackoff: backoff,
		maxBackoff:   maxBackoff,
	}, nil
}

// Start consumes in the background until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.doneCh = make(chan struct{})

	go func() {
		defer close(c.doneCh)
		c.run(ctx)
	}()
}

// Wait blocks until the consume loop exits.
func (c *Consumer) Wait() {
	c.mu.Lock()
	done := c.doneCh
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close waits for the loop and closes the reader.
func (c *Consumer) Close() error {
	c.Wait()
	return c.reader.Close()
}

func (c *Consumer) run(ctx context.Context) {
	c.logger.Info("kafka consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("kafka consumer stopped")
				return
			}
			c.logger.Error("failed to fetch message", "error", err)
			if !sleep(ctx, c.retryBackoff) {
				return
			}
			continue
		}

		if !c.handle(ctx, msg) {
			return
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// handle submits one message, retrying transient failures. It returns
// false only when ctx ended before the message was settled.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) bool {
	logger := c.logger.With("partition", msg.Partition, "offset", msg.Offset)

	event, err := decodeEvent(msg.Value)
	if err != nil {
		logger.Warn("skipping malformed lifecycle event", "error", err)
		return true
	}
	logger = logger.With("event", event.Name, "document_id", event.DocumentID, "team_id", event.TeamID)

	backoff := c.retryBackoff
	for {
		job, err := c.events.Submit(ctx, event)
		switch {
		case err == nil:
			if job == nil {
				logger.Debug("lifecycle event dropped")
			} else {
				logger.Debug("lifecycle event submitted", "job_id", job.ID, "queue", job.Queue)
			}
			return true
		case isPermanent(err):
			logger.Warn("skipping invalid lifecycle event", "error", err)
			return true
		}

		logger.Error("failed to submit lifecycle event, retrying", "backoff", backoff, "error", err)
		if !sleep(ctx, backoff) {
			return false
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
}

func decodeEvent(value []byte) (*domain.LifecycleEvent, error) {
	var event domain.LifecycleEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if event.TeamID == "" {
		return nil, fmt.Errorf("%w: teamId is required", domain.ErrInvalidInput)
	}
	return &event, nil
}

// isPermanent reports errors that retrying cannot fix
func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrUnknownEvent)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
