// Package runtime owns the process's pooled resources. Everything that holds
// a connection is opened here, handed to the services that need it, and
// closed in reverse order on shutdown.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/memory"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/postgres"
	redisqueue "github.com/custodia-labs/sercha-rag/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/sercha-rag/internal/adapters/driven/redis"
	"github.com/custodia-labs/sercha-rag/internal/config"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// VectorBackend is a vector store that can also report per-team aggregates.
type VectorBackend interface {
	driven.VectorStore
	driven.IndexStatusStore
}

// Services holds the shared infrastructure of one process.
// Fields are set by Open; Close releases them.
type Services struct {
	DB        *postgres.DB
	Redis     *redis.Client
	Vectors   VectorBackend
	Providers driven.ProviderFactory
	Lifecycle driven.JobQueue
	Processor driven.JobQueue
	Lock      driven.DistributedLock
	Documents driven.DocumentStore
	Settings  driven.SettingsStore

	logger *slog.Logger

	mu      sync.Mutex
	closers []namedCloser
	closed  bool
}

type namedCloser struct {
	name   string
	closer io.Closer
}

// New creates an empty registry. Open fills one from configuration.
func New(logger *slog.Logger) *Services {
	if logger == nil {
		logger = slog.Default()
	}
	return &Services{logger: logger}
}

// Open connects every backend the configuration names. On failure, whatever
// was already opened is closed before returning.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Services, err error) {
	s := New(logger)
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	dbCfg := postgres.DefaultConfig(cfg.Database.URL)
	dbCfg.MaxOpenConns = cfg.Database.MaxOpenConns
	dbCfg.MaxIdleConns = cfg.Database.MaxOpenConns
	dbCfg.Debug = cfg.Database.Debug

	s.logger.Info("connecting to postgres", "max_open_conns", dbCfg.MaxOpenConns)
	if s.DB, err = postgres.Connect(ctx, dbCfg); err != nil {
		return nil, err
	}
	s.Register("postgres", s.DB)

	if err = s.DB.InitSchema(ctx, cfg.VectorStore.Dimensions); err != nil {
		return nil, err
	}

	box, err := openSecretBox(cfg.Auth.SettingsEncryptionSecret, s.logger)
	if err != nil {
		return nil, err
	}
	s.Settings = postgres.NewSettingsStore(s.DB, box)
	s.Documents = postgres.NewDocumentStore(s.DB)

	if s.Vectors, err = s.openVectorStore(cfg.VectorStore.Type); err != nil {
		return nil, err
	}

	if err = s.OpenRedis(ctx, cfg.Redis.URL); err != nil {
		return nil, err
	}

	s.Providers = ai.NewFactory(ai.FactoryConfig{Logger: s.logger})
	return s, nil
}

// OpenRedis connects the queue and lock backend and creates both named queues.
func (s *Services) OpenRedis(ctx context.Context, url string) error {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	s.Redis = client
	s.Register("redis", client)

	consumer := fmt.Sprintf("worker-%d", os.Getpid())
	if hostname, err := os.Hostname(); err == nil {
		consumer = hostname + "-" + consumer
	}

	open := func(name string) (driven.JobQueue, error) {
		q, err := redisqueue.NewQueue(ctx, redisqueue.Config{
			Client:       client,
			Name:         name,
			ConsumerName: consumer,
			Logger:       s.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create %s queue: %w", name, err)
		}
		s.Register(name+" queue", q)
		return q, nil
	}
	if s.Lifecycle, err = open(domain.QueueLifecycle); err != nil {
		return err
	}
	if s.Processor, err = open(domain.QueueProcessor); err != nil {
		return err
	}

	s.Lock = redisadapter.NewLock(redisadapter.LockConfig{Client: client})
	return nil
}

func (s *Services) openVectorStore(kind string) (VectorBackend, error) {
	switch kind {
	case config.VectorStoreMemory:
		store, err := memory.NewVectorStore()
		if err != nil {
			return nil, err
		}
		s.logger.Warn("using in-memory vector store; the index is lost on restart")
		s.Register("vector store", store)
		return store, nil
	case config.VectorStorePostgres, "":
		store := postgres.NewVectorStore(s.DB)
		s.Register("vector store", store)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown vector store %q", kind)
	}
}

// openSecretBox returns nil when no secret is configured; the settings store
// then refuses to persist API keys.
func openSecretBox(secret string, logger *slog.Logger) (*postgres.SecretBox, error) {
	if secret == "" {
		logger.Warn("SETTINGS_ENCRYPTION_SECRET not set; team API keys cannot be stored")
		return nil, nil
	}
	return postgres.NewSecretBox(secret)
}

// Register adds a resource to be closed by Close, after everything
// registered later.
func (s *Services) Register(name string, c io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, namedCloser{name: name, closer: c})
}

// Close releases resources in reverse registration order. It is safe to
// call more than once.
func (s *Services) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if err := c.closer.Close(); err != nil {
			s.logger.Warn("failed to close resource", "resource", c.name, "error", err)
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}
