package main

// @title           Sercha RAG API
// @version         1.0
// @description     Retrieval-augmented generation for team knowledge bases. Indexes host documents into a vector store and answers questions grounded in them.

// @contact.name   Sercha OSS
// @contact.url    https://github.com/custodia-labs/sercha-rag/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/sercha-rag/docs"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/auth"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/http"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/kafka"
	"github.com/custodia-labs/sercha-rag/internal/config"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/normalisers"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors"
	"github.com/custodia-labs/sercha-rag/internal/runtime"
	"github.com/custodia-labs/sercha-rag/internal/worker"
)

var version = "dev"

func main() {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	// Mode from RUN_MODE, or the first argument
	if len(os.Args) > 1 {
		if os.Args[1] == "token" {
			if err := issueToken(cfg, os.Args[2:]); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		}
		cfg.RunMode = os.Args[1]
		if err := cfg.Validate(); err != nil {
			logger.Error("invalid configuration", "error", err)
			os.Exit(1)
		}
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("sercha-rag exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("sercha-rag starting", "version", version, "mode", cfg.RunMode)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ===== Infrastructure =====
	infra, err := runtime.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	// ===== Core services =====
	settingsService := services.NewSettingsService(services.SettingsServiceConfig{
		Store:    infra.Settings,
		Defaults: cfg.Defaults,
		Logger:   logger,
	})
	indexingService := services.NewIndexingService(services.IndexingServiceConfig{
		Store:       infra.Vectors,
		Settings:    settingsService,
		Providers:   infra.Providers,
		Normalisers: normalisers.DefaultRegistry(),
		Pipeline:    postprocessors.Build,
		Logger:      logger,
	})
	retrievalService := services.NewRetrievalService(services.RetrievalServiceConfig{
		Store:     infra.Vectors,
		Settings:  settingsService,
		Providers: infra.Providers,
		Logger:    logger,
	})
	chatService := services.NewChatService(services.ChatServiceConfig{
		Retrieval: retrievalService,
		Settings:  settingsService,
		Providers: infra.Providers,
		Logger:    logger,
	})
	eventScheduler := services.NewEventScheduler(services.EventSchedulerConfig{
		Lifecycle:     infra.Lifecycle,
		Processor:     infra.Processor,
		Documents:     infra.Documents,
		Indexer:       indexingService,
		DebounceDelay: cfg.Worker.DebounceDelay,
		Logger:        logger,
	})
	statusService := services.NewStatusService(services.StatusServiceConfig{
		Index:     infra.Vectors,
		Queues:    []driven.JobQueue{infra.Lifecycle, infra.Processor},
		Documents: infra.Documents,
		Logger:    logger,
	})

	errCh := make(chan error, 1)

	if cfg.RunsWorker() {
		janitor := services.NewJanitor(services.JanitorConfig{
			Queues:    []driven.JobQueue{infra.Lifecycle, infra.Processor},
			Lock:      infra.Lock,
			Logger:    logger,
			Interval:  cfg.Worker.JanitorInterval,
			Retention: cfg.Worker.JobRetention,
		})
		w := worker.NewWorker(worker.WorkerConfig{
			Lifecycle:      infra.Lifecycle,
			Processor:      infra.Processor,
			Events:         eventScheduler,
			Janitor:        janitor,
			Logger:         logger,
			Concurrency:    cfg.Worker.Concurrency,
			DequeueTimeout: cfg.Worker.DequeueTimeout,
		})
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}
		defer w.Stop()

		if len(cfg.Kafka.Brokers) > 0 {
			consumer, err := kafka.NewConsumer(kafka.Config{
				Brokers: cfg.Kafka.Brokers,
				Topic:   cfg.Kafka.Topic,
				GroupID: cfg.Kafka.GroupID,
				Events:  eventScheduler,
				Logger:  logger,
			})
			if err != nil {
				return fmt.Errorf("create kafka consumer: %w", err)
			}
			consumer.Start(ctx)
			defer consumer.Close()
			// The consume loop only exits once ctx ends
			defer cancel()
			logger.Info("consuming lifecycle events", "topic", cfg.Kafka.Topic, "brokers", strings.Join(cfg.Kafka.Brokers, ","))
		}
	}

	if cfg.RunsAPI() {
		docs.SwaggerInfo.Version = version

		server := http.NewServer(http.Config{
			Host:      "0.0.0.0",
			Port:      cfg.Server.Port,
			Version:   version,
			RateLimit: cfg.Server.RateLimit,
			RateBurst: cfg.Server.RateBurst,
			Logger:    logger,
		}, http.Services{
			Events:    eventScheduler,
			Indexing:  indexingService,
			Status:    statusService,
			Retrieval: retrievalService,
			Chat:      chatService,
			Settings:  settingsService,
			Verifier:  auth.NewVerifier(cfg.Auth.JWTSecret),
			Checks: map[string]http.Pinger{
				"database":        infra.DB,
				"lifecycle_queue": infra.Lifecycle,
				"processor_queue": infra.Processor,
				"lock":            infra.Lock,
			},
		})

		go func() {
			errCh <- server.Start(ctx)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	// Give the HTTP server its graceful shutdown before resources close
	if cfg.RunsAPI() {
		select {
		case err := <-errCh:
			return err
		case <-time.After(35 * time.Second):
			return fmt.Errorf("http server did not shut down in time")
		}
	}
	return nil
}

// newLogger builds the process logger from LOG_FORMAT and LOG_LEVEL.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler).With("service", "sercha-rag")
}

// issueToken prints a signed API token, for wiring a host system or for
// local testing.
func issueToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	teamID := fs.String("team", "", "team ID the token is scoped to (required)")
	role := fs.String("role", string(domain.RoleService), "role: admin, member or service")
	userID := fs.String("user", "host", "user ID recorded in the token")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *teamID == "" {
		return fmt.Errorf("token: -team is required")
	}
	if !domain.Role(*role).IsValid() {
		return fmt.Errorf("token: unknown role %q", *role)
	}

	token, err := auth.NewVerifier(cfg.Auth.JWTSecret).IssueToken(domain.TokenClaims{
		UserID: *userID,
		Role:   domain.Role(*role),
		TeamID: *teamID,
	}, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
