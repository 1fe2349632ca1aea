package ai

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Factory implements ProviderFactory
var _ driven.ProviderFactory = (*Factory)(nil)

// Factory builds langchaingo-backed provider clients and caches them by
// the hash of their settings, so tenants sharing a configuration share a
// client.
type Factory struct {
	httpClient   *http.Client // Requests with a bounded response (embeddings)
	streamClient *http.Client // Chat: responses stream for as long as the answer takes
	logger       *slog.Logger

	mu        sync.Mutex
	embedders map[string]driven.EmbeddingService
	chats     map[string]driven.ChatService
}

// FactoryConfig holds configuration for the provider factory.
type FactoryConfig struct {
	HTTPClient *http.Client // Overrides both default clients when set

	// RequestTimeout bounds a whole embedding request (default: 120s)
	RequestTimeout time.Duration
	// ResponseHeaderTimeout bounds the wait for a provider to start
	// answering. Streamed chat bodies have no overall limit; the caller's
	// context ends them. (default: 120s)
	ResponseHeaderTimeout time.Duration

	Logger *slog.Logger
}

// NewFactory creates a provider factory
func NewFactory(cfg FactoryConfig) *Factory {
	requestTimeout := cfg.RequestTimeout
	if requestTimeout == 0 {
		requestTimeout = 120 * time.Second
	}
	headerTimeout := cfg.ResponseHeaderTimeout
	if headerTimeout == 0 {
		headerTimeout = 120 * time.Second
	}

	httpClient, streamClient := cfg.HTTPClient, cfg.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = headerTimeout
		httpClient = &http.Client{Transport: transport, Timeout: requestTimeout}
		streamClient = &http.Client{Transport: transport}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		httpClient:   httpClient,
		streamClient: streamClient,
		logger:       logger,
		embedders:    make(map[string]driven.EmbeddingService),
		chats:        make(map[string]driven.ChatService),
	}
}

// EmbeddingService returns an embedding client for the settings
func (f *Factory) EmbeddingService(settings domain.ProviderSettings) (driven.EmbeddingService, error) {
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: embedding", domain.ErrProviderNotConfigured)
	}

	key := settings.Hash()
	f.mu.Lock()
	defer f.mu.Unlock()
	if svc, ok := f.embedders[key]; ok {
		return svc, nil
	}

	var client embeddings.EmbedderClient
	var err error
	switch settings.Provider {
	case domain.AIProviderOpenAI:
		client, err = openai.New(openAIOptions(settings, f.httpClient, openai.WithEmbeddingModel(settings.Model))...)
	case domain.AIProviderOllama:
		client, err = ollama.New(ollamaOptions(settings, f.httpClient)...)
	default:
		return nil, fmt.Errorf("%w: %s cannot produce embeddings", domain.ErrInvalidProvider, settings.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s embedding client: %w", settings.Provider, err)
	}

	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("create %s embedder: %w", settings.Provider, err)
	}

	svc := &Embedding{embedder: embedder, model: settings.Model}
	f.embedders[key] = svc
	f.logger.Debug("created embedding client", "provider", settings.Provider, "model", settings.Model)
	return svc, nil
}

// ChatService returns a chat client for the settings
func (f *Factory) ChatService(settings domain.ProviderSettings) (driven.ChatService, error) {
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: chat", domain.ErrProviderNotConfigured)
	}

	key := settings.Hash()
	f.mu.Lock()
	defer f.mu.Unlock()
	if svc, ok := f.chats[key]; ok {
		return svc, nil
	}

	var model llms.Model
	var err error
	switch settings.Provider {
	case domain.AIProviderOpenAI:
		model, err = openai.New(openAIOptions(settings, f.streamClient, openai.WithModel(settings.Model))...)
	case domain.AIProviderAnthropic:
		opts := []anthropic.Option{
			anthropic.WithToken(settings.APIKey),
			anthropic.WithModel(settings.Model),
			anthropic.WithHTTPClient(f.streamClient),
		}
		if settings.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(settings.BaseURL))
		}
		model, err = anthropic.New(opts...)
	case domain.AIProviderOllama:
		model, err = ollama.New(ollamaOptions(settings, f.streamClient)...)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s chat client: %w", settings.Provider, err)
	}

	svc := &Chat{llm: model, model: settings.Model}
	f.chats[key] = svc
	f.logger.Debug("created chat client", "provider", settings.Provider, "model", settings.Model)
	return svc, nil
}

func openAIOptions(settings domain.ProviderSettings, client *http.Client, extra ...openai.Option) []openai.Option {
	opts := []openai.Option{
		openai.WithToken(settings.APIKey),
		openai.WithHTTPClient(client),
	}
	if settings.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(settings.BaseURL))
	}
	return append(opts, extra...)
}

func ollamaOptions(settings domain.ProviderSettings, client *http.Client) []ollama.Option {
	opts := []ollama.Option{
		ollama.WithModel(settings.Model),
		ollama.WithHTTPClient(client),
	}
	if settings.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(settings.BaseURL))
	}
	return opts
}
