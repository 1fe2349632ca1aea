package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure chatService implements ChatService
var _ driving.ChatService = (*chatService)(nil)

// contextSeparator sits between retrieved chunks in the system prompt
const contextSeparator = "\n---\n"

const groundingPrompt = `You answer questions about a team's knowledge base.
Answer only from the context below. If the context does not contain the answer, say that you do not know.
Do not invent facts, links or document names. Quote document titles when they help the reader find the source.

Context:
%s`

// chatService streams answers grounded in retrieved chunks.
type chatService struct {
	retrieval driving.RetrievalService
	settings  driving.SettingsService
	providers driven.ProviderFactory
	logger    *slog.Logger
}

// ChatServiceConfig holds configuration for the chat service.
type ChatServiceConfig struct {
	Retrieval driving.RetrievalService
	Settings  driving.SettingsService
	Providers driven.ProviderFactory
	Logger    *slog.Logger
}

// NewChatService creates a new ChatService
func NewChatService(cfg ChatServiceConfig) driving.ChatService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &chatService{
		retrieval: cfg.Retrieval,
		settings:  cfg.Settings,
		providers: cfg.Providers,
		logger:    logger,
	}
}

// StreamAnswer retrieves sources and streams a grounded answer.
//
// Everything that can fail before the first event (settings, client
// construction, retrieval) is returned as an error. Once the channel is
// handed out, failures arrive as a terminal error event instead.
func (s *chatService) StreamAnswer(ctx context.Context, req domain.ChatRequest) (<-chan domain.ChatStreamEvent, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}

	settings := s.settings.Resolve(ctx, req.TeamID)
	k := req.K
	if k <= 0 {
		k = settings.RetrievalK
	}

	client, err := s.providers.ChatService(settings.Chat)
	if err != nil {
		return nil, err
	}

	sources, err := s.retrieval.SimilaritySearchWithScore(ctx, domain.SearchRequest{
		Query:         req.Question,
		K:             k,
		TeamID:        req.TeamID,
		CollectionIDs: req.CollectionIDs,
	})
	if err != nil {
		return nil, err
	}

	events := make(chan domain.ChatStreamEvent)
	go s.stream(ctx, client, req, sources, events)
	return events, nil
}

func (s *chatService) stream(ctx context.Context, client driven.ChatService, req domain.ChatRequest, sources []domain.RetrievedSource, events chan<- domain.ChatStreamEvent) {
	defer close(events)

	// send blocks until the consumer takes the event or goes away
	send := func(ev domain.ChatStreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if sources == nil {
		sources = []domain.RetrievedSource{}
	}
	if !send(domain.ChatStreamEvent{Type: domain.ChatEventSources, Sources: sources}) {
		return
	}

	if len(sources) == 0 {
		if send(domain.ChatStreamEvent{Type: domain.ChatEventChunk, Content: domain.NoRelevantDocumentsMarker}) {
			send(domain.ChatStreamEvent{Type: domain.ChatEventDone})
		}
		return
	}

	deltas, err := client.Stream(ctx, buildMessages(sources, req.History, req.Question))
	if err != nil {
		s.fail(ctx, send, req.TeamID, err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("chat stream abandoned by client", "team_id", req.TeamID)
			return
		case delta, ok := <-deltas:
			if !ok {
				send(domain.ChatStreamEvent{Type: domain.ChatEventDone})
				return
			}
			if delta.Err != nil {
				s.fail(ctx, send, req.TeamID, delta.Err)
				return
			}
			if delta.Text == "" {
				continue
			}
			if !send(domain.ChatStreamEvent{Type: domain.ChatEventChunk, Content: delta.Text}) {
				return
			}
		}
	}
}

func (s *chatService) fail(ctx context.Context, send func(domain.ChatStreamEvent) bool, teamID string, err error) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Error("chat stream failed", "team_id", teamID, "error", err)
	send(domain.ChatStreamEvent{Type: domain.ChatEventError, Error: err.Error()})
}

// buildMessages assembles the system prompt with the retrieved context,
// then the prior conversation, then the question.
func buildMessages(sources []domain.RetrievedSource, history []domain.ChatMessage, question string) []domain.ChatMessage {
	parts := make([]string, 0, len(sources))
	for _, src := range sources {
		if title := src.Metadata.DocumentTitle; title != "" {
			parts = append(parts, fmt.Sprintf("[%s]\n%s", title, src.Content))
			continue
		}
		parts = append(parts, src.Content)
	}

	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{
		Role:    domain.ChatRoleSystem,
		Content: fmt.Sprintf(groundingPrompt, strings.Join(parts, contextSeparator)),
	})
	for _, m := range history {
		if m.Role == domain.ChatRoleSystem || strings.TrimSpace(m.Content) == "" {
			continue
		}
		messages = append(messages, m)
	}
	return append(messages, domain.ChatMessage{Role: domain.ChatRoleUser, Content: question})
}
