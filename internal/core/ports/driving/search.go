package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// RetrievalService runs filtered similarity search.
type RetrievalService interface {
	// SimilaritySearchWithScore returns chunks ascending by distance, after
	// the collection re-check and the team's score threshold.
	SimilaritySearchWithScore(ctx context.Context, req domain.SearchRequest) ([]domain.RetrievedSource, error)

	// SimilaritySearch is SimilaritySearchWithScore without the scores.
	SimilaritySearch(ctx context.Context, req domain.SearchRequest) ([]domain.RetrievedSource, error)
}

// ChatService answers questions grounded in retrieved chunks.
type ChatService interface {
	// StreamAnswer returns an event channel carrying exactly one sources
	// event, any number of chunk events, then done or error, after which the
	// channel is closed. Setup failures before the first event are returned
	// directly. Cancelling ctx stops the provider call and closes the channel.
	StreamAnswer(ctx context.Context, req domain.ChatRequest) (<-chan domain.ChatStreamEvent, error)
}
