package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// ChatService turns a message sequence into a completion.
type ChatService interface {
	// Complete returns the whole completion at once.
	Complete(ctx context.Context, messages []domain.ChatMessage) (string, error)

	// Stream starts a streaming completion. Deltas arrive on the returned
	// channel in provider order; the channel is closed when the provider is
	// done. A failure mid-stream is sent as a final delta with Err set.
	// Cancelling ctx stops the provider call and closes the channel.
	// An error return means the stream never started.
	Stream(ctx context.Context, messages []domain.ChatMessage) (<-chan domain.ChatDelta, error)

	// Model returns the chat model name
	Model() string
}
