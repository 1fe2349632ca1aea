package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Chat implements ChatService
var _ driven.ChatService = (*Chat)(nil)

// Chat adapts a langchaingo model
type Chat struct {
	llm   llms.Model
	model string
}

// Complete returns the whole completion at once
func (c *Chat) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	resp, err := c.llm.GenerateContent(ctx, toMessageContent(messages))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", domain.ErrServiceUnavailable)
	}
	return resp.Choices[0].Content, nil
}

// Stream runs the completion in the background and forwards each streamed
// fragment as a delta. A provider failure is the final delta.
func (c *Chat) Stream(ctx context.Context, messages []domain.ChatMessage) (<-chan domain.ChatDelta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content := toMessageContent(messages)
	out := make(chan domain.ChatDelta)

	go func() {
		defer close(out)

		forward := func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			select {
			case out <- domain.ChatDelta{Text: string(chunk)}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		_, err := c.llm.GenerateContent(ctx, content, llms.WithStreamingFunc(forward))
		if err == nil || ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}
		select {
		case out <- domain.ChatDelta{Err: fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)}:
		case <-ctx.Done():
		}
	}()

	return out, nil
}

// Model returns the chat model name
func (c *Chat) Model() string {
	return c.model
}

func toMessageContent(messages []domain.ChatMessage) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		out = append(out, llms.TextParts(roleType(m.Role), m.Content))
	}
	return out
}

func roleType(r domain.ChatRole) llms.ChatMessageType {
	switch r {
	case domain.ChatRoleSystem:
		return llms.ChatMessageTypeSystem
	case domain.ChatRoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
