package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// MockChatService streams a scripted list of deltas.
type MockChatService struct {
	mu sync.Mutex

	// Deltas are streamed in order
	Deltas []string

	// StreamErr is sent after Deltas when set
	StreamErr error

	// StartErr makes Stream fail before starting
	StartErr error

	// Block makes Stream wait for cancellation after the scripted deltas
	Block bool

	received [][]domain.ChatMessage
	finished chan struct{}
}

// NewMockChatService creates a mock that streams the given deltas
func NewMockChatService(deltas ...string) *MockChatService {
	return &MockChatService{Deltas: deltas}
}

func (m *MockChatService) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	m.record(messages)
	if m.StartErr != nil {
		return "", m.StartErr
	}
	return strings.Join(m.Deltas, ""), nil
}

func (m *MockChatService) Stream(ctx context.Context, messages []domain.ChatMessage) (<-chan domain.ChatDelta, error) {
	m.record(messages)
	if m.StartErr != nil {
		return nil, m.StartErr
	}

	finished := m.finishedCh()
	out := make(chan domain.ChatDelta)
	go func() {
		defer close(finished)
		defer close(out)

		for _, d := range m.Deltas {
			select {
			case out <- domain.ChatDelta{Text: d}:
			case <-ctx.Done():
				return
			}
		}
		if m.Block {
			<-ctx.Done()
			return
		}
		if m.StreamErr != nil {
			select {
			case out <- domain.ChatDelta{Err: m.StreamErr}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

func (m *MockChatService) Model() string {
	return "mock-chat-model"
}

func (m *MockChatService) record(messages []domain.ChatMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, messages)
}

// Received returns the message sequences passed to the provider.
func (m *MockChatService) Received() [][]domain.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received
}

// Finished is closed when the streaming goroutine has exited.
func (m *MockChatService) Finished() <-chan struct{} {
	return m.finishedCh()
}

func (m *MockChatService) finishedCh() chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished == nil {
		m.finished = make(chan struct{})
	}
	return m.finished
}
