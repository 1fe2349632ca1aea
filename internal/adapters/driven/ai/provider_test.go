package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// fakeOpenAI speaks enough of the OpenAI wire format for the adapters.
func fakeOpenAI(t *testing.T, deltas []string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": []float32{float32(i), 1}}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": "text-embedding-3-small"})
	})
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Stream bool `json:"stream"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		if !req.Stream {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"id":     "cmpl-1",
				"object": "chat.completion",
				"model":  "gpt-4o-mini",
				"choices": []map[string]any{{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": strings.Join(deltas, "")},
					"finish_reason": "stop",
				}},
			})
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, d := range deltas {
			chunk, _ := json.Marshal(map[string]any{
				"id":      "cmpl-1",
				"object":  "chat.completion.chunk",
				"model":   "gpt-4o-mini",
				"choices": []map[string]any{{"index": 0, "delta": map[string]string{"content": d}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", chunk)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func chatSettings(baseURL string) domain.ProviderSettings {
	return domain.ProviderSettings{
		Provider: domain.AIProviderOpenAI,
		Model:    "gpt-4o-mini",
		APIKey:   "sk-test",
		BaseURL:  baseURL,
	}
}

func TestEmbedding_OpenAI(t *testing.T) {
	srv := fakeOpenAI(t, nil)
	svc, err := NewFactory(FactoryConfig{}).EmbeddingService(openAISettings(srv.URL))
	if err != nil {
		t.Fatalf("EmbeddingService: %v", err)
	}

	vectors, err := svc.EmbedDocuments(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedDocuments: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vectors))
	}
	if vectors[2][0] != 2 {
		t.Errorf("expected vectors in input order, got %v", vectors)
	}

	q, err := svc.EmbedQuery(context.Background(), "query")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if len(q) != 2 {
		t.Errorf("expected 2 dimensions, got %d", len(q))
	}
}

func TestEmbedding_Empty(t *testing.T) {
	svc := &Embedding{model: "m"}

	vectors, err := svc.EmbedDocuments(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Errorf("expected nil, nil for no texts, got %v %v", vectors, err)
	}
}

func TestEmbedding_ProviderDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"down"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc, _ := NewFactory(FactoryConfig{}).EmbeddingService(openAISettings(srv.URL))
	_, err := svc.EmbedQuery(context.Background(), "q")
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestChat_Complete(t *testing.T) {
	srv := fakeOpenAI(t, []string{"Hello", ", world"})
	svc, err := NewFactory(FactoryConfig{}).ChatService(chatSettings(srv.URL))
	if err != nil {
		t.Fatalf("ChatService: %v", err)
	}

	got, err := svc.Complete(context.Background(), []domain.ChatMessage{{Role: domain.ChatRoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "Hello, world" {
		t.Errorf("got %q", got)
	}
}

func TestChat_Stream(t *testing.T) {
	srv := fakeOpenAI(t, []string{"Hel", "lo", "!"})
	svc, _ := NewFactory(FactoryConfig{}).ChatService(chatSettings(srv.URL))

	deltas, err := svc.Stream(context.Background(), []domain.ChatMessage{
		{Role: domain.ChatRoleSystem, Content: "be brief"},
		{Role: domain.ChatRoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var text strings.Builder
	for d := range deltas {
		if d.Err != nil {
			t.Fatalf("unexpected stream error: %v", d.Err)
		}
		text.WriteString(d.Text)
	}
	if text.String() != "Hello!" {
		t.Errorf("got %q", text.String())
	}
}

func TestChat_StreamProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc, _ := NewFactory(FactoryConfig{}).ChatService(chatSettings(srv.URL))
	deltas, err := svc.Stream(context.Background(), []domain.ChatMessage{{Role: domain.ChatRoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var last domain.ChatDelta
	for d := range deltas {
		last = d
	}
	if !errors.Is(last.Err, domain.ErrServiceUnavailable) {
		t.Errorf("expected final delta with ErrServiceUnavailable, got %+v", last)
	}
}

func TestChat_StreamCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"choices":[{"index":0,"delta":{"content":"partial"}}]}`+"\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	svc, _ := NewFactory(FactoryConfig{}).ChatService(chatSettings(srv.URL))
	ctx, cancel := context.WithCancel(context.Background())
	deltas, err := svc.Stream(ctx, []domain.ChatMessage{{Role: domain.ChatRoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	first := <-deltas
	if first.Text != "partial" {
		t.Fatalf("expected partial delta, got %+v", first)
	}
	cancel()

	select {
	case d, ok := <-deltas:
		if ok && d.Err != nil {
			t.Errorf("expected no error delta after cancellation, got %v", d.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after cancellation")
	}
}

func TestChat_StreamOutlastsHeaderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, d := range []string{"slow", " but", " steady"} {
			fmt.Fprintf(w, `data: {"choices":[{"index":0,"delta":{"content":%q}}]}`+"\n\n", d)
			flusher.Flush()
			time.Sleep(150 * time.Millisecond)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	f := NewFactory(FactoryConfig{RequestTimeout: 200 * time.Millisecond, ResponseHeaderTimeout: 200 * time.Millisecond})
	svc, err := f.ChatService(chatSettings(srv.URL))
	if err != nil {
		t.Fatalf("ChatService: %v", err)
	}

	deltas, err := svc.Stream(context.Background(), []domain.ChatMessage{{Role: domain.ChatRoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var text strings.Builder
	for d := range deltas {
		if d.Err != nil {
			t.Fatalf("stream cut off after %q: %v", text.String(), d.Err)
		}
		text.WriteString(d.Text)
	}
	if text.String() != "slow but steady" {
		t.Errorf("got %q", text.String())
	}
}

func TestChat_StreamHeaderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	f := NewFactory(FactoryConfig{ResponseHeaderTimeout: 100 * time.Millisecond})
	svc, _ := f.ChatService(chatSettings(srv.URL))
	deltas, err := svc.Stream(context.Background(), []domain.ChatMessage{{Role: domain.ChatRoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var last domain.ChatDelta
	for d := range deltas {
		last = d
	}
	if last.Err == nil {
		t.Error("expected an error when the provider never answers")
	}
}

func TestChat_StreamAlreadyCancelled(t *testing.T) {
	svc := &Chat{model: "m"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Stream(ctx, nil); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestRoleType(t *testing.T) {
	msgs := toMessageContent([]domain.ChatMessage{
		{Role: domain.ChatRoleSystem, Content: "s"},
		{Role: domain.ChatRoleUser, Content: "u"},
		{Role: domain.ChatRoleAssistant, Content: "a"},
	})
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[1].Role != "human" || msgs[2].Role != "ai" {
		t.Errorf("unexpected roles %s %s %s", msgs[0].Role, msgs[1].Role, msgs[2].Role)
	}
}
