package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// handleChat godoc
// @Summary      Grounded chat
// @Description  Streams an answer as Server-Sent Events: one sources event, chunk events, then done or error
// @Tags         Chat
// @Accept       json
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        request  body      domain.ChatRequest  true  "Question and history"
// @Success      200      {string}  string  "event stream"
// @Failure      400      {object}  ErrorResponse
// @Failure      422      {object}  ErrorResponse  "Provider not configured"
// @Failure      429      {object}  ErrorResponse
// @Router       /api/v1/chat [post]
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.TeamID = authCtx.TeamID

	// The request context ends when the client goes away, which cancels
	// retrieval and the provider call behind the stream
	events, err := s.chat.StreamAnswer(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for ev := range events {
		if err := writeEvent(w, ev); err != nil {
			s.logger.Debug("chat client went away", "team_id", authCtx.TeamID, "error", err)
			// Drain so the producer can observe cancellation and exit
			for range events {
			}
			return
		}
		if err := rc.Flush(); err != nil {
			s.logger.Debug("chat flush failed", "error", err)
		}
	}
}

// writeEvent writes one SSE frame. Each event type carries only its own
// field, and sources is always an array.
func writeEvent(w http.ResponseWriter, ev domain.ChatStreamEvent) error {
	var payload any
	switch ev.Type {
	case domain.ChatEventSources:
		sources := ev.Sources
		if sources == nil {
			sources = []domain.RetrievedSource{}
		}
		payload = struct {
			Type    domain.ChatEventType     `json:"type"`
			Sources []domain.RetrievedSource `json:"sources"`
		}{ev.Type, sources}
	case domain.ChatEventChunk:
		payload = struct {
			Type    domain.ChatEventType `json:"type"`
			Content string               `json:"content"`
		}{ev.Type, ev.Content}
	case domain.ChatEventError:
		payload = struct {
			Type  domain.ChatEventType `json:"type"`
			Error string               `json:"error"`
		}{ev.Type, ev.Error}
	default:
		payload = struct {
			Type domain.ChatEventType `json:"type"`
		}{ev.Type}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
