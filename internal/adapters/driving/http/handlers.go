package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/swaggo/swag"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse reports dependency health
// @Description Readiness with the failing dependencies
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Failed map[string]string `json:"failed,omitempty"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// EventResponse reports what happened to a submitted event
// @Description Accepted lifecycle event
type EventResponse struct {
	Accepted bool   `json:"accepted"`
	JobID    string `json:"job_id,omitempty"`
	Queue    string `json:"queue,omitempty"`
}

// IndexDocumentRequest carries a document to index directly
// @Description Document content and metadata to index
type IndexDocumentRequest struct {
	ID           string     `json:"id" example:"doc-1"`
	CollectionID string     `json:"collection_id" example:"col-1"`
	Title        string     `json:"title"`
	Text         string     `json:"text"`
	MimeType     string     `json:"mime_type,omitempty" example:"text/markdown"`
	CreatedByID  string     `json:"created_by_id,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	Force        bool       `json:"force,omitempty"`
}

// SearchResponse holds scored search results
// @Description Similarity search results, ascending by distance
type SearchResponse struct {
	Results []domain.RetrievedSource `json:"results"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the database, queues and lock backend
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	failed := make(map[string]string)
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "unavailable", Failed: failed})
		return
	}
	writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

func (s *Server) handleSwagger(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusNotFound, "api docs not registered")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(doc))
}

// Host integration endpoints

// handleSubmitEvent godoc
// @Summary      Submit a lifecycle event
// @Description  Queues indexing work for a document change. Updates are debounced per document.
// @Tags         Events
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.LifecycleEvent  true  "Lifecycle event"
// @Success      202      {object}  EventResponse
// @Failure      400      {object}  ErrorResponse
// @Router       /api/v1/events [post]
func (s *Server) handleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())

	var event domain.LifecycleEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	event.TeamID = authCtx.TeamID

	job, err := s.events.Submit(r.Context(), &event)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := EventResponse{Accepted: job != nil}
	if job != nil {
		resp.JobID = job.ID
		resp.Queue = job.Queue
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// handleIndexDocument godoc
// @Summary      Index a document
// @Description  Replaces the document's chunks with a fresh chunk set
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      IndexDocumentRequest  true  "Document"
// @Success      200      {object}  domain.IndexResult
// @Failure      400      {object}  ErrorResponse
// @Failure      422      {object}  ErrorResponse  "Provider not configured"
// @Router       /api/v1/documents/index [post]
func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())

	var req IndexDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc := &domain.Document{
		ID:           req.ID,
		TeamID:       authCtx.TeamID,
		CollectionID: req.CollectionID,
		Title:        req.Title,
		Text:         req.Text,
		MimeType:     req.MimeType,
		CreatedByID:  req.CreatedByID,
		UpdatedAt:    req.UpdatedAt,
		PublishedAt:  req.PublishedAt,
	}

	result, err := s.indexing.IndexDocument(r.Context(), doc, req.Force)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleDeleteDocumentIndex godoc
// @Summary      Remove a document from the index
// @Tags         Documents
// @Security     BearerAuth
// @Param        id   path  string  true  "Document ID"
// @Success      204
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/documents/{id}/index [delete]
func (s *Server) handleDeleteDocumentIndex(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	meta, ok := s.ownedMetadata(w, r, id)
	if !ok {
		return
	}

	if err := s.indexing.DeleteDocument(r.Context(), meta.TeamID, id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetDocumentIndex godoc
// @Summary      Get a document's indexed metadata
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  domain.ChunkMetadata
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/documents/{id}/index [get]
func (s *Server) handleGetDocumentIndex(w http.ResponseWriter, r *http.Request) {
	meta, ok := s.ownedMetadata(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// ownedMetadata loads a document's chunk metadata and hides documents of
// other teams behind a 404.
func (s *Server) ownedMetadata(w http.ResponseWriter, r *http.Request, id string) (*domain.ChunkMetadata, bool) {
	authCtx := GetAuthContext(r.Context())

	meta, err := s.indexing.FindDocumentMetadata(r.Context(), authCtx.TeamID, id)
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	if meta == nil || meta.TeamID != authCtx.TeamID {
		writeError(w, http.StatusNotFound, "document not indexed")
		return nil, false
	}
	return meta, true
}

// Retrieval endpoints

// handleSearch godoc
// @Summary      Similarity search
// @Description  Returns the team's chunks nearest to the query, within the score threshold
// @Tags         Search
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.SearchRequest  true  "Search request"
// @Success      200      {object}  SearchResponse
// @Failure      400      {object}  ErrorResponse
// @Failure      429      {object}  ErrorResponse
// @Router       /api/v1/search [post]
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())

	var req domain.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	req.TeamID = authCtx.TeamID

	results, err := s.retrieval.SimilaritySearchWithScore(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if results == nil {
		results = []domain.RetrievedSource{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// handleIndexStatus godoc
// @Summary      Indexing status
// @Description  Lists indexed documents and documents with queued or running work
// @Tags         Status
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.IndexingStatus
// @Router       /api/v1/index/status [get]
func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())

	status, err := s.status.GetIndexingStatus(r.Context(), authCtx.TeamID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Settings endpoints

// handleGetSettings godoc
// @Summary      Get team settings
// @Description  Returns the team's overrides and effective settings. API keys are reported only as set or unset.
// @Tags         Settings
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  driving.SettingsView
// @Failure      403  {object}  ErrorResponse
// @Router       /api/v1/settings [get]
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())

	view, err := s.settings.Get(r.Context(), authCtx.TeamID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleUpdateSettings godoc
// @Summary      Update team settings
// @Tags         Settings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      driving.UpdateSettingsRequest  true  "Overrides to change"
// @Success      200      {object}  driving.SettingsView
// @Failure      400      {object}  ErrorResponse
// @Router       /api/v1/settings [put]
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())

	var req driving.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := s.settings.Update(r.Context(), authCtx.TeamID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeDomainError maps service errors onto status codes
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrUnknownEvent),
		errors.Is(err, domain.ErrInvalidProvider):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrProviderNotConfigured):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
