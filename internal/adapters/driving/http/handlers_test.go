package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/custodia-labs/sercha-rag/docs"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/auth"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

const testSecret = "test-secret"

type testServer struct {
	events    *mockEventScheduler
	indexing  *mockIndexingService
	status    *mockStatusService
	retrieval *mockRetrievalService
	chat      *mockChatService
	settings  *mockSettingsService
	checks    map[string]Pinger
	rateLimit float64
}

func newTestServer() *testServer {
	return &testServer{
		events:    &mockEventScheduler{},
		indexing:  &mockIndexingService{},
		status:    &mockStatusService{},
		retrieval: &mockRetrievalService{},
		chat:      &mockChatService{},
		settings:  &mockSettingsService{},
		checks:    map[string]Pinger{"database": &mockPinger{}},
	}
}

func (ts *testServer) build() *Server {
	cfg := DefaultConfig()
	cfg.RateLimit = ts.rateLimit
	cfg.RateBurst = 1
	return NewServer(cfg, Services{
		Events:    ts.events,
		Indexing:  ts.indexing,
		Status:    ts.status,
		Retrieval: ts.retrieval,
		Chat:      ts.chat,
		Settings:  ts.settings,
		Verifier:  auth.NewVerifier(testSecret),
		Checks:    ts.checks,
	})
}

func token(t *testing.T, role domain.Role, teamID string) string {
	t.Helper()
	tok, err := auth.NewVerifier(testSecret).IssueToken(domain.TokenClaims{UserID: "user-1", Role: role, TeamID: teamID}, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return tok
}

func do(t *testing.T, s *Server, method, path, tok string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer().build()

	if rec := do(t, s, "GET", "/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", rec.Code)
	}

	rec := do(t, s, "GET", "/version", "", nil)
	var v VersionResponse
	json.NewDecoder(rec.Body).Decode(&v)
	if v.Version != "dev" {
		t.Errorf("expected version dev, got %q", v.Version)
	}

	rec = do(t, s, "GET", "/swagger/doc.json", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("swagger: expected 200, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("/api/v1/chat")) {
		t.Error("expected swagger doc to describe the chat route")
	}
}

func TestReady(t *testing.T) {
	ts := newTestServer()
	s := ts.build()

	if rec := do(t, s, "GET", "/ready", "", nil); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	ts.checks["queue"] = &mockPinger{err: errors.New("connection refused")}
	s = ts.build()
	rec := do(t, s, "GET", "/ready", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var resp ReadyResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Failed["queue"] != "connection refused" {
		t.Errorf("expected failing queue to be reported, got %+v", resp.Failed)
	}
}

func TestAuthentication(t *testing.T) {
	s := newTestServer().build()

	if rec := do(t, s, "GET", "/api/v1/index/status", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: expected 401, got %d", rec.Code)
	}
	if rec := do(t, s, "GET", "/api/v1/index/status", "garbage", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: expected 401, got %d", rec.Code)
	}

	expired, _ := auth.NewVerifier(testSecret).IssueToken(domain.TokenClaims{UserID: "u", Role: domain.RoleMember, TeamID: "team-1"}, -time.Minute)
	rec := do(t, s, "GET", "/api/v1/index/status", expired, nil)
	var e ErrorResponse
	json.NewDecoder(rec.Body).Decode(&e)
	if rec.Code != http.StatusUnauthorized || e.Error != "token expired" {
		t.Errorf("expired token: got %d %q", rec.Code, e.Error)
	}
}

func TestSubmitEvent(t *testing.T) {
	ts := newTestServer()
	var got *domain.LifecycleEvent
	ts.events.submitFn = func(ctx context.Context, event *domain.LifecycleEvent) (*domain.Job, error) {
		got = event
		return &domain.Job{ID: "doc-1", Queue: domain.QueueLifecycle}, nil
	}
	s := ts.build()

	body := map[string]interface{}{"name": "update", "documentId": "doc-1", "teamId": "someone-else"}
	rec := do(t, s, "POST", "/api/v1/events", token(t, domain.RoleService, "team-1"), body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.TeamID != "team-1" {
		t.Errorf("expected team from token, got %q", got.TeamID)
	}

	var resp EventResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if !resp.Accepted || resp.JobID != "doc-1" || resp.Queue != "lifecycle" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestSubmitEvent_Dropped(t *testing.T) {
	ts := newTestServer()
	ts.events.submitFn = func(ctx context.Context, event *domain.LifecycleEvent) (*domain.Job, error) {
		return nil, nil
	}
	s := ts.build()

	rec := do(t, s, "POST", "/api/v1/events", token(t, domain.RoleService, "team-1"), map[string]string{"name": "update", "documentId": "doc-1"})
	var resp EventResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if rec.Code != http.StatusAccepted || resp.Accepted {
		t.Errorf("expected 202 with accepted=false, got %d %+v", rec.Code, resp)
	}
}

func TestSubmitEvent_Errors(t *testing.T) {
	ts := newTestServer()
	ts.events.submitFn = func(ctx context.Context, event *domain.LifecycleEvent) (*domain.Job, error) {
		return nil, domain.ErrUnknownEvent
	}
	s := ts.build()

	if rec := do(t, s, "POST", "/api/v1/events", token(t, domain.RoleService, "team-1"), map[string]string{"name": "bogus"}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown event: expected 400, got %d", rec.Code)
	}
	if rec := do(t, s, "POST", "/api/v1/events", token(t, domain.RoleMember, "team-1"), map[string]string{"name": "update"}); rec.Code != http.StatusForbidden {
		t.Errorf("member: expected 403, got %d", rec.Code)
	}
}

func TestIndexDocument(t *testing.T) {
	ts := newTestServer()
	var gotDoc *domain.Document
	var gotForce bool
	ts.indexing.indexFn = func(ctx context.Context, doc *domain.Document, force bool) (*domain.IndexResult, error) {
		gotDoc, gotForce = doc, force
		return &domain.IndexResult{DocumentID: doc.ID, Chunks: 3}, nil
	}
	s := ts.build()

	body := IndexDocumentRequest{ID: "doc-1", CollectionID: "col-1", Title: "T", Text: "hello", Force: true}
	rec := do(t, s, "POST", "/api/v1/documents/index", token(t, domain.RoleAdmin, "team-1"), body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotDoc.TeamID != "team-1" || gotDoc.CollectionID != "col-1" || !gotForce {
		t.Errorf("unexpected call doc=%+v force=%v", gotDoc, gotForce)
	}
}

func TestIndexDocument_ProviderNotConfigured(t *testing.T) {
	ts := newTestServer()
	ts.indexing.indexFn = func(ctx context.Context, doc *domain.Document, force bool) (*domain.IndexResult, error) {
		return nil, domain.ErrProviderNotConfigured
	}
	s := ts.build()

	rec := do(t, s, "POST", "/api/v1/documents/index", token(t, domain.RoleService, "team-1"), IndexDocumentRequest{ID: "doc-1"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestDocumentIndex_TeamScoped(t *testing.T) {
	ts := newTestServer()
	deleted := ""
	ts.indexing.findFn = func(ctx context.Context, teamID, id string) (*domain.ChunkMetadata, error) {
		if teamID == "team-1" && id == "doc-1" {
			return &domain.ChunkMetadata{DocumentID: "doc-1", TeamID: "team-1"}, nil
		}
		return nil, nil
	}
	ts.indexing.deleteFn = func(ctx context.Context, teamID, id string) error {
		deleted = teamID + "/" + id
		return nil
	}
	s := ts.build()

	if rec := do(t, s, "GET", "/api/v1/documents/doc-1/index", token(t, domain.RoleMember, "team-1"), nil); rec.Code != http.StatusOK {
		t.Errorf("own document: expected 200, got %d", rec.Code)
	}
	if rec := do(t, s, "GET", "/api/v1/documents/doc-1/index", token(t, domain.RoleMember, "team-2"), nil); rec.Code != http.StatusNotFound {
		t.Errorf("other team: expected 404, got %d", rec.Code)
	}
	if rec := do(t, s, "GET", "/api/v1/documents/missing/index", token(t, domain.RoleMember, "team-1"), nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing: expected 404, got %d", rec.Code)
	}

	if rec := do(t, s, "DELETE", "/api/v1/documents/doc-1/index", token(t, domain.RoleService, "team-2"), nil); rec.Code != http.StatusNotFound {
		t.Errorf("delete other team: expected 404, got %d", rec.Code)
	}
	if deleted != "" {
		t.Fatal("expected no delete across teams")
	}
	if rec := do(t, s, "DELETE", "/api/v1/documents/doc-1/index", token(t, domain.RoleService, "team-1"), nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", rec.Code)
	}
	if deleted != "team-1/doc-1" {
		t.Errorf("expected team-1/doc-1 deleted, got %q", deleted)
	}
}

func TestSearch(t *testing.T) {
	ts := newTestServer()
	var got domain.SearchRequest
	ts.retrieval.searchFn = func(ctx context.Context, req domain.SearchRequest) ([]domain.RetrievedSource, error) {
		got = req
		return nil, nil
	}
	s := ts.build()

	rec := do(t, s, "POST", "/api/v1/search", token(t, domain.RoleMember, "team-1"), map[string]interface{}{
		"query":          "how do I deploy",
		"collection_ids": []string{"col-1"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got.TeamID != "team-1" || len(got.CollectionIDs) != 1 {
		t.Errorf("unexpected request %+v", got)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"results":[]`)) {
		t.Errorf("expected empty results array, got %s", rec.Body.String())
	}

	if rec := do(t, s, "POST", "/api/v1/search", token(t, domain.RoleMember, "team-1"), map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty query: expected 400, got %d", rec.Code)
	}
}

func TestSearch_RateLimited(t *testing.T) {
	ts := newTestServer()
	ts.rateLimit = 0.001
	s := ts.build()
	body := map[string]string{"query": "q"}

	if rec := do(t, s, "POST", "/api/v1/search", token(t, domain.RoleMember, "team-1"), body); rec.Code != http.StatusOK {
		t.Fatalf("first: expected 200, got %d", rec.Code)
	}
	rec := do(t, s, "POST", "/api/v1/search", token(t, domain.RoleMember, "team-1"), body)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second: expected 429, got %d", rec.Code)
	}
	if rec := do(t, s, "POST", "/api/v1/search", token(t, domain.RoleMember, "team-2"), body); rec.Code != http.StatusOK {
		t.Errorf("other team: expected 200, got %d", rec.Code)
	}
}

func TestIndexStatus(t *testing.T) {
	ts := newTestServer()
	ts.status.statusFn = func(ctx context.Context, teamID string) (*domain.IndexingStatus, error) {
		return &domain.IndexingStatus{
			Indexed:  []domain.IndexedDocument{{DocumentID: "doc-1", ChunkCount: 2}},
			Indexing: []domain.InFlightDocument{{DocumentID: "doc-2", State: domain.InFlightPending}},
		}, nil
	}
	s := ts.build()

	rec := do(t, s, "GET", "/api/v1/index/status", token(t, domain.RoleMember, "team-1"), nil)
	var status domain.IndexingStatus
	json.NewDecoder(rec.Body).Decode(&status)
	if len(status.Indexed) != 1 || status.Indexing[0].State != domain.InFlightPending {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestSettings(t *testing.T) {
	ts := newTestServer()
	ts.settings.getFn = func(ctx context.Context, teamID string) (*driving.SettingsView, error) {
		return &driving.SettingsView{Effective: domain.DefaultEffectiveSettings(), ChatKeySet: true}, nil
	}
	var got driving.UpdateSettingsRequest
	ts.settings.updateFn = func(ctx context.Context, teamID string, req driving.UpdateSettingsRequest) (*driving.SettingsView, error) {
		got = req
		if req.ChunkSize != nil && *req.ChunkSize < 0 {
			return nil, domain.ErrInvalidInput
		}
		return &driving.SettingsView{}, nil
	}
	s := ts.build()

	if rec := do(t, s, "GET", "/api/v1/settings", token(t, domain.RoleMember, "team-1"), nil); rec.Code != http.StatusForbidden {
		t.Errorf("member: expected 403, got %d", rec.Code)
	}

	rec := do(t, s, "GET", "/api/v1/settings", token(t, domain.RoleAdmin, "team-1"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin get: expected 200, got %d", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("api_key\"")) {
		t.Errorf("expected no API key in response, got %s", rec.Body.String())
	}

	rec = do(t, s, "PUT", "/api/v1/settings", token(t, domain.RoleAdmin, "team-1"), map[string]interface{}{"retrieval_k": 8})
	if rec.Code != http.StatusOK || got.RetrievalK == nil || *got.RetrievalK != 8 {
		t.Errorf("update: got %d %+v", rec.Code, got)
	}

	rec = do(t, s, "PUT", "/api/v1/settings", token(t, domain.RoleAdmin, "team-1"), map[string]interface{}{"chunk_size": -1})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid update: expected 400, got %d", rec.Code)
	}
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrInvalidProvider, http.StatusBadRequest},
		{domain.ErrProviderNotConfigured, http.StatusUnprocessableEntity},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeDomainError(rec, tt.err)
		if rec.Code != tt.want {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.want, rec.Code)
		}
	}
}

func TestRecovery(t *testing.T) {
	ts := newTestServer()
	ts.status.statusFn = func(ctx context.Context, teamID string) (*domain.IndexingStatus, error) {
		panic("boom")
	}
	s := ts.build()

	rec := do(t, s, "GET", "/api/v1/index/status", token(t, domain.RoleMember, "team-1"), nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}
