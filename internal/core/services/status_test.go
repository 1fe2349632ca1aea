package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func job(queue string, name domain.EventName, documentID, teamID string) *domain.Job {
	return domain.NewJob(queue, &domain.LifecycleEvent{Name: name, DocumentID: documentID, TeamID: teamID})
}

func TestStatusService_ClassifiesInFlightJobs(t *testing.T) {
	env := newTestEnv()
	for _, id := range []string{"active", "waiting", "pending", "retrying", "failed"} {
		env.documents.Put(&domain.Document{ID: id, TeamID: "team-1", Title: "Title " + id})
	}

	active := job(domain.QueueProcessor, domain.EventIndex, "active", "team-1")
	active.MarkProcessing()
	env.processor.Put(active)

	env.processor.Put(job(domain.QueueProcessor, domain.EventIndex, "waiting", "team-1"))

	pending := job(domain.QueueLifecycle, domain.EventUpdateDebounced, "pending", "team-1")
	pending.ScheduledFor = time.Now().Add(time.Minute)
	env.lifecycle.Put(pending)

	retrying := job(domain.QueueProcessor, domain.EventIndex, "retrying", "team-1")
	retrying.MarkProcessing()
	retrying.Retry("timeout")
	env.processor.Put(retrying)

	failed := job(domain.QueueProcessor, domain.EventIndex, "failed", "team-1")
	failed.MarkFailed("boom")
	env.processor.Put(failed)

	status, err := env.status.GetIndexingStatus(context.Background(), "team-1")
	require.NoError(t, err)

	states := make(map[string]domain.InFlightState)
	for _, d := range status.Indexing {
		states[d.DocumentID] = d.State
		assert.Equal(t, "Title "+d.DocumentID, d.Title)
	}
	assert.Equal(t, map[string]domain.InFlightState{
		"active":   domain.InFlightIndexing,
		"waiting":  domain.InFlightPending,
		"pending":  domain.InFlightPending,
		"retrying": domain.InFlightRetrying,
		"failed":   domain.InFlightFailed,
	}, states)
	assert.Equal(t, 1, env.documents.TitleLookups(), "titles resolved in one batch")
}

func TestStatusService_FirstClassificationWins(t *testing.T) {
	env := newTestEnv()

	stale := job(domain.QueueProcessor, domain.EventIndex, "doc-1", "team-1")
	stale.MarkFailed("old failure")
	env.processor.Put(stale)

	running := job(domain.QueueProcessor, domain.EventIndex, "doc-1", "team-1")
	running.MarkProcessing()
	env.processor.Put(running)

	status, err := env.status.GetIndexingStatus(context.Background(), "team-1")
	require.NoError(t, err)
	require.Len(t, status.Indexing, 1)
	assert.Equal(t, domain.InFlightIndexing, status.Indexing[0].State)
}

func TestStatusService_FiltersTeamAndRemovals(t *testing.T) {
	env := newTestEnv()
	env.lifecycle.Put(job(domain.QueueLifecycle, domain.EventDelete, "doc-1", "team-1"))
	env.processor.Put(job(domain.QueueProcessor, domain.EventIndex, "doc-2", "team-2"))
	done := job(domain.QueueProcessor, domain.EventIndex, "doc-3", "team-1")
	done.MarkCompleted()
	env.processor.Put(done)

	status, err := env.status.GetIndexingStatus(context.Background(), "team-1")
	require.NoError(t, err)
	assert.Empty(t, status.Indexing)
	assert.Zero(t, env.documents.TitleLookups())
}

func TestStatusService_IndexedDocuments(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		_, err := env.indexing.IndexDocument(ctx, publishedDoc(id, time.Now()), false)
		require.NoError(t, err)
	}
	env.vectors.SeedDocument("other", "team-2", "col-1", time.Now())

	status, err := env.status.GetIndexingStatus(ctx, "team-1")
	require.NoError(t, err)
	require.Len(t, status.Indexed, 2)
	assert.Equal(t, "a", status.Indexed[0].DocumentID)
	assert.Equal(t, "Doc a", status.Indexed[0].Title)
	assert.Equal(t, 1, status.Indexed[0].ChunkCount)
}

func TestStatusService_RequiresTeam(t *testing.T) {
	env := newTestEnv()

	_, err := env.status.GetIndexingStatus(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
