package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestIndexingService_IndexDocument(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	doc := publishedDoc("doc-1", time.Now())

	result, err := env.indexing.IndexDocument(ctx, doc, false)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.Chunks)

	chunks := env.vectors.ChunksFor("doc-1")
	require.Len(t, chunks, 1)
	assert.True(t, strings.HasPrefix(chunks[0].Content, "Doc doc-1\n\n"), "title is prepended")
	assert.Equal(t, "team-1", chunks[0].Metadata.TeamID)
	assert.Equal(t, "col-1", chunks[0].Metadata.CollectionID)
	assert.NotEmpty(t, chunks[0].Embedding)
}

func TestIndexingService_SecondIndexIsNoOp(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	doc := publishedDoc("doc-1", time.Now())

	_, err := env.indexing.IndexDocument(ctx, doc, false)
	require.NoError(t, err)
	writes := env.vectors.Writes()

	result, err := env.indexing.IndexDocument(ctx, doc, false)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, domain.SkipReasonUpToDate, result.Reason)
	assert.Equal(t, writes, env.vectors.Writes(), "no vector store writes on the second call")
}

func TestIndexingService_ForceBypassesStaleness(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	doc := publishedDoc("doc-1", time.Now())

	_, err := env.indexing.IndexDocument(ctx, doc, false)
	require.NoError(t, err)

	result, err := env.indexing.IndexDocument(ctx, doc, true)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Len(t, env.vectors.ChunksFor("doc-1"), 1)
}

func TestIndexingService_NewerDocumentReindexes(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	updated := time.Now()
	env.vectors.SeedDocument("doc-1", "team-1", "col-1", updated.Add(-time.Minute))

	result, err := env.indexing.IndexDocument(ctx, publishedDoc("doc-1", updated), false)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
}

func TestIndexingService_MissingTimestampReindexes(t *testing.T) {
	env := newTestEnv()
	env.vectors.SeedDocument("doc-1", "team-1", "col-1", time.Time{})

	result, err := env.indexing.IndexDocument(context.Background(), publishedDoc("doc-1", time.Now()), false)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
}

func TestIndexingService_ReplacesNotMerges(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	require.NoError(t, env.settings.SaveTeamSettings(ctx, &domain.TeamSettings{
		TeamID:       "team-1",
		ChunkSize:    100,
		ChunkOverlap: 0,
	}))

	doc := publishedDoc("doc-1", time.Now())
	doc.Title = ""
	doc.Text = strings.Repeat("x", 500)
	result, err := env.indexing.IndexDocument(ctx, doc, false)
	require.NoError(t, err)
	require.Equal(t, 5, result.Chunks)

	doc.Text = strings.Repeat("y", 300)
	doc.UpdatedAt = doc.UpdatedAt.Add(time.Minute)
	result, err = env.indexing.IndexDocument(ctx, doc, false)
	require.NoError(t, err)
	require.Equal(t, 3, result.Chunks)

	chunks := env.vectors.ChunksFor("doc-1")
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.Equal(t, strings.Repeat("y", 100), c.Content)
	}
}

func TestIndexingService_ChunkingExample(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	require.NoError(t, env.settings.SaveTeamSettings(ctx, &domain.TeamSettings{
		TeamID:       "team-1",
		ChunkSize:    500,
		ChunkOverlap: 50,
	}))

	doc := publishedDoc("doc-1", time.Now())
	doc.Title = ""
	doc.Text = strings.Repeat("abcdefghij", 120)

	result, err := env.indexing.IndexDocument(ctx, doc, false)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Chunks)

	chunks := env.vectors.ChunksFor("doc-1")
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 550)
		assert.Equal(t, "doc-1", c.Metadata.DocumentID)
		assert.Equal(t, i, c.Metadata.ChunkOrdinal)
	}
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Content
		assert.True(t, strings.HasPrefix(chunks[i].Content, prev[len(prev)-50:]))
	}
}

func TestIndexingService_EmptyTextSkipped(t *testing.T) {
	env := newTestEnv()
	doc := publishedDoc("doc-1", time.Now())
	doc.Text = "   \n\t "

	result, err := env.indexing.IndexDocument(context.Background(), doc, false)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, domain.SkipReasonEmpty, result.Reason)
	assert.Zero(t, env.vectors.Writes())
}

func TestIndexingService_UpsertFailureIsReturned(t *testing.T) {
	env := newTestEnv()
	env.vectors.UpsertErr = errors.New("connection reset")

	_, err := env.indexing.IndexDocument(context.Background(), publishedDoc("doc-1", time.Now()), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestIndexingService_EmbeddingFailureKeepsOldChunks(t *testing.T) {
	env := newTestEnv()
	env.vectors.SeedDocument("doc-1", "team-1", "col-1", time.Now().Add(-time.Hour))
	env.embedder.SetError(errors.New("rate limited"))

	_, err := env.indexing.IndexDocument(context.Background(), publishedDoc("doc-1", time.Now()), false)
	require.Error(t, err)
	assert.Len(t, env.vectors.ChunksFor("doc-1"), 1)
}

func TestIndexingService_ProviderNotConfigured(t *testing.T) {
	env := newTestEnv()
	env.providers.EmbeddingErr = domain.ErrProviderNotConfigured

	_, err := env.indexing.IndexDocument(context.Background(), publishedDoc("doc-1", time.Now()), false)
	assert.ErrorIs(t, err, domain.ErrProviderNotConfigured)
}

func TestIndexingService_InvalidDocument(t *testing.T) {
	env := newTestEnv()

	_, err := env.indexing.IndexDocument(context.Background(), &domain.Document{ID: "doc-1"}, false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndexingService_DeleteAndFind(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	updated := time.Now().UTC()
	env.vectors.SeedDocument("doc-1", "team-1", "col-1", updated)

	meta, err := env.indexing.FindDocumentMetadata(ctx, "team-1", "doc-1")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, updated, meta.UpdatedAt)

	require.NoError(t, env.indexing.DeleteDocument(ctx, "team-1", "doc-1"))

	meta, err = env.indexing.FindDocumentMetadata(ctx, "team-1", "doc-1")
	require.NoError(t, err)
	assert.Nil(t, meta)

	assert.ErrorIs(t, env.indexing.DeleteDocument(ctx, "team-1", ""), domain.ErrInvalidInput)
	assert.ErrorIs(t, env.indexing.DeleteDocument(ctx, "", "doc-1"), domain.ErrInvalidInput)
	_, err = env.indexing.FindDocumentMetadata(ctx, "", "doc-1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndexingService_SameDocumentIDIsolatedByTeam(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	updated := time.Now().UTC()
	env.vectors.SeedDocument("shared-id", "team-b", "col-b", updated)

	// An older copy elsewhere must not make team-a's document look indexed
	doc := publishedDoc("shared-id", updated.Add(-time.Hour))
	doc.TeamID = "team-a"
	result, err := env.indexing.IndexDocument(ctx, doc, false)
	require.NoError(t, err)
	assert.False(t, result.Skipped)

	byTeam := map[string]int{}
	for _, c := range env.vectors.ChunksFor("shared-id") {
		byTeam[c.Metadata.TeamID]++
	}
	assert.Equal(t, 1, byTeam["team-b"], "other team's chunks survive a reindex")
	assert.Positive(t, byTeam["team-a"])

	meta, err := env.indexing.FindDocumentMetadata(ctx, "team-b", "shared-id")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "team-b", meta.TeamID)

	require.NoError(t, env.indexing.DeleteDocument(ctx, "team-a", "shared-id"))
	remaining := env.vectors.ChunksFor("shared-id")
	require.Len(t, remaining, 1)
	assert.Equal(t, "team-b", remaining[0].Metadata.TeamID)
}
