package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.VectorStore      = (*VectorStore)(nil)
	_ driven.IndexStatusStore = (*VectorStore)(nil)
)

// chunkRow is one row of rag_chunks
type chunkRow struct {
	bun.BaseModel `bun:"table:rag_chunks,alias:c"`

	ID        string               `bun:"id,pk"`
	Content   string               `bun:"content,notnull"`
	Metadata  domain.ChunkMetadata `bun:"metadata,type:jsonb,notnull"`
	Embedding pgvector.Vector      `bun:"embedding,type:vector,notnull"`
}

// scoredRow is a query hit with its cosine distance
type scoredRow struct {
	ID       string               `bun:"id"`
	Content  string               `bun:"content"`
	Metadata domain.ChunkMetadata `bun:"metadata,type:jsonb"`
	Distance float64              `bun:"distance"`
}

// VectorStore stores chunks in pgvector and ranks them by cosine distance
type VectorStore struct {
	db *bun.DB
}

// NewVectorStore creates a new VectorStore
func NewVectorStore(db *DB) *VectorStore {
	return &VectorStore{db: db.Bun}
}

// Upsert inserts or replaces chunks by ID
func (s *VectorStore) Upsert(ctx context.Context, chunks []*domain.IndexedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := toRows(chunks)
	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("content = EXCLUDED.content").
		Set("metadata = EXCLUDED.metadata").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert %d chunks: %w", len(chunks), err)
	}
	return nil
}

// DeleteWhere removes every chunk matching the filter
func (s *VectorStore) DeleteWhere(ctx context.Context, filter domain.MetadataFilter) error {
	if filter.IsEmpty() {
		return fmt.Errorf("%w: refusing to delete with an empty filter", domain.ErrInvalidInput)
	}

	q := s.db.NewDelete().Model((*chunkRow)(nil))
	for _, c := range filterClauses(filter) {
		q = q.Where(c.query, c.args...)
	}
	if _, err := q.Exec(ctx); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// Query returns up to k chunks nearest to vector, ascending by distance
func (s *VectorStore) Query(ctx context.Context, vector []float32, k int, filter domain.MetadataFilter) ([]domain.RetrievedSource, error) {
	if k <= 0 {
		return nil, nil
	}

	var rows []scoredRow
	q := s.db.NewSelect().
		Model((*chunkRow)(nil)).
		Column("id", "content", "metadata").
		ColumnExpr("embedding <=> ? AS distance", pgvector.NewVector(vector))
	for _, c := range filterClauses(filter) {
		q = q.Where(c.query, c.args...)
	}
	err := q.OrderExpr("distance ASC").Limit(k).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}

	out := make([]domain.RetrievedSource, len(rows))
	for i, r := range rows {
		out[i] = domain.RetrievedSource{ID: r.ID, Content: r.Content, Metadata: r.Metadata, Score: r.Distance}
	}
	return out, nil
}

// FindOneWhere returns the metadata of any chunk matching the filter
func (s *VectorStore) FindOneWhere(ctx context.Context, filter domain.MetadataFilter) (*domain.ChunkMetadata, error) {
	var row chunkRow
	q := s.db.NewSelect().Model(&row).Column("metadata")
	for _, c := range filterClauses(filter) {
		q = q.Where(c.query, c.args...)
	}
	err := q.Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find chunk: %w", err)
	}
	return &row.Metadata, nil
}

// ListIndexedDocuments groups a team's chunks by document
func (s *VectorStore) ListIndexedDocuments(ctx context.Context, teamID string) ([]domain.IndexedDocument, error) {
	var rows []struct {
		DocumentID string    `bun:"document_id"`
		Title      string    `bun:"title"`
		ChunkCount int       `bun:"chunk_count"`
		UpdatedAt  time.Time `bun:"updated_at"`
	}

	err := s.db.NewSelect().
		Model((*chunkRow)(nil)).
		ColumnExpr("metadata->>'documentId' AS document_id").
		ColumnExpr("MAX(metadata->>'documentTitle') AS title").
		ColumnExpr("COUNT(*) AS chunk_count").
		ColumnExpr("MAX((metadata->>'updatedAt')::timestamptz) AS updated_at").
		Where("metadata->>'teamId' = ?", teamID).
		GroupExpr("metadata->>'documentId'").
		OrderExpr("document_id ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("list indexed documents: %w", err)
	}

	docs := make([]domain.IndexedDocument, len(rows))
	for i, r := range rows {
		docs[i] = domain.IndexedDocument{
			DocumentID: r.DocumentID,
			Title:      r.Title,
			ChunkCount: r.ChunkCount,
			UpdatedAt:  r.UpdatedAt,
		}
	}
	return docs, nil
}

// Close is a no-op: the pool belongs to DB
func (s *VectorStore) Close() error {
	return nil
}

func toRows(chunks []*domain.IndexedChunk) []chunkRow {
	rows := make([]chunkRow, len(chunks))
	for i, c := range chunks {
		rows[i] = chunkRow{
			ID:        c.ID,
			Content:   c.Content,
			Metadata:  c.Metadata,
			Embedding: pgvector.NewVector(c.Embedding),
		}
	}
	return rows
}

type clause struct {
	query string
	args  []interface{}
}

// filterClauses translates a metadata filter into WHERE conditions
func filterClauses(f domain.MetadataFilter) []clause {
	var out []clause
	if f.DocumentID != "" {
		out = append(out, clause{"metadata->>'" + domain.MetaDocumentID + "' = ?", []interface{}{f.DocumentID}})
	}
	if f.TeamID != "" {
		out = append(out, clause{"metadata->>'" + domain.MetaTeamID + "' = ?", []interface{}{f.TeamID}})
	}
	if len(f.CollectionIDs) > 0 {
		out = append(out, clause{"metadata->>'" + domain.MetaCollectionID + "' IN (?)", []interface{}{bun.In(f.CollectionIDs)}})
	}
	return out
}
