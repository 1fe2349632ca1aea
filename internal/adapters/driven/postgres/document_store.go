package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore reads host documents from PostgreSQL
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// GetDocument retrieves a document by ID
func (s *DocumentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	query := `
		SELECT id, team_id, collection_id, title, text, mime_type, created_by_id,
			   updated_at, published_at, archived_at
		FROM documents
		WHERE id = $1
	`

	var doc domain.Document
	var publishedAt, archivedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID,
		&doc.TeamID,
		&doc.CollectionID,
		&doc.Title,
		&doc.Text,
		&doc.MimeType,
		&doc.CreatedByID,
		&doc.UpdatedAt,
		&publishedAt,
		&archivedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}

	doc.PublishedAt = TimePtr(publishedAt)
	doc.ArchivedAt = TimePtr(archivedAt)
	return &doc, nil
}

// GetTitles resolves titles for many documents with a single query
func (s *DocumentStore) GetTitles(ctx context.Context, ids []string) (map[string]string, error) {
	titles := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return titles, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, title FROM documents WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get titles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, err
		}
		titles[id] = title
	}
	return titles, rows.Err()
}
