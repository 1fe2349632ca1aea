package domain

import (
	"strconv"
	"time"
)

// Document is a knowledge-base document as the host system stores it.
// This service never edits documents; it only reads them to index.
type Document struct {
	ID           string     `json:"id"`
	TeamID       string     `json:"team_id"`
	CollectionID string     `json:"collection_id"`
	Title        string     `json:"title"`
	Text         string     `json:"text"`
	MimeType     string     `json:"mime_type"`
	CreatedByID  string     `json:"created_by_id"`
	UpdatedAt    time.Time  `json:"updated_at"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	ArchivedAt   *time.Time `json:"archived_at,omitempty"`
}

// IsPublished returns true if the document is published and not archived.
// Unpublished documents are never indexed.
func (d *Document) IsPublished() bool {
	return d.PublishedAt != nil && d.ArchivedAt == nil
}

// ChunkMetadata is the metadata shared by every chunk of a document.
// It is the only carrier of document, team and collection linkage in the index.
type ChunkMetadata struct {
	DocumentID    string     `json:"documentId"`
	TeamID        string     `json:"teamId"`
	CollectionID  string     `json:"collectionId"`
	DocumentTitle string     `json:"documentTitle"`
	CreatedByID   string     `json:"createdById,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	PublishedAt   *time.Time `json:"publishedAt,omitempty"`
	ChunkOrdinal  int        `json:"chunkOrdinal"`
}

// MetadataFor builds the chunk metadata for a document.
func MetadataFor(doc *Document) ChunkMetadata {
	return ChunkMetadata{
		DocumentID:    doc.ID,
		TeamID:        doc.TeamID,
		CollectionID:  doc.CollectionID,
		DocumentTitle: doc.Title,
		CreatedByID:   doc.CreatedByID,
		UpdatedAt:     doc.UpdatedAt,
		PublishedAt:   doc.PublishedAt,
	}
}

// Metadata map keys, matching the JSON field names.
const (
	MetaDocumentID    = "documentId"
	MetaTeamID        = "teamId"
	MetaCollectionID  = "collectionId"
	MetaDocumentTitle = "documentTitle"
	MetaCreatedByID   = "createdById"
	MetaUpdatedAt     = "updatedAt"
	MetaPublishedAt   = "publishedAt"
	MetaChunkOrdinal  = "chunkOrdinal"
)

// ToMap flattens the metadata into string pairs for stores that only
// support flat string metadata.
func (m ChunkMetadata) ToMap() map[string]string {
	out := map[string]string{
		MetaDocumentID:    m.DocumentID,
		MetaTeamID:        m.TeamID,
		MetaCollectionID:  m.CollectionID,
		MetaDocumentTitle: m.DocumentTitle,
		MetaChunkOrdinal:  strconv.Itoa(m.ChunkOrdinal),
	}
	if m.CreatedByID != "" {
		out[MetaCreatedByID] = m.CreatedByID
	}
	if !m.UpdatedAt.IsZero() {
		out[MetaUpdatedAt] = m.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	if m.PublishedAt != nil {
		out[MetaPublishedAt] = m.PublishedAt.UTC().Format(time.RFC3339Nano)
	}
	return out
}

// ChunkMetadataFromMap is the inverse of ToMap. Unparseable values are left zero.
func ChunkMetadataFromMap(in map[string]string) ChunkMetadata {
	m := ChunkMetadata{
		DocumentID:    in[MetaDocumentID],
		TeamID:        in[MetaTeamID],
		CollectionID:  in[MetaCollectionID],
		DocumentTitle: in[MetaDocumentTitle],
		CreatedByID:   in[MetaCreatedByID],
	}
	if v, err := strconv.Atoi(in[MetaChunkOrdinal]); err == nil {
		m.ChunkOrdinal = v
	}
	if v, err := time.Parse(time.RFC3339Nano, in[MetaUpdatedAt]); err == nil {
		m.UpdatedAt = v
	}
	if v, err := time.Parse(time.RFC3339Nano, in[MetaPublishedAt]); err == nil {
		m.PublishedAt = &v
	}
	return m
}

// IndexedChunk is one embedded segment of a document.
// Chunks are fungible: a reindex always replaces the full set for a document.
type IndexedChunk struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	Metadata  ChunkMetadata `json:"metadata"`
	Embedding []float32     `json:"-"`
}

// IndexResult reports the outcome of a reindex.
type IndexResult struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
	Skipped    bool   `json:"skipped"`
	Reason     string `json:"reason,omitempty"`
}

// Skip reasons reported in IndexResult.Reason.
const (
	SkipReasonUpToDate = "up_to_date"
	SkipReasonEmpty    = "empty"
)
