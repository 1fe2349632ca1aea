package domain

import "slices"

// MetadataFilter restricts vector queries and deletions by chunk metadata.
// Empty fields do not constrain.
type MetadataFilter struct {
	DocumentID    string   `json:"document_id,omitempty"`
	TeamID        string   `json:"team_id,omitempty"`
	CollectionIDs []string `json:"collection_ids,omitempty"`
}

// IsEmpty returns true if the filter does not constrain anything
func (f MetadataFilter) IsEmpty() bool {
	return f.DocumentID == "" && f.TeamID == "" && len(f.CollectionIDs) == 0
}

// MatchesCollection reports whether a chunk's collection is in the filter's
// collection set. A filter without collections matches everything.
func (f MetadataFilter) MatchesCollection(meta ChunkMetadata) bool {
	if len(f.CollectionIDs) == 0 {
		return true
	}
	return slices.Contains(f.CollectionIDs, meta.CollectionID)
}

// Matches reports whether a chunk satisfies every constraint of the filter.
func (f MetadataFilter) Matches(meta ChunkMetadata) bool {
	if f.DocumentID != "" && meta.DocumentID != f.DocumentID {
		return false
	}
	if f.TeamID != "" && meta.TeamID != f.TeamID {
		return false
	}
	return f.MatchesCollection(meta)
}

// RetrievedSource is a chunk returned by similarity search.
// Score is a distance: lower means more similar.
type RetrievedSource struct {
	ID       string        `json:"id"`
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
}

// SearchRequest describes one similarity search
type SearchRequest struct {
	Query         string   `json:"query"`
	K             int      `json:"k,omitempty"`
	TeamID        string   `json:"-"`
	CollectionIDs []string `json:"collection_ids,omitempty"`
	DocumentID    string   `json:"document_id,omitempty"`
}

// Filter builds the metadata filter for the request
func (r SearchRequest) Filter() MetadataFilter {
	return MetadataFilter{
		DocumentID:    r.DocumentID,
		TeamID:        r.TeamID,
		CollectionIDs: r.CollectionIDs,
	}
}
