package postgres

import (
	"reflect"
	"strings"
	"testing"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestToRows(t *testing.T) {
	chunks := []*domain.IndexedChunk{
		{ID: "c-1", Content: "one", Metadata: domain.ChunkMetadata{DocumentID: "doc-1", TeamID: "team-1"}, Embedding: []float32{0.5, -1, 0.25}},
		{ID: "c-2", Content: "two", Metadata: domain.ChunkMetadata{DocumentID: "doc-1", TeamID: "team-1", ChunkOrdinal: 1}, Embedding: []float32{1, 0, 0}},
	}

	rows := toRows(chunks)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1].ID != "c-2" || rows[1].Metadata.ChunkOrdinal != 1 {
		t.Errorf("unexpected row %+v", rows[1])
	}
	if !reflect.DeepEqual(rows[0].Embedding.Slice(), []float32{0.5, -1, 0.25}) {
		t.Errorf("embedding not carried over: %v", rows[0].Embedding.Slice())
	}

	v, err := rows[0].Embedding.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != "[0.5,-1,0.25]" {
		t.Errorf("unexpected wire form %v", v)
	}
}

func TestFilterClauses(t *testing.T) {
	if got := filterClauses(domain.MetadataFilter{}); len(got) != 0 {
		t.Errorf("expected no clauses for empty filter, got %d", len(got))
	}

	got := filterClauses(domain.MetadataFilter{
		DocumentID:    "doc-1",
		TeamID:        "team-1",
		CollectionIDs: []string{"a", "b"},
	})
	if len(got) != 3 {
		t.Fatalf("expected 3 clauses, got %d", len(got))
	}
	if !strings.Contains(got[0].query, "'documentId'") || got[0].args[0] != "doc-1" {
		t.Errorf("unexpected document clause %+v", got[0])
	}
	if !strings.Contains(got[1].query, "'teamId'") || got[1].args[0] != "team-1" {
		t.Errorf("unexpected team clause %+v", got[1])
	}
	if !strings.Contains(got[2].query, "IN (?)") {
		t.Errorf("unexpected collection clause %+v", got[2])
	}
}

func TestProviderSecrets_IsEmpty(t *testing.T) {
	if !(providerSecrets{}).isEmpty() {
		t.Error("expected zero secrets to be empty")
	}
	if (providerSecrets{ChatAPIKey: "sk"}).isEmpty() {
		t.Error("expected chat key to make secrets non-empty")
	}
}
