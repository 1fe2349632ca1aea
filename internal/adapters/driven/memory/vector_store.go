package memory

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.VectorStore      = (*VectorStore)(nil)
	_ driven.IndexStatusStore = (*VectorStore)(nil)
)

const collectionName = "chunks"

var errNoEmbedder = errors.New("memory store only accepts precomputed embeddings")

// VectorStore keeps chunks in a chromem-go collection. chromem filters on
// exact metadata matches only, so a collection set is applied here after
// the query. A side index maps documents to their chunk IDs for the lookups
// chromem has no query for.
type VectorStore struct {
	db         *chromem.DB
	collection *chromem.Collection

	mu     sync.RWMutex
	chunks map[string]map[string]struct{} // document ID -> chunk IDs
}

// NewVectorStore creates an empty in-process store
func NewVectorStore() (*VectorStore, error) {
	db := chromem.NewDB()

	refuse := func(context.Context, string) ([]float32, error) { return nil, errNoEmbedder }
	collection, err := db.GetOrCreateCollection(collectionName, nil, refuse)
	if err != nil {
		return nil, fmt.Errorf("open chromem collection: %w", err)
	}

	return &VectorStore{db: db, collection: collection, chunks: make(map[string]map[string]struct{})}, nil
}

// Upsert inserts or replaces chunks by ID
func (s *VectorStore) Upsert(ctx context.Context, chunks []*domain.IndexedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        c.ID,
			Content:   c.Content,
			Metadata:  c.Metadata.ToMap(),
			Embedding: c.Embedding,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add chunks: %w", err)
	}
	for _, c := range chunks {
		s.track(c.Metadata.DocumentID, c.ID)
	}
	return nil
}

// DeleteWhere removes every chunk matching the filter
func (s *VectorStore) DeleteWhere(ctx context.Context, filter domain.MetadataFilter) error {
	if filter.IsEmpty() {
		return fmt.Errorf("%w: refusing to delete with an empty filter", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matches := s.matching(ctx, filter)
	if len(matches) == 0 {
		return nil
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.id
	}
	if err := s.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	for _, m := range matches {
		s.untrack(m.DocumentID, m.id)
	}
	return nil
}

// Query returns up to k chunks nearest to vector, ascending by cosine distance
func (s *VectorStore) Query(ctx context.Context, vector []float32, k int, filter domain.MetadataFilter) ([]domain.RetrievedSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.collection.Count()
	if k <= 0 || total == 0 {
		return nil, nil
	}

	// With a collection set, rank everything matching the exact filters and
	// cut to k after the set is applied
	n := k
	if len(filter.CollectionIDs) > 0 || n > total {
		n = total
	}

	results, err := s.collection.QueryEmbedding(ctx, vector, n, exactWhere(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}

	out := make([]domain.RetrievedSource, 0, len(results))
	for _, r := range results {
		meta := domain.ChunkMetadataFromMap(r.Metadata)
		if !filter.MatchesCollection(meta) {
			continue
		}
		out = append(out, domain.RetrievedSource{
			ID:       r.ID,
			Content:  r.Content,
			Metadata: meta,
			Score:    1 - float64(r.Similarity),
		})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// FindOneWhere returns the metadata of any chunk matching the filter
func (s *VectorStore) FindOneWhere(ctx context.Context, filter domain.MetadataFilter) (*domain.ChunkMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := s.matching(ctx, filter)
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0].ChunkMetadata, nil
}

// ListIndexedDocuments groups a team's chunks by document
func (s *VectorStore) ListIndexedDocuments(ctx context.Context, teamID string) ([]domain.IndexedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDoc := make(map[string]*domain.IndexedDocument)
	for _, meta := range s.matching(ctx, domain.MetadataFilter{TeamID: teamID}) {
		doc, ok := byDoc[meta.DocumentID]
		if !ok {
			doc = &domain.IndexedDocument{DocumentID: meta.DocumentID, Title: meta.DocumentTitle}
			byDoc[meta.DocumentID] = doc
		}
		doc.ChunkCount++
		if meta.UpdatedAt.After(doc.UpdatedAt) {
			doc.UpdatedAt = meta.UpdatedAt
		}
	}

	out := make([]domain.IndexedDocument, 0, len(byDoc))
	for _, doc := range byDoc {
		out = append(out, *doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out, nil
}

// Close is a no-op
func (s *VectorStore) Close() error {
	return nil
}

type storedMeta struct {
	id string
	domain.ChunkMetadata
}

// matching walks the side index. Callers hold s.mu.
func (s *VectorStore) matching(ctx context.Context, filter domain.MetadataFilter) []storedMeta {
	docIDs := make([]string, 0, len(s.chunks))
	if filter.DocumentID != "" {
		docIDs = append(docIDs, filter.DocumentID)
	} else {
		for id := range s.chunks {
			docIDs = append(docIDs, id)
		}
		sort.Strings(docIDs)
	}

	var out []storedMeta
	for _, docID := range docIDs {
		ids := make([]string, 0, len(s.chunks[docID]))
		for id := range s.chunks[docID] {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			doc, err := s.collection.GetByID(ctx, id)
			if err != nil {
				continue
			}
			meta := domain.ChunkMetadataFromMap(doc.Metadata)
			if filter.Matches(meta) {
				out = append(out, storedMeta{id: id, ChunkMetadata: meta})
			}
		}
	}
	return out
}

func (s *VectorStore) track(docID, chunkID string) {
	set, ok := s.chunks[docID]
	if !ok {
		set = make(map[string]struct{})
		s.chunks[docID] = set
	}
	set[chunkID] = struct{}{}
}

func (s *VectorStore) untrack(docID, chunkID string) {
	if set, ok := s.chunks[docID]; ok {
		delete(set, chunkID)
		if len(set) == 0 {
			delete(s.chunks, docID)
		}
	}
}

func exactWhere(filter domain.MetadataFilter) map[string]string {
	where := make(map[string]string)
	if filter.DocumentID != "" {
		where[domain.MetaDocumentID] = filter.DocumentID
	}
	if filter.TeamID != "" {
		where[domain.MetaTeamID] = filter.TeamID
	}
	if len(filter.CollectionIDs) == 1 {
		where[domain.MetaCollectionID] = filter.CollectionIDs[0]
	}
	if len(where) == 0 {
		return nil
	}
	return where
}
