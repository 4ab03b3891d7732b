// Package memory provides an in-memory document store used in tests
// and for ephemeral runs. It mirrors the SQLite store's semantics,
// including status transition checks and similarity ranking.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aulalabs/knowledge-core/internal/core/domain"
	"github.com/aulalabs/knowledge-core/internal/core/ports/driven"
)

var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory driven.DocumentStore.
type DocumentStore struct {
	mu     sync.RWMutex
	docs   map[string]*domain.Document
	chunks map[string][]domain.Chunk // keyed by document ID, ordered by index
}

// NewDocumentStore creates an empty in-memory store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs:   make(map[string]*domain.Document),
		chunks: make(map[string][]domain.Chunk),
	}
}

// SaveDocument stores or updates a document. An existing document's
// status and creation time are preserved; status moves only through
// UpdateStatus.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	if doc.ID == "" || doc.Scope().IsZero() {
		return fmt.Errorf("%w: document needs id, teacher_id and school_id", domain.ErrInvalidInput)
	}
	if !doc.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, doc.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *doc
	now := time.Now().UTC()
	if existing, ok := s.docs[doc.ID]; ok {
		stored.Status = existing.Status
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	if stored.Category == "" {
		stored.Category = "general"
	}

	s.docs[doc.ID] = &stored
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

// UpdateStatus advances a document's lifecycle state.
func (s *DocumentStore) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !doc.Status.CanTransition(status) {
		return fmt.Errorf("%w: cannot transition %s -> %s", domain.ErrInvalidInput, doc.Status, status)
	}

	doc.Status = status
	doc.UpdatedAt = time.Now().UTC()
	return nil
}

// SaveChunk persists a single chunk.
func (s *DocumentStore) SaveChunk(_ context.Context, chunk *domain.Chunk) error {
	if chunk.ID == "" || chunk.DocumentID == "" {
		return fmt.Errorf("%w: chunk needs id and document_id", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.chunks[chunk.DocumentID]
	for i := range list {
		if list[i].ID == chunk.ID {
			list[i] = *chunk
			return nil
		}
	}
	list = append(list, *chunk)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Index < list[j].Index })
	s.chunks[chunk.DocumentID] = list
	return nil
}

// GetChunks retrieves a document's chunks ordered by index.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.chunks[documentID]
	out := make([]domain.Chunk, len(list))
	copy(out, list)
	return out, nil
}

// DeleteChunks removes all chunks for a document.
func (s *DocumentStore) DeleteChunks(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.chunks, documentID)
	return nil
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, id)
	delete(s.chunks, id)
	return nil
}

// ListDocuments returns a tenant's documents, newest first.
func (s *DocumentStore) ListDocuments(_ context.Context, scope domain.TenantScope) ([]domain.Document, error) {
	if scope.IsZero() {
		return nil, fmt.Errorf("%w: tenant scope is required", domain.ErrInvalidInput)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []domain.Document
	for _, doc := range s.docs {
		if doc.Scope() == scope {
			docs = append(docs, *doc)
		}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

// CountVectorized returns the tenant's number of VECTORIZED documents.
func (s *DocumentStore) CountVectorized(_ context.Context, scope domain.TenantScope) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, doc := range s.docs {
		if doc.Scope() == scope && doc.Status == domain.StatusVectorized {
			count++
		}
	}
	return count, nil
}

// SearchSimilar ranks the tenant's embedded chunks by cosine similarity.
func (s *DocumentStore) SearchSimilar(_ context.Context, query []float32, scope domain.TenantScope, limit int, minSimilarity float64) ([]domain.SearchResult, error) {
	if scope.IsZero() {
		return nil, fmt.Errorf("%w: tenant scope is required", domain.ErrInvalidInput)
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []domain.SearchResult
	for _, doc := range s.docs {
		if doc.Scope() != scope || doc.Status != domain.StatusVectorized {
			continue
		}
		for _, chunk := range s.chunks[doc.ID] {
			if chunk.Embedding == nil {
				continue
			}
			similarity, err := cosine(query, chunk.Embedding)
			if err != nil {
				return nil, err
			}
			if similarity <= minSimilarity {
				continue
			}
			c := chunk
			c.Embedding = nil
			results = append(results, domain.SearchResult{
				Chunk:            c,
				DocumentID:       doc.ID,
				DocumentTitle:    doc.Title,
				DocumentCategory: doc.Category,
				Similarity:       similarity,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// SearchKeyword is the degraded substring fallback over title and content.
func (s *DocumentStore) SearchKeyword(_ context.Context, query string, scope domain.TenantScope, limit int) ([]domain.SearchResult, error) {
	if scope.IsZero() {
		return nil, fmt.Errorf("%w: tenant scope is required", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)

	var matched []*domain.Document
	for _, doc := range s.docs {
		if doc.Scope() != scope {
			continue
		}
		if doc.Status != domain.StatusReady && doc.Status != domain.StatusVectorized {
			continue
		}
		if strings.Contains(strings.ToLower(doc.Title), needle) ||
			strings.Contains(strings.ToLower(doc.Content), needle) {
			matched = append(matched, doc)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	var results []domain.SearchResult
	for _, doc := range matched {
		for i, chunk := range s.chunks[doc.ID] {
			if i >= 3 || len(results) >= limit {
				break
			}
			c := chunk
			c.Embedding = nil
			results = append(results, domain.SearchResult{
				Chunk:            c,
				DocumentID:       doc.ID,
				DocumentTitle:    doc.Title,
				DocumentCategory: doc.Category,
				Similarity:       0.5,
			})
		}
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// Close is a no-op for the in-memory store.
func (s *DocumentStore) Close() error {
	return nil
}

// cosine computes cosine similarity; zero-magnitude vectors score 0.
func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: comparing %d-dim with %d-dim vectors",
			domain.ErrDimensionMismatch, len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
