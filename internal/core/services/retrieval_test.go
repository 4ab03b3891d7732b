package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulalabs/knowledge-core/internal/adapters/driven/storage/memory"
	"github.com/aulalabs/knowledge-core/internal/core/domain"
)

func retrievalScope() domain.TenantScope {
	return domain.TenantScope{TeacherID: "teacher-1", SchoolID: "school-1"}
}

// seedVectorizedDoc stores a VECTORIZED document with embedded chunks.
func seedVectorizedDoc(t *testing.T, store *memory.DocumentStore, id, title string, embeddings ...[]float32) {
	t.Helper()
	ctx := context.Background()

	doc := &domain.Document{
		ID:        id,
		TeacherID: "teacher-1",
		SchoolID:  "school-1",
		Title:     title,
		Category:  "science",
		Content:   "full text of " + title,
		Status:    domain.StatusUploaded,
	}
	require.NoError(t, store.SaveDocument(ctx, doc))
	require.NoError(t, store.UpdateStatus(ctx, id, domain.StatusProcessing))
	require.NoError(t, store.UpdateStatus(ctx, id, domain.StatusVectorized))

	for i, emb := range embeddings {
		require.NoError(t, store.SaveChunk(ctx, &domain.Chunk{
			ID:         id + "-c" + string(rune('0'+i)),
			DocumentID: id,
			Index:      i,
			Content:    "fragment " + string(rune('0'+i)) + " of " + title,
			Embedding:  emb,
		}))
	}
}

func TestSearchRelevantChunks_RanksBySimilarity(t *testing.T) {
	store := memory.NewDocumentStore()
	seedVectorizedDoc(t, store, "doc-a", "Water cycle", []float32{1, 0, 0, 0})
	seedVectorizedDoc(t, store, "doc-b", "Volcanoes", []float32{0.8, 0.6, 0, 0})

	r := NewRetrieval(store, newMockEmbedder(4), 0.7, 10)

	results, err := r.SearchRelevantChunks(context.Background(), "water", retrievalScope(), domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc-a", results[0].DocumentID)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestSearchRelevantChunks_ThresholdExcludesWeakMatches(t *testing.T) {
	store := memory.NewDocumentStore()
	seedVectorizedDoc(t, store, "doc-a", "Water cycle", []float32{0, 1, 0, 0})

	r := NewRetrieval(store, newMockEmbedder(4), 0.7, 10)

	results, err := r.SearchRelevantChunks(context.Background(), "water", retrievalScope(), domain.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchRelevantChunks_RequiresScopeAndQuery(t *testing.T) {
	r := NewRetrieval(memory.NewDocumentStore(), newMockEmbedder(4), 0.7, 10)
	ctx := context.Background()

	_, err := r.SearchRelevantChunks(ctx, "water", domain.TenantScope{}, domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = r.SearchRelevantChunks(ctx, "  ", retrievalScope(), domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearchRelevantChunks_EmbedFailureFallsBackToKeyword(t *testing.T) {
	store := memory.NewDocumentStore()
	seedVectorizedDoc(t, store, "doc-a", "Water cycle", []float32{1, 0, 0, 0})

	embedder := newMockEmbedder(4)
	embedder.err = domain.ErrEmbeddingProvider
	r := NewRetrieval(store, embedder, 0.7, 10)

	results, err := r.SearchRelevantChunks(context.Background(), "water", retrievalScope(), domain.SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 0.5, results[0].Similarity)
}

func TestSearchRelevantChunks_NilEmbedderUsesKeyword(t *testing.T) {
	store := memory.NewDocumentStore()
	seedVectorizedDoc(t, store, "doc-a", "Water cycle", []float32{1, 0, 0, 0})

	r := NewRetrieval(store, nil, 0.7, 10)

	results, err := r.SearchRelevantChunks(context.Background(), "water", retrievalScope(), domain.SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 0.5, results[0].Similarity)
}

func TestSearchRelevantChunks_DimensionMismatchPropagates(t *testing.T) {
	store := memory.NewDocumentStore()
	// 3-dim chunk against a 4-dim query embedding.
	seedVectorizedDoc(t, store, "doc-a", "Water cycle", []float32{1, 0, 0})

	r := NewRetrieval(store, newMockEmbedder(4), 0.7, 10)

	_, err := r.SearchRelevantChunks(context.Background(), "water", retrievalScope(), domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestGenerateContext_AssemblesGroupedText(t *testing.T) {
	store := memory.NewDocumentStore()
	seedVectorizedDoc(t, store, "doc-a", "Water cycle",
		[]float32{1, 0, 0, 0}, []float32{0.9, 0.1, 0, 0})

	r := NewRetrieval(store, newMockEmbedder(4), 0.7, 10)

	rag, err := r.GenerateContext(context.Background(), "water", retrievalScope(), domain.SearchOptions{})
	require.NoError(t, err)

	assert.Len(t, rag.RelevantChunks, 2)
	assert.Equal(t, []string{"Water cycle"}, rag.DocumentTitles)
	assert.Equal(t, 1, rag.TotalDocuments)
	assert.Contains(t, rag.ContextText, `Document: "Water cycle"`)
	assert.Contains(t, rag.ContextText, "Category: science")
	assert.Contains(t, rag.ContextText, "Relevance:")
	assert.Contains(t, rag.ContextText, "Fragment 1")
	assert.Contains(t, rag.ContextText, "Fragment 2")
	assert.Contains(t, rag.ContextText, "ANALYSIS INSTRUCTIONS")
}

func TestGenerateContext_NoMatches(t *testing.T) {
	store := memory.NewDocumentStore()
	// Vectorized but orthogonal to the query embedding.
	seedVectorizedDoc(t, store, "doc-a", "Unrelated", []float32{0, 0, 0, 1})

	r := NewRetrieval(store, newMockEmbedder(4), 0.7, 10)

	rag, err := r.GenerateContext(context.Background(), "water", retrievalScope(), domain.SearchOptions{})
	require.NoError(t, err)

	assert.Empty(t, rag.RelevantChunks)
	assert.Equal(t, noMatchesMessage, rag.ContextText)
	assert.Equal(t, 1, rag.TotalDocuments) // eligible even without matches
	assert.Empty(t, rag.DocumentTitles)
}

func TestGenerateContext_MissingScopeYieldsPlaceholder(t *testing.T) {
	r := NewRetrieval(memory.NewDocumentStore(), newMockEmbedder(4), 0.7, 10)

	rag, err := r.GenerateContext(context.Background(), "water", domain.TenantScope{}, domain.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, noDocumentsMessage, rag.ContextText)
	assert.Zero(t, rag.TotalDocuments)
}

func TestSearchMultiQuery_DeduplicatesFirstOccurrenceWins(t *testing.T) {
	store := memory.NewDocumentStore()
	seedVectorizedDoc(t, store, "doc-a", "Water cycle", []float32{1, 0, 0, 0})
	seedVectorizedDoc(t, store, "doc-b", "Rain", []float32{0.9, 0.1, 0, 0})

	embedder := newMockEmbedder(4)
	r := NewRetrieval(store, embedder, 0.7, 10)

	results, err := r.SearchMultiQuery(context.Background(),
		[]string{"water", "rain"}, retrievalScope(), domain.SearchOptions{})
	require.NoError(t, err)

	// Both queries hit the same chunks; each chunk appears once.
	seen := make(map[string]int)
	for _, res := range results {
		seen[res.Chunk.ID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "chunk %s duplicated", id)
	}
	assert.Len(t, results, 2)
	assert.GreaterOrEqual(t, results[0].Similarity, results[1].Similarity)
	assert.Equal(t, 2, embedder.callCount())
}

func TestSearchMultiQuery_TruncatesToLimit(t *testing.T) {
	store := memory.NewDocumentStore()
	seedVectorizedDoc(t, store, "doc-a", "Water cycle",
		[]float32{1, 0, 0, 0}, []float32{0.95, 0.05, 0, 0}, []float32{0.9, 0.1, 0, 0})

	r := NewRetrieval(store, newMockEmbedder(4), 0.7, 10)

	results, err := r.SearchMultiQuery(context.Background(),
		[]string{"water"}, retrievalScope(), domain.SearchOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestBuildContextText_MultipleDocumentsInFirstAppearanceOrder(t *testing.T) {
	results := []domain.SearchResult{
		{Chunk: domain.Chunk{ID: "c1", Content: "alpha"}, DocumentID: "d1", DocumentTitle: "First", Similarity: 0.9},
		{Chunk: domain.Chunk{ID: "c2", Content: "beta"}, DocumentID: "d2", DocumentTitle: "Second", Similarity: 0.85},
		{Chunk: domain.Chunk{ID: "c3", Content: "gamma"}, DocumentID: "d1", DocumentTitle: "First", Similarity: 0.8},
	}

	text := buildContextText(results)

	first := strings.Index(text, `Document: "First"`)
	second := strings.Index(text, `Document: "Second"`)
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	assert.Less(t, first, second)
	assert.Contains(t, text, "3 fragments found")
	// First document groups c1 and c3: average of 0.9 and 0.8.
	assert.Contains(t, text, "Relevance: 85.0%")
	assert.Contains(t, text, "Category: uncategorized")
}
