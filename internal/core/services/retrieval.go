package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aulalabs/knowledge-core/internal/core/domain"
	"github.com/aulalabs/knowledge-core/internal/core/ports/driven"
	"github.com/aulalabs/knowledge-core/internal/core/ports/driving"
	"github.com/aulalabs/knowledge-core/internal/logger"
)

var _ driving.RetrievalService = (*Retrieval)(nil)

// Canned placeholders so downstream consumers always get well-formed
// text, never an empty string.
const (
	noDocumentsMessage = "No relevant documents were found in the knowledge base."
	noMatchesMessage   = "No relevant documents were found for this topic in the knowledge base."
)

// Retrieval implements retrieval-augmented context assembly over the
// document store. Search is best-effort: when embedding or the
// similarity backend fails it degrades to keyword matching instead of
// surfacing an error.
type Retrieval struct {
	store    driven.DocumentStore
	embedder driven.EmbeddingService // nil means keyword-only mode

	minSimilarity float64
	topK          int
}

// NewRetrieval creates the retrieval service with default search
// settings. embedder may be nil for degraded keyword-only retrieval.
func NewRetrieval(store driven.DocumentStore, embedder driven.EmbeddingService, minSimilarity float64, topK int) *Retrieval {
	if minSimilarity <= 0 {
		minSimilarity = 0.7
	}
	if topK <= 0 {
		topK = 10
	}
	return &Retrieval{
		store:         store,
		embedder:      embedder,
		minSimilarity: minSimilarity,
		topK:          topK,
	}
}

// SearchRelevantChunks embeds the query and returns the tenant's
// chunks ranked by similarity, falling back to keyword search when
// the semantic path is unavailable. A dimension mismatch is a
// configuration fault and propagates instead of degrading.
func (r *Retrieval) SearchRelevantChunks(ctx context.Context, query string, scope domain.TenantScope, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	if scope.IsZero() {
		return nil, fmt.Errorf("%w: tenant scope is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}
	limit, threshold := r.applyDefaults(opts)

	embedding, err := r.embedQuery(ctx, query)
	if err != nil {
		if errors.Is(err, domain.ErrDimensionMismatch) {
			return nil, err
		}
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			logger.Debug("No embedding provider, using keyword search")
		} else {
			logger.Warn("Query embedding failed, falling back to keyword search: %v", err)
		}
		return r.store.SearchKeyword(ctx, query, scope, limit)
	}

	results, err := r.store.SearchSimilar(ctx, embedding, scope, limit, threshold)
	if err != nil {
		if errors.Is(err, domain.ErrDimensionMismatch) {
			return nil, err
		}
		logger.Warn("Similarity search failed, falling back to keyword search: %v", err)
		return r.store.SearchKeyword(ctx, query, scope, limit)
	}

	return results, nil
}

// GenerateContext runs retrieval and assembles the structured context
// block for the downstream analysis consumer.
func (r *Retrieval) GenerateContext(ctx context.Context, query string, scope domain.TenantScope, opts domain.SearchOptions) (*domain.RAGContext, error) {
	if scope.IsZero() {
		logger.Warn("Context requested without a tenant scope")
		return &domain.RAGContext{ContextText: noDocumentsMessage}, nil
	}

	results, err := r.SearchRelevantChunks(ctx, query, scope, opts)
	if err != nil {
		return nil, err
	}

	total, err := r.store.CountVectorized(ctx, scope)
	if err != nil {
		logger.Warn("Counting vectorized documents: %v", err)
	}

	if len(results) == 0 {
		return &domain.RAGContext{
			ContextText:    noMatchesMessage,
			TotalDocuments: total,
		}, nil
	}

	logger.Info("Context assembled from %d chunks", len(results))

	return &domain.RAGContext{
		RelevantChunks: results,
		ContextText:    buildContextText(results),
		DocumentTitles: distinctTitles(results),
		TotalDocuments: total,
	}, nil
}

// SearchMultiQuery runs retrieval for several related queries,
// de-duplicating by chunk identity (first occurrence wins) and
// merging by relevance.
func (r *Retrieval) SearchMultiQuery(ctx context.Context, queries []string, scope domain.TenantScope, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	limit, _ := r.applyDefaults(opts)

	var merged []domain.SearchResult
	seen := make(map[string]struct{})

	for _, query := range queries {
		results, err := r.SearchRelevantChunks(ctx, query, scope, opts)
		if err != nil {
			return nil, err
		}
		for _, result := range results {
			if _, ok := seen[result.Chunk.ID]; ok {
				continue
			}
			seen[result.Chunk.ID] = struct{}{}
			merged = append(merged, result)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Similarity > merged[j].Similarity
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// embedQuery produces the query vector, or ErrEmbeddingUnavailable
// when no provider is configured.
func (r *Retrieval) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if r.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	return r.embedder.Embed(ctx, query)
}

// applyDefaults resolves search options against configured defaults.
func (r *Retrieval) applyDefaults(opts domain.SearchOptions) (limit int, threshold float64) {
	limit = opts.Limit
	if limit <= 0 {
		limit = r.topK
	}
	threshold = opts.MinSimilarity
	if threshold <= 0 {
		threshold = r.minSimilarity
	}
	return limit, threshold
}

// buildContextText renders the hits grouped by source document with
// per-document average relevance, readable both by humans and by the
// downstream completion call.
func buildContextText(results []domain.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "KNOWLEDGE BASE CONTEXT (%d fragments found):\n\n", len(results))

	separator := strings.Repeat("=", 51) + "\n"

	for _, group := range groupByDocument(results) {
		var sum float64
		for _, r := range group {
			sum += r.Similarity
		}
		avg := sum / float64(len(group))

		b.WriteString(separator)
		fmt.Fprintf(&b, "Document: %q\n", group[0].DocumentTitle)
		category := group[0].DocumentCategory
		if category == "" {
			category = "uncategorized"
		}
		fmt.Fprintf(&b, "Category: %s\n", category)
		fmt.Fprintf(&b, "Relevance: %.1f%%\n", avg*100)
		b.WriteString(separator)
		b.WriteString("\n")

		for i, r := range group {
			fmt.Fprintf(&b, "--- Fragment %d (similarity: %.1f%%) ---\n", i+1, r.Similarity*100)
			b.WriteString(strings.TrimSpace(r.Chunk.Content))
			b.WriteString("\n\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("\nANALYSIS INSTRUCTIONS:\n")
	b.WriteString("- Use these fragments as reference material when evaluating the explanation\n")
	b.WriteString("- Check whether the explanation is consistent with these documents\n")
	b.WriteString("- Point out concepts mentioned that are missing from the documents\n")
	b.WriteString("- Recommend concrete examples from these documents where relevant\n\n")

	return b.String()
}

// groupByDocument groups results by owning document, preserving
// first-appearance order.
func groupByDocument(results []domain.SearchResult) [][]domain.SearchResult {
	index := make(map[string]int)
	var groups [][]domain.SearchResult
	for _, r := range results {
		i, ok := index[r.DocumentID]
		if !ok {
			i = len(groups)
			index[r.DocumentID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], r)
	}
	return groups
}

// distinctTitles returns source document titles in first-appearance order.
func distinctTitles(results []domain.SearchResult) []string {
	seen := make(map[string]struct{})
	var titles []string
	for _, r := range results {
		if _, ok := seen[r.DocumentTitle]; ok {
			continue
		}
		seen[r.DocumentTitle] = struct{}{}
		titles = append(titles, r.DocumentTitle)
	}
	return titles
}
