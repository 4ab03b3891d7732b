package driving

import (
	"context"

	"github.com/aulalabs/knowledge-core/internal/core/domain"
)

// RetrievalService provides retrieval-augmented context assembly.
// It is best-effort enrichment: callers always receive a well-formed
// response, never a hard failure from a degraded search path.
type RetrievalService interface {
	// SearchRelevantChunks embeds the query and returns the tenant's
	// chunks ranked by similarity. Falls back to keyword search when
	// embedding or the similarity backend fails.
	SearchRelevantChunks(ctx context.Context, query string, scope domain.TenantScope, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// GenerateContext runs retrieval and assembles a structured text
	// block for the downstream analysis consumer.
	GenerateContext(ctx context.Context, query string, scope domain.TenantScope, opts domain.SearchOptions) (*domain.RAGContext, error)

	// SearchMultiQuery runs retrieval for several related queries,
	// de-duplicating by chunk identity (first occurrence wins) and
	// merging by relevance.
	SearchMultiQuery(ctx context.Context, queries []string, scope domain.TenantScope, opts domain.SearchOptions) ([]domain.SearchResult, error)
}
