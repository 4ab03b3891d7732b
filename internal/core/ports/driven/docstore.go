package driven

import (
	"context"

	"github.com/aulalabs/knowledge-core/internal/core/domain"
)

// DocumentStore persists documents and their chunks.
// Backed by SQLite with a vector-capable chunk column.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// UpdateStatus advances a document's lifecycle state. Implementations
	// reject transitions that domain.DocumentStatus.CanTransition forbids.
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus) error

	// SaveChunk persists a single chunk row. Each call is its own atomic
	// unit so partial ingestion progress survives a crash.
	SaveChunk(ctx context.Context, chunk *domain.Chunk) error

	// GetChunks retrieves all chunks for a document ordered by index.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// DeleteChunks removes all chunks for a document (reprocessing).
	DeleteChunks(ctx context.Context, documentID string) error

	// DeleteDocument removes a document and cascades to its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns a tenant's documents, newest first.
	ListDocuments(ctx context.Context, scope domain.TenantScope) ([]domain.Document, error)

	// CountVectorized returns the tenant's number of VECTORIZED documents.
	CountVectorized(ctx context.Context, scope domain.TenantScope) (int, error)

	// SearchSimilar returns the tenant's chunks ranked by cosine
	// similarity to the query vector, descending, excluding results
	// below minSimilarity and documents that are not VECTORIZED.
	// A failure of the native similarity path surfaces as
	// domain.ErrSearchBackend; comparing vectors of different length
	// surfaces as domain.ErrDimensionMismatch.
	SearchSimilar(ctx context.Context, query []float32, scope domain.TenantScope, limit int, minSimilarity float64) ([]domain.SearchResult, error)

	// SearchKeyword is the degraded fallback: a case-insensitive
	// substring match over title and content of the tenant's processed
	// documents, returning their leading chunks.
	SearchKeyword(ctx context.Context, query string, scope domain.TenantScope, limit int) ([]domain.SearchResult, error)

	// Close releases resources.
	Close() error
}
