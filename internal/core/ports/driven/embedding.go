package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// This is an optional service - when nil, documents are ingested in
// degraded keyword-only mode and semantic search is disabled.
//
// The only hard contract is: same model implies same dimensionality
// implies comparable vectors. Chunk storage and query-time search MUST
// use the same model; callers validate returned vectors against
// Dimensions and fail fast on mismatch.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	// Input longer than the provider's token budget is truncated by
	// character count before the call rather than failing.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size (e.g., 1536).
	// This is determined by the model and recorded in configuration.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}
