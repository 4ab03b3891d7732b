package domain

// SearchResult represents a single similarity search hit.
type SearchResult struct {
	// Chunk is the matched chunk. Its Embedding is not populated
	// on the search path.
	Chunk Chunk

	// DocumentID is the owning document.
	DocumentID string

	// DocumentTitle is the owning document's title.
	DocumentTitle string

	// DocumentCategory is the owning document's category.
	DocumentCategory string

	// Similarity is the cosine similarity score in [-1, 1].
	Similarity float64
}

// RAGContext is the assembled retrieval output handed to the
// downstream analysis consumer.
type RAGContext struct {
	// RelevantChunks are the ranked hits that cleared the threshold.
	RelevantChunks []SearchResult

	// ContextText is the structured, self-contained text block built
	// from the hits. Never empty: a canned placeholder is used when
	// nothing matched.
	ContextText string

	// DocumentTitles are the distinct titles of the source documents,
	// in first-appearance order.
	DocumentTitles []string

	// TotalDocuments is the tenant's count of vectorized documents,
	// matched or not.
	TotalDocuments int
}

// SearchOptions configures a retrieval query.
type SearchOptions struct {
	// Limit is the maximum number of chunks to return (topK).
	Limit int

	// MinSimilarity excludes weak matches. Zero means the configured
	// default threshold.
	MinSimilarity float64
}
