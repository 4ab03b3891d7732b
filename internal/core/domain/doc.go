// Package domain defines the core business entities for the knowledge base.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An uploaded file with its extracted text and lifecycle status
//   - Chunk: A bounded slice of a document's text with its embedding vector
//   - TenantScope: The (teacher, school) pair isolating one user's documents
//   - SearchResult / RAGContext: Retrieval output shapes
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
