package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat indicates no extractor handles the declared
	// content type. Fatal for the affected document.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrExtractionFailed indicates the extractor could not read the
	// file (corrupt or unreadable bytes). Fatal for the affected document.
	ErrExtractionFailed = errors.New("text extraction failed")

	// ErrEmbeddingUnavailable indicates no embedding service is configured.
	// Documents are ingested in degraded keyword-only mode.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrEmbeddingProvider indicates a remote embedding call failed
	// (network, auth, quota). Per-chunk failures are skipped; query-time
	// failures fall back to keyword search.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrSearchBackend indicates the native similarity query failed.
	// Retrieval degrades to the keyword fallback, never a hard failure.
	ErrSearchBackend = errors.New("search backend error")

	// ErrDimensionMismatch indicates vectors of different length were
	// compared. This corrupts similarity semantics undetectably, so it
	// must fail fast rather than degrade.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrIngestInProgress indicates the document is already being processed.
	ErrIngestInProgress = errors.New("ingestion already in progress")
)
