package domain

import "time"

// DocumentStatus is the lifecycle state of an uploaded document.
// Statuses only move forward; see CanTransition.
type DocumentStatus string

const (
	// StatusUploaded means the file has been accepted but not yet processed.
	StatusUploaded DocumentStatus = "UPLOADED"

	// StatusProcessing means ingestion is running.
	StatusProcessing DocumentStatus = "PROCESSING"

	// StatusReady means text was extracted but chunks were not embedded.
	// The document is keyword-searchable only (degraded mode).
	StatusReady DocumentStatus = "READY"

	// StatusVectorized means chunks are embedded and semantically searchable.
	StatusVectorized DocumentStatus = "VECTORIZED"

	// StatusError means processing failed. The failure reason is stored
	// in the document's Content field.
	StatusError DocumentStatus = "ERROR"
)

// CanTransition reports whether moving from s to next is a legal
// forward transition of the document lifecycle.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	switch s {
	case StatusUploaded:
		return next == StatusProcessing || next == StatusError
	case StatusProcessing:
		return next == StatusReady || next == StatusVectorized || next == StatusError
	case StatusReady, StatusVectorized:
		// Reprocessing re-enters PROCESSING.
		return next == StatusProcessing || next == StatusError
	case StatusError:
		return next == StatusProcessing
	default:
		return false
	}
}

// Valid reports whether s is a known status value.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusReady, StatusVectorized, StatusError:
		return true
	}
	return false
}

// TenantScope identifies the owner of a set of documents.
// All retrieval is restricted to a single scope.
type TenantScope struct {
	// TeacherID is the owning teacher.
	TeacherID string

	// SchoolID is the owning school.
	SchoolID string
}

// IsZero reports whether the scope is missing either identifier.
func (t TenantScope) IsZero() bool {
	return t.TeacherID == "" || t.SchoolID == ""
}

// Document represents one uploaded file in the knowledge base.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// TeacherID is the owning teacher (access-control attribute).
	TeacherID string

	// SchoolID is the owning school (access-control attribute).
	SchoolID string

	// Title is the human-readable title supplied at upload.
	Title string

	// Category groups documents (defaults to "general").
	Category string

	// Content is the full extracted text. Empty until processing
	// completes; holds the failure reason when Status is ERROR.
	Content string

	// Status is the lifecycle state.
	Status DocumentStatus

	// FileName is the original upload file name.
	FileName string

	// FileSize is the upload size in bytes.
	FileSize int64

	// MIMEType is the declared content type of the upload.
	MIMEType string

	// BlobKey locates the original bytes in the blob store.
	BlobKey string

	// ChunkPreview holds a lightweight preview of each chunk
	// (index plus the first part of its text) for listing UIs.
	ChunkPreview []ChunkPreview

	// CreatedAt is when the upload was accepted.
	CreatedAt time.Time

	// UpdatedAt is when the document last changed.
	UpdatedAt time.Time
}

// Scope returns the document's tenant scope.
func (d *Document) Scope() TenantScope {
	return TenantScope{TeacherID: d.TeacherID, SchoolID: d.SchoolID}
}

// ChunkPreview is a truncated view of a chunk stored on the document row.
type ChunkPreview struct {
	// Index is the chunk's position within the document.
	Index int `json:"index"`

	// Text is the leading part of the chunk content.
	Text string `json:"text"`
}

// Chunk represents one contiguous slice of a document's extracted text,
// stored with its own embedding vector for independent retrieval.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Index is the zero-based position within the document.
	// Indices are contiguous from 0 and unique per document.
	Index int

	// Content is the text content of this chunk.
	Content string

	// Embedding is the vector representation for semantic search.
	// Dimensionality is constant across all chunks in the system.
	Embedding []float32

	// StartChar is the chunk's starting character offset in the
	// document text.
	StartChar int

	// EndChar is the character offset one past the chunk's end.
	EndChar int
}
