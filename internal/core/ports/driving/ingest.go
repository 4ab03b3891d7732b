package driving

import (
	"context"

	"github.com/aulalabs/knowledge-core/internal/core/domain"
)

// UploadRequest describes an accepted file upload.
type UploadRequest struct {
	// TeacherID is the uploading teacher.
	TeacherID string

	// SchoolID is the teacher's school.
	SchoolID string

	// Title is the document title (required).
	Title string

	// Category groups the document; empty defaults to "general".
	Category string

	// FileName is the original upload file name.
	FileName string

	// MIMEType is the declared content type.
	MIMEType string

	// Data is the raw file payload.
	Data []byte
}

// IngestionService drives the document processing pipeline.
type IngestionService interface {
	// Ingest accepts an upload, stores the payload, creates the
	// document row and kicks off background processing. It returns
	// the created document immediately (status PROCESSING) without
	// waiting for the pipeline to finish.
	Ingest(ctx context.Context, req UploadRequest) (*domain.Document, error)

	// Reprocess re-runs chunking and embedding for a document using
	// its cached extracted text, replacing all existing chunks. Runs
	// in the background like Ingest.
	Reprocess(ctx context.Context, documentID string) error

	// Delete removes a document, its chunks and its stored blob.
	Delete(ctx context.Context, documentID string) error

	// Wait blocks until all in-flight background processing finishes.
	// Intended for tests and graceful shutdown.
	Wait()
}
