package driven

import "context"

// Extractor pulls plain text out of an uploaded binary document.
// Each extractor handles specific MIME types (e.g., PDF, DOCX).
// No OCR, no layout preservation.
type Extractor interface {
	// SupportedMIMETypes returns the MIME types this extractor handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred)
	// when multiple extractors claim the same MIME type.
	Priority() int

	// Extract converts raw bytes to plain text. Unreadable bytes
	// surface as domain.ErrExtractionFailed. Any temporary artifact
	// created while reading is removed on both success and failure.
	Extract(ctx context.Context, data []byte) (string, error)
}

// ExtractorRegistry selects an extractor by declared content type.
type ExtractorRegistry interface {
	// Extract dispatches to the highest-priority extractor for the
	// MIME type, or fails with domain.ErrUnsupportedFormat.
	Extract(ctx context.Context, data []byte, mimeType string) (string, error)
}
