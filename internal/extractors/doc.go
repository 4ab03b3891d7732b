// Package extractors provides text extraction from uploaded binary
// documents, dispatched by declared MIME type. Extraction produces
// plain text only: no OCR, no layout preservation.
package extractors
