package driven

import (
	"context"
	"time"
)

// BlobUpload is the result of storing an object.
type BlobUpload struct {
	// Key locates the object for later retrieval.
	Key string

	// URL is a direct (unsigned) location for the object.
	URL string
}

// BlobStore is the external object storage boundary. The ingestion
// pipeline depends on a document's bytes being fetchable by key for
// reprocessing; everything else about the store is opaque.
type BlobStore interface {
	// Upload stores bytes under a tenant/category-scoped key derived
	// from the original file name.
	Upload(ctx context.Context, data []byte, teacherID, category, fileName string) (*BlobUpload, error)

	// GetBytes fetches an object by key.
	GetBytes(ctx context.Context, key string) ([]byte, error)

	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// SignedURL returns a time-limited URL for direct download.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
