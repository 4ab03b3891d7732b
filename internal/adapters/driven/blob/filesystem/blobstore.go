// Package filesystem stores uploaded blobs on the local filesystem.
// Keys follow the documents/<teacher>/<category>/<uuid><ext> layout so
// a future object-storage backend can keep the same key scheme.
package filesystem

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aulalabs/knowledge-core/internal/core/domain"
	"github.com/aulalabs/knowledge-core/internal/core/ports/driven"
)

var _ driven.BlobStore = (*BlobStore)(nil)

// BlobStore persists blobs under a root directory.
type BlobStore struct {
	root string
}

// NewBlobStore creates a blob store rooted at dir. If dir is empty,
// defaults to ~/.knowledge/blobs.
func NewBlobStore(dir string) (*BlobStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".knowledge", "blobs")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}

	return &BlobStore{root: dir}, nil
}

// Upload stores data under a fresh tenant/category-scoped key.
func (b *BlobStore) Upload(_ context.Context, data []byte, teacherID, category, fileName string) (*driven.BlobUpload, error) {
	if teacherID == "" {
		return nil, fmt.Errorf("%w: teacher id is required", domain.ErrInvalidInput)
	}
	if category == "" {
		category = "general"
	}

	key := path.Join("documents", sanitize(teacherID), sanitize(category),
		uuid.NewString()+strings.ToLower(filepath.Ext(fileName)))

	dst := filepath.Join(b.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0700); err != nil {
		return nil, fmt.Errorf("creating blob path: %w", err)
	}
	if err := os.WriteFile(dst, data, 0600); err != nil {
		return nil, fmt.Errorf("writing blob: %w", err)
	}

	return &driven.BlobUpload{
		Key: key,
		URL: "file://" + filepath.ToSlash(dst),
	}, nil
}

// GetBytes fetches an object by key.
func (b *BlobStore) GetBytes(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(b.root, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("reading blob: %w", err)
	}
	return data, nil
}

// Delete removes an object. Missing keys are not an error.
func (b *BlobStore) Delete(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(b.root, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}

// SignedURL returns a file URL with an expiry marker. Local files need
// no real signature; the expiry query keeps the contract with callers
// that expect time-limited links.
func (b *BlobStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	dst := filepath.Join(b.root, filepath.FromSlash(key))
	if _, err := os.Stat(dst); err != nil {
		if os.IsNotExist(err) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("checking blob: %w", err)
	}

	expires := time.Now().UTC().Add(ttl).Unix()
	return fmt.Sprintf("file://%s?expires=%d", filepath.ToSlash(dst), expires), nil
}

// sanitize keeps key segments safe for path use.
func sanitize(segment string) string {
	return url.PathEscape(segment)
}
