package filesystem

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulalabs/knowledge-core/internal/core/domain"
)

func TestBlobStore_UploadAndGet(t *testing.T) {
	store, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	upload, err := store.Upload(ctx, []byte("payload"), "teacher-1", "science", "notes.pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(upload.Key, "documents/teacher-1/science/"))
	assert.True(t, strings.HasSuffix(upload.Key, ".pdf"))
	assert.True(t, strings.HasPrefix(upload.URL, "file://"))

	data, err := store.GetBytes(ctx, upload.Key)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestBlobStore_Upload_DefaultCategory(t *testing.T) {
	store, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)

	upload, err := store.Upload(context.Background(), []byte("x"), "teacher-1", "", "a.txt")
	require.NoError(t, err)
	assert.Contains(t, upload.Key, "/general/")
}

func TestBlobStore_Upload_RequiresTeacher(t *testing.T) {
	store, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), []byte("x"), "", "general", "a.txt")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBlobStore_GetBytes_NotFound(t *testing.T) {
	store, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.GetBytes(context.Background(), "documents/none/general/missing.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBlobStore_Delete_ToleratesMissing(t *testing.T) {
	store, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	upload, err := store.Upload(ctx, []byte("x"), "teacher-1", "general", "a.txt")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, upload.Key))
	require.NoError(t, store.Delete(ctx, upload.Key)) // second delete is a no-op

	_, err = store.GetBytes(ctx, upload.Key)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBlobStore_SignedURL(t *testing.T) {
	store, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	upload, err := store.Upload(ctx, []byte("x"), "teacher-1", "general", "a.txt")
	require.NoError(t, err)

	url, err := store.SignedURL(ctx, upload.Key, time.Hour)
	require.NoError(t, err)
	assert.Contains(t, url, "expires=")

	_, err = store.SignedURL(ctx, "documents/none/general/missing.txt", time.Hour)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
