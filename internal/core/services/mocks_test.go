package services

import (
	"context"
	"sync"
	"time"

	"github.com/aulalabs/knowledge-core/internal/core/domain"
	"github.com/aulalabs/knowledge-core/internal/core/ports/driven"
)

// mockBlobStore is an in-memory blob store test double.
type mockBlobStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	deleteErr error
	deleted   []string
}

var _ driven.BlobStore = (*mockBlobStore)(nil)

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{objects: make(map[string][]byte)}
}

func (m *mockBlobStore) Upload(_ context.Context, data []byte, teacherID, category, fileName string) (*driven.BlobUpload, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := "documents/" + teacherID + "/" + category + "/" + fileName
	m.objects[key] = data
	return &driven.BlobUpload{Key: key, URL: "file:///" + key}, nil
}

func (m *mockBlobStore) GetBytes(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (m *mockBlobStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, key)
	return nil
}

func (m *mockBlobStore) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "file:///" + key + "?expires=0", nil
}

// mockExtractorRegistry returns fixed text or a fixed error.
type mockExtractorRegistry struct {
	text string
	err  error
}

var _ driven.ExtractorRegistry = (*mockExtractorRegistry)(nil)

func (m *mockExtractorRegistry) Extract(_ context.Context, _ []byte, _ string) (string, error) {
	return m.text, m.err
}

// mockEmbedder returns a constant vector and can fail selectively.
type mockEmbedder struct {
	mu         sync.Mutex
	dimensions int
	err        error
	failOn     map[string]error // per-input failures
	calls      []string
}

var _ driven.EmbeddingService = (*mockEmbedder)(nil)

func newMockEmbedder(dimensions int) *mockEmbedder {
	return &mockEmbedder{dimensions: dimensions, failOn: make(map[string]error)}
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, text)
	if m.err != nil {
		return nil, m.err
	}
	if err, ok := m.failOn[text]; ok {
		return nil, err
	}
	vec := make([]float32, m.dimensions)
	vec[0] = 1
	return vec, nil
}

func (m *mockEmbedder) Dimensions() int   { return m.dimensions }
func (m *mockEmbedder) ModelName() string { return "mock-embedding" }
func (m *mockEmbedder) Close() error      { return nil }

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
