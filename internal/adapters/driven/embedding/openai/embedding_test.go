package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulalabs/knowledge-core/internal/core/domain"
)

// newTestServer returns a server answering with a fixed embedding
// and recording the last request body.
func newTestServer(t *testing.T, dims int, lastReq *embeddingRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if lastReq != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(lastReq))
		}
		vec := make([]float64, dims)
		for i := range vec {
			vec[i] = 0.1
		}
		resp := map[string]any{
			"data": []map[string]any{{"embedding": vec, "index": 0}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestNewEmbeddingService_RequiresAPIKey(t *testing.T) {
	_, err := NewEmbeddingService(Config{})
	assert.Error(t, err)
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	s, err := NewEmbeddingService(Config{APIKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, s.ModelName())
	assert.Equal(t, 1536, s.Dimensions())
}

func TestNewEmbeddingService_UnknownModelFallback(t *testing.T) {
	s, err := NewEmbeddingService(Config{APIKey: "key", Model: "custom-model"})
	require.NoError(t, err)
	assert.Equal(t, 1536, s.Dimensions())
}

func TestEmbed_Success(t *testing.T) {
	var lastReq embeddingRequest
	srv := newTestServer(t, 8, &lastReq)
	defer srv.Close()

	s, err := NewEmbeddingService(Config{
		APIKey:         "key",
		BaseURL:        srv.URL,
		Dimensions:     8,
		InterCallDelay: time.Millisecond,
	})
	require.NoError(t, err)

	vec, err := s.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 8)
	assert.Equal(t, []string{"hello"}, lastReq.Input)
	assert.Equal(t, DefaultModel, lastReq.Model)
}

func TestEmbed_TruncatesOversizedInput(t *testing.T) {
	var lastReq embeddingRequest
	srv := newTestServer(t, 8, &lastReq)
	defer srv.Close()

	s, err := NewEmbeddingService(Config{
		APIKey:         "key",
		BaseURL:        srv.URL,
		Dimensions:     8,
		InterCallDelay: time.Millisecond,
	})
	require.NoError(t, err)

	huge := make([]byte, DefaultTokenBudget*4+100)
	for i := range huge {
		huge[i] = 'a'
	}

	_, err = s.Embed(context.Background(), string(huge))
	require.NoError(t, err)
	assert.Len(t, lastReq.Input[0], DefaultTokenBudget*4)
}

func TestEmbed_TruncationKeepsValidUTF8(t *testing.T) {
	var lastReq embeddingRequest
	srv := newTestServer(t, 8, &lastReq)
	defer srv.Close()

	s, err := NewEmbeddingService(Config{
		APIKey:         "key",
		BaseURL:        srv.URL,
		Dimensions:     8,
		InterCallDelay: time.Millisecond,
	})
	require.NoError(t, err)

	// 3-byte runes force the character budget to land mid-rune.
	_, err = s.Embed(context.Background(), strings.Repeat("€", DefaultTokenBudget*2))
	require.NoError(t, err)

	sent := lastReq.Input[0]
	assert.True(t, utf8.ValidString(sent))
	assert.LessOrEqual(t, len(sent), DefaultTokenBudget*4)
}

func TestEmbed_DimensionMismatchFailsFast(t *testing.T) {
	srv := newTestServer(t, 8, nil)
	defer srv.Close()

	s, err := NewEmbeddingService(Config{
		APIKey:         "key",
		BaseURL:        srv.URL,
		Dimensions:     16, // server answers with 8
		InterCallDelay: time.Millisecond,
	})
	require.NoError(t, err)

	_, err = s.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestEmbed_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "quota exceeded", "type": "rate_limit"},
		})
	}))
	defer srv.Close()

	s, err := NewEmbeddingService(Config{
		APIKey:         "key",
		BaseURL:        srv.URL,
		InterCallDelay: time.Millisecond,
	})
	require.NoError(t, err)

	_, err = s.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestEmbed_UnreachableProvider(t *testing.T) {
	s, err := NewEmbeddingService(Config{
		APIKey:         "key",
		BaseURL:        "http://127.0.0.1:1",
		InterCallDelay: time.Millisecond,
		Timeout:        time.Second,
	})
	require.NoError(t, err)

	_, err = s.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
}

func TestEmbed_ThrottlesSequentialCalls(t *testing.T) {
	srv := newTestServer(t, 4, nil)
	defer srv.Close()

	delay := 50 * time.Millisecond
	s, err := NewEmbeddingService(Config{
		APIKey:         "key",
		BaseURL:        srv.URL,
		Dimensions:     4,
		InterCallDelay: delay,
	})
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := s.Embed(context.Background(), "x")
		require.NoError(t, err)
	}
	// First call passes immediately; the next two wait one delay each.
	assert.GreaterOrEqual(t, time.Since(start), 2*delay)
}
