package parser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// 刻意乱序返回，客户端应按index回填
		resp := map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float64{0, 1}},
				{"index": 0, "embedding": []float64{1, 0}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-key", srv.URL+"/v1", "text-embedding-v3", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, e.Dimensions())

	vectors, err := e.EmbedStrings(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float64{1, 0}, vectors[0])
	assert.Equal(t, []float64{0, 1}, vectors[1])
}

func TestOpenAIEmbedderErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":{"message":"invalid model"}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-key", srv.URL, "bad-model", 2)
	require.NoError(t, err)

	_, err = e.EmbedStrings(context.Background(), []string{"x"})
	assert.Error(t, err)
}

func TestNewOpenAIEmbedderValidation(t *testing.T) {
	_, err := NewOpenAIEmbedder("", "http://x", "m", 2)
	assert.Error(t, err)
	_, err = NewOpenAIEmbedder("k", "http://x", "", 2)
	assert.Error(t, err)
}

// TestHashingEmbedderDeterministic 同一文本恒得同一向量
func TestHashingEmbedderDeterministic(t *testing.T) {
	h, err := NewHashingEmbedder(64)
	require.NoError(t, err)
	assert.Equal(t, 64, h.Dimensions())

	v1, err := h.EmbedStrings(context.Background(), []string{"python django postgresql"})
	require.NoError(t, err)
	v2, err := h.EmbedStrings(context.Background(), []string{"python django postgresql"})
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Len(t, v1[0], 64)
}

// TestHashingEmbedderNormalized 非空文本的向量是单位向量
func TestHashingEmbedderNormalized(t *testing.T) {
	h, err := NewHashingEmbedder(32)
	require.NoError(t, err)

	vectors, err := h.EmbedStrings(context.Background(), []string{"go kafka redis"})
	require.NoError(t, err)

	var norm float64
	for _, v := range vectors[0] {
		norm += v * v
	}
	assert.InDelta(t, 1.0, norm, 1e-9)
}

func TestNewHashingEmbedderValidation(t *testing.T) {
	_, err := NewHashingEmbedder(0)
	assert.Error(t, err)
}
