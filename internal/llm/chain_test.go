package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompletionServer 返回一个OpenAI兼容的测试服务。
// failModels 中的模型名返回500，其余返回固定内容。
func fakeCompletionServer(t *testing.T, failModels map[string]bool, reply string, calls *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)

		var req struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if failModels[req.Model] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		content := reply
		resp := map[string]any{
			"id":    "test",
			"model": req.Model,
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

// TestModelChainFallsBackToNextModel 第一个模型失败时应换下一个模型，而不是重试
func TestModelChainFallsBackToNextModel(t *testing.T) {
	var calls int64
	srv := fakeCompletionServer(t, map[string]bool{"model-a": true}, "你好", &calls)
	defer srv.Close()

	chain, err := NewModelChain("test-key", srv.URL, []string{"model-a", "model-b"})
	require.NoError(t, err)

	result, err := chain.CompleteSimple(context.Background(), "system", "user", GenerateParams{})
	require.NoError(t, err)
	assert.Equal(t, "model-b", result.Model, "应该是第二个模型胜出")
	assert.Equal(t, "你好", result.Content)
	assert.EqualValues(t, 2, atomic.LoadInt64(&calls), "每个模型只应调用一次")
}

// TestModelChainAllFailed 全部模型失败时返回 ErrAllModelsFailed
func TestModelChainAllFailed(t *testing.T) {
	var calls int64
	srv := fakeCompletionServer(t, map[string]bool{"model-a": true, "model-b": true}, "", &calls)
	defer srv.Close()

	chain, err := NewModelChain("test-key", srv.URL, []string{"model-a", "model-b"})
	require.NoError(t, err)

	_, err = chain.CompleteSimple(context.Background(), "system", "user", GenerateParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllModelsFailed)
}

// TestModelChainErrorPayload 带error字段的200响应同样算该模型失败
func TestModelChainErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
	}))
	defer srv.Close()

	chain, err := NewModelChain("test-key", srv.URL, []string{"only-model"})
	require.NoError(t, err)

	_, err = chain.CompleteSimple(context.Background(), "s", "u", GenerateParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllModelsFailed)
}

// TestModelChainEmptyChoices 空choices列表按失败处理
func TestModelChainEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	chain, err := NewModelChain("test-key", srv.URL, []string{"only-model"})
	require.NoError(t, err)

	_, err = chain.CompleteSimple(context.Background(), "s", "u", GenerateParams{})
	assert.ErrorIs(t, err, ErrAllModelsFailed)
}

// TestNewModelChainRequiresModels 空模型列表直接拒绝
func TestNewModelChainRequiresModels(t *testing.T) {
	_, err := NewModelChain("key", "", nil)
	assert.Error(t, err)
}
