package interview

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-agent-go/internal/types"
)

func TestNewTranscriptStoreNilClient(t *testing.T) {
	_, err := NewTranscriptStore(nil, time.Hour)
	assert.Error(t, err)
}

// TestTranscriptRoundTrip 需要真实Redis，通过 TEST_REDIS_ADDR 开启
func TestTranscriptRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR 未设置，跳过Redis集成测试")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	store, err := NewTranscriptStore(client, time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	interviewID := "it-test-roundtrip"
	defer func() { _ = store.Clear(ctx, interviewID) }()

	require.NoError(t, store.Append(ctx, interviewID,
		types.ChatMessage{Role: "interviewer", Content: "第一问"},
		types.ChatMessage{Role: "interviewee", Content: "第一答"},
	))

	history, err := store.History(ctx, interviewID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "interviewer", history[0].Role)
	assert.Equal(t, "第一答", history[1].Content)

	require.NoError(t, store.Clear(ctx, interviewID))
	history, err = store.History(ctx, interviewID)
	require.NoError(t, err)
	assert.Empty(t, history)
}
