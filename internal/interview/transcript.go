package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/types"
)

// TranscriptStore 面试对话的Redis留档。
// 面试核心是无状态的（历史随请求携带），这里只做审计留底：
// 每条消息RPush进按面试链接分键的List。
type TranscriptStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTranscriptStore 创建留档存储。ttl为0时记录不过期。
func NewTranscriptStore(client *redis.Client, ttl time.Duration) (*TranscriptStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	return &TranscriptStore{client: client, ttl: ttl}, nil
}

func (s *TranscriptStore) key(interviewID string) string {
	return fmt.Sprintf(constants.KeyInterviewTranscript, interviewID)
}

// Append 追加消息并续期，Pipeline保证两步一起提交
func (s *TranscriptStore) Append(ctx context.Context, interviewID string, messages ...types.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}

	key := s.key(interviewID)
	pipe := s.client.TxPipeline()
	for _, msg := range messages {
		serialized, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal transcript message for %s: %w", interviewID, err)
		}
		pipe.RPush(ctx, key, serialized)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append transcript for %s: %w", interviewID, err)
	}
	return nil
}

// History 取回整场对话，键不存在返回空列表
func (s *TranscriptStore) History(ctx context.Context, interviewID string) ([]types.ChatMessage, error) {
	serialized, err := s.client.LRange(ctx, s.key(interviewID), 0, -1).Result()
	if errors.Is(err, redis.Nil) {
		return []types.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript for %s: %w", interviewID, err)
	}

	messages := make([]types.ChatMessage, 0, len(serialized))
	for _, item := range serialized {
		var msg types.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("corrupted transcript entry for %s: %w", interviewID, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Clear 删除整场留档
func (s *TranscriptStore) Clear(ctx context.Context, interviewID string) error {
	if err := s.client.Del(ctx, s.key(interviewID)).Err(); err != nil {
		return fmt.Errorf("failed to clear transcript for %s: %w", interviewID, err)
	}
	return nil
}
