package recruiter

import (
	"context"
	"encoding/json"
	"fmt"

	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/parser"
	"recruit-agent-go/internal/storage"
)

// VectorizeConsumer 消费投递事件，把投递文本同步进Qdrant。
// submitted与scored两类事件走同一条对账路径：以MySQL里的
// 投递记录为准重新向量化并upsert，天然幂等，重复投递无副作用。
type VectorizeConsumer struct {
	cfg      *config.Config
	storage  *storage.Storage
	embedder parser.TextEmbedder
	stopCh   chan struct{}
}

// NewVectorizeConsumer 创建向量化消费者
func NewVectorizeConsumer(cfg *config.Config, st *storage.Storage, embedder parser.TextEmbedder) *VectorizeConsumer {
	return &VectorizeConsumer{
		cfg:      cfg,
		storage:  st,
		embedder: embedder,
	}
}

// Start 启动消费。RabbitMQ或Qdrant未配置时返回错误。
func (c *VectorizeConsumer) Start() error {
	if c.storage.RabbitMQ == nil {
		return fmt.Errorf("RabbitMQ未配置，向量化消费者无法启动")
	}
	if c.storage.Qdrant == nil {
		return fmt.Errorf("Qdrant未配置，向量化消费者无法启动")
	}

	prefetch := c.cfg.RabbitMQ.PrefetchCount
	if prefetch <= 0 {
		prefetch = 10
	}

	stopCh, err := c.storage.RabbitMQ.StartConsumer(c.cfg.RabbitMQ.VectorizeQueue, prefetch, c.handleMessage)
	if err != nil {
		return fmt.Errorf("启动向量化消费者失败: %w", err)
	}
	c.stopCh = stopCh
	return nil
}

// Stop 停止消费
func (c *VectorizeConsumer) Stop() {
	if c.stopCh != nil {
		close(c.stopCh)
	}
}

// handleMessage 处理单条事件。返回true时Ack，false时Nack重新入队。
func (c *VectorizeConsumer) handleMessage(data []byte) bool {
	var event struct {
		ApplicationID string `json:"application_id"`
	}
	if err := json.Unmarshal(data, &event); err != nil || event.ApplicationID == "" {
		// 毒消息：重新入队只会无限循环，确认后丢弃
		logger.Error().Err(err).Str("body", string(data)).Msg("无法解析的投递事件，丢弃")
		return true
	}

	ctx := context.Background()

	if c.storage.MySQL == nil {
		logger.Warn().Str("application_id", event.ApplicationID).Msg("MySQL不可用，事件重新入队")
		return false
	}

	application, err := c.storage.MySQL.GetApplication(ctx, event.ApplicationID)
	if err != nil {
		// 记录可能还没提交可见，留给下一次投递
		logger.Warn().Err(err).Str("application_id", event.ApplicationID).Msg("投递记录不存在，重新入队")
		return false
	}
	if application.CVText == "" {
		logger.Info().Str("application_id", event.ApplicationID).Msg("投递没有简历文本，跳过向量化")
		return true
	}

	vectors, err := c.embedder.EmbedStrings(ctx, []string{application.CVText})
	if err != nil || len(vectors) == 0 {
		logger.Warn().Err(err).Str("application_id", event.ApplicationID).Msg("投递向量化失败，重新入队")
		return false
	}

	payload := map[string]interface{}{
		"application_id": application.ApplicationID,
		"job_id":         application.JobID,
		"cv_text":        application.CVText,
	}
	if application.CandidateName != "" {
		payload["candidate_name"] = application.CandidateName
	}
	if application.CandidateEmail != "" {
		payload["candidate_email"] = application.CandidateEmail
	}
	if application.SimilarityScore != nil {
		payload["similarity_score"] = *application.SimilarityScore
	}

	if _, err := c.storage.Qdrant.PutDocument(ctx, c.cfg.Qdrant.ApplicationsCollection, application.ApplicationID, vectors[0], payload); err != nil {
		logger.Warn().Err(err).Str("application_id", event.ApplicationID).Msg("投递写入Qdrant失败，重新入队")
		return false
	}

	logger.Info().Str("application_id", event.ApplicationID).Msg("投递向量已同步")
	return true
}
