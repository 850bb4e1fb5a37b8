package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/storage/models"
)

// 投递事件类型，同时用作发件箱的 event_type
const (
	EventApplicationSubmitted = "application.submitted"
	EventApplicationScored    = "application.scored"
)

// ApplicationSubmittedEvent 新投递入库后发布的事件，
// 消费端据此做向量化与离线处理。
type ApplicationSubmittedEvent struct {
	ApplicationID string    `json:"application_id"`
	JobID         string    `json:"job_id"`
	SubmittedAt   time.Time `json:"submitted_at"`

	CandidateName  string `json:"candidate_name,omitempty"`
	CandidateEmail string `json:"candidate_email,omitempty"`

	// 原始文件在MinIO中的对象键，纯文本投递时为空
	CVFilePathOSS string `json:"cv_file_path_oss,omitempty"`
	CVFileMD5     string `json:"cv_file_md5,omitempty"`

	// 解析来源标记（ner_nlp / deepseek_llm / multimodal_llm / ...）
	ParsingMethod string `json:"parsing_method,omitempty"`
}

// ApplicationScoredEvent 相似度比较完成后发布的事件。
type ApplicationScoredEvent struct {
	ApplicationID string    `json:"application_id"`
	JobID         string    `json:"job_id"`
	Score         float64   `json:"score"`      // [0,1]
	Percentage    float64   `json:"percentage"` // score×100
	InterviewLink string    `json:"interview_link,omitempty"`
	ScoredAt      time.Time `json:"scored_at"`
}

// NewSubmittedOutboxMessage 把提交事件包装成待中继发布的outbox记录
func NewSubmittedOutboxMessage(cfg *config.RabbitMQConfig, event ApplicationSubmittedEvent) (*models.OutboxMessage, error) {
	return newOutboxMessage(cfg, event.ApplicationID, EventApplicationSubmitted, cfg.SubmittedRoutingKey, event)
}

// NewScoredOutboxMessage 把评分事件包装成待中继发布的outbox记录
func NewScoredOutboxMessage(cfg *config.RabbitMQConfig, event ApplicationScoredEvent) (*models.OutboxMessage, error) {
	return newOutboxMessage(cfg, event.ApplicationID, EventApplicationScored, cfg.ScoredRoutingKey, event)
}

func newOutboxMessage(cfg *config.RabbitMQConfig, aggregateID, eventType, routingKey string, payload interface{}) (*models.OutboxMessage, error) {
	if cfg == nil || cfg.ApplicationEventsExchange == "" {
		return nil, fmt.Errorf("application events exchange未配置")
	}
	if routingKey == "" {
		return nil, fmt.Errorf("事件 %s 的路由键未配置", eventType)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化事件负载失败: %w", err)
	}

	return &models.OutboxMessage{
		AggregateID:      aggregateID,
		EventType:        eventType,
		Payload:          string(data),
		TargetExchange:   cfg.ApplicationEventsExchange,
		TargetRoutingKey: routingKey,
		Status:           models.OutboxStatusPending,
	}, nil
}
