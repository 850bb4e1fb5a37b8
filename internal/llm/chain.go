package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"recruit-agent-go/internal/tracing"

	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrAllModelsFailed 偏好列表中的所有模型都失败。
// 调用方据此切换到本地兜底逻辑，而不是把错误抛给用户。
var ErrAllModelsFailed = errors.New("所有模型均调用失败")

// ModelChain 按固定偏好顺序尝试多个模型，首个成功者胜出。
// 这里的"重试"始终指换下一个模型，从不对同一模型重试。
type ModelChain struct {
	clients  []*OpenRouterChatModel
	limiters map[string]*TokenBucket
	tracer   trace.Tracer
	logger   *log.Logger
}

// ChainOption 配置 ModelChain
type ChainOption func(*chainSettings)

type chainSettings struct {
	qpmLimits  map[string]int
	timeout    time.Duration
	httpClient *http.Client
	referer    string
	title      string
	logger     *log.Logger
}

// WithQPMLimits 设置各模型的QPM限制，未配置的模型不限流
func WithQPMLimits(limits map[string]int) ChainOption {
	return func(s *chainSettings) {
		s.qpmLimits = limits
	}
}

// WithChainTimeout 设置单模型单次调用的超时
func WithChainTimeout(d time.Duration) ChainOption {
	return func(s *chainSettings) {
		s.timeout = d
	}
}

// WithChainHTTPClient 所有模型客户端共用的HTTP客户端（测试用）
func WithChainHTTPClient(c *http.Client) ChainOption {
	return func(s *chainSettings) {
		s.httpClient = c
	}
}

// WithChainAppInfo 设置 OpenRouter 来源标识头
func WithChainAppInfo(referer, title string) ChainOption {
	return func(s *chainSettings) {
		s.referer = referer
		s.title = title
	}
}

// WithChainLogger 设置日志输出
func WithChainLogger(l *log.Logger) ChainOption {
	return func(s *chainSettings) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewModelChain 为每个模型名创建一个客户端，按传入顺序作为回退顺序。
func NewModelChain(apiKey, apiURL string, modelNames []string, opts ...ChainOption) (*ModelChain, error) {
	if len(modelNames) == 0 {
		return nil, fmt.Errorf("模型偏好列表不能为空")
	}

	settings := &chainSettings{
		timeout: defaultRequestTimeout,
		logger:  log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(settings)
	}

	chain := &ModelChain{
		clients:  make([]*OpenRouterChatModel, 0, len(modelNames)),
		limiters: make(map[string]*TokenBucket),
		tracer:   otel.Tracer("llm-model-chain"),
		logger:   settings.logger,
	}

	for _, name := range modelNames {
		clientOpts := []OpenRouterOption{
			WithTimeout(settings.timeout),
			WithLogger(settings.logger),
		}
		if settings.httpClient != nil {
			clientOpts = append(clientOpts, WithHTTPClient(settings.httpClient))
		}
		if settings.referer != "" || settings.title != "" {
			clientOpts = append(clientOpts, WithAppInfo(settings.referer, settings.title))
		}

		client, err := NewOpenRouterChatModel(apiKey, name, apiURL, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("创建模型客户端 %s 失败: %w", name, err)
		}
		chain.clients = append(chain.clients, client)

		if qpm, ok := settings.qpmLimits[name]; ok && qpm > 0 {
			chain.limiters[name] = NewTokenBucket(qpm, 0)
		}
	}

	return chain, nil
}

// Models 返回链中各模型名，按偏好顺序
func (c *ModelChain) Models() []string {
	names := make([]string, len(c.clients))
	for i, cl := range c.clients {
		names[i] = cl.ModelName()
	}
	return names
}

// ChainResult 一次成功调用的结果及其来源模型
type ChainResult struct {
	Content string
	Model   string
}

// Complete 依次尝试每个模型，返回首个成功响应。
// 单个模型的传输错误、非2xx、error载荷、空choices都只算该模型失败；
// 全部失败时返回 ErrAllModelsFailed（包装了最后一个错误）。
func (c *ModelChain) Complete(ctx context.Context, messages []*schema.Message, params GenerateParams) (*ChainResult, error) {
	ctx, span := c.tracer.Start(ctx, "llm.chain.complete",
		trace.WithAttributes(attribute.Int("llm.chain.size", len(c.clients))))
	defer span.End()

	var lastErr error
	for i, client := range c.clients {
		name := client.ModelName()

		if limiter, ok := c.limiters[name]; ok && !limiter.Allow() {
			// 限流视为该模型本次失败，直接尝试下一个
			lastErr = fmt.Errorf("模型 %s 触发QPM限流", name)
			tracing.RecordModelFailure(span, name, i, lastErr)
			c.logger.Printf("[ModelChain] %v", lastErr)
			continue
		}

		content, err := client.Complete(ctx, messages, params)
		if err != nil {
			lastErr = err
			tracing.RecordModelFailure(span, name, i, err)
			c.logger.Printf("[ModelChain] 模型 %s 失败，切换下一个: %v", name, err)
			continue
		}

		span.SetAttributes(attribute.String("llm.chain.winner", name))
		return &ChainResult{Content: content, Model: name}, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("模型列表为空")
	}
	err := fmt.Errorf("%w: %v", ErrAllModelsFailed, lastErr)
	tracing.RecordError(span, err, tracing.ErrorTypeLLM)
	return nil, err
}

// CompleteSimple 以 system+user 两条消息发起调用的便捷方法
func (c *ModelChain) CompleteSimple(ctx context.Context, systemPrompt, userPrompt string, params GenerateParams) (*ChainResult, error) {
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	}
	return c.Complete(ctx, messages, params)
}
