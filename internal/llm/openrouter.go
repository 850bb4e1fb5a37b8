package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	defaultOpenRouterAPIURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultRequestTimeout   = 30 * time.Second
)

// OpenRouterChatModel 通过 OpenAI 兼容的 HTTP 接口访问 OpenRouter 聊天补全。
// 实现了 eino 的 model.ChatModel，可以在需要 ChatModel 的地方直接使用；
// 多模型回退由上层的 ModelChain 完成。
type OpenRouterChatModel struct {
	apiKey     string
	modelName  string
	apiURL     string
	httpClient *http.Client
	// OpenRouter 推荐携带的来源标识头
	referer string
	title   string
	logger  *log.Logger
}

// OpenRouterOption 配置 OpenRouterChatModel 的可选项
type OpenRouterOption func(*OpenRouterChatModel)

// WithHTTPClient 使用自定义的HTTP客户端
func WithHTTPClient(c *http.Client) OpenRouterOption {
	return func(m *OpenRouterChatModel) {
		if c != nil {
			m.httpClient = c
		}
	}
}

// WithTimeout 设置单次请求超时
func WithTimeout(d time.Duration) OpenRouterOption {
	return func(m *OpenRouterChatModel) {
		if d > 0 {
			m.httpClient.Timeout = d
		}
	}
}

// WithAppInfo 设置 HTTP-Referer / X-Title 头
func WithAppInfo(referer, title string) OpenRouterOption {
	return func(m *OpenRouterChatModel) {
		m.referer = referer
		m.title = title
	}
}

// WithLogger 设置日志输出
func WithLogger(l *log.Logger) OpenRouterOption {
	return func(m *OpenRouterChatModel) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewOpenRouterChatModel 创建一个固定模型名的聊天客户端。
func NewOpenRouterChatModel(apiKey, modelName, apiURL string, opts ...OpenRouterOption) (*OpenRouterChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}
	if strings.TrimSpace(modelName) == "" {
		return nil, fmt.Errorf("模型名不能为空")
	}

	url := apiURL
	if strings.TrimSpace(url) == "" {
		url = defaultOpenRouterAPIURL
	}

	m := &OpenRouterChatModel{
		apiKey:     apiKey,
		modelName:  modelName,
		apiURL:     url,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		logger:     log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// ModelName 返回该客户端绑定的模型名
func (m *OpenRouterChatModel) ModelName() string {
	return m.modelName
}

// --- OpenAI 兼容的请求/响应结构 ---

type chatCompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type apiError struct {
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"`
}

type chatCompletionResponse struct {
	Id      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

// GenerateParams 单次补全的调用参数
type GenerateParams struct {
	MaxTokens   int
	Temperature *float64
}

// Complete 发送一次聊天补全请求并返回首个choice的文本。
// 任何非2xx、带error字段或choices为空的响应都按失败处理，交由上层回退。
func (m *OpenRouterChatModel) Complete(ctx context.Context, messages []*schema.Message, params GenerateParams) (string, error) {
	reqPayload := chatCompletionRequest{
		Model:       m.modelName,
		Messages:    messages,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return "", fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if m.referer != "" {
		httpReq.Header.Set("HTTP-Referer", m.referer)
	}
	if m.title != "" {
		httpReq.Header.Set("X-Title", m.title)
	}

	m.logger.Printf("[OpenRouter] 请求 %s，模型 %s", m.apiURL, m.modelName)

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("读取响应体失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API 请求失败，状态 %s: %s", httpResp.Status, string(bodyBytes))
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return "", fmt.Errorf("反序列化 API 响应失败: %w", err)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("API 返回错误: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("API 返回空 choices")
	}

	content := ""
	if resp.Choices[0].Message.Content != nil {
		content = *resp.Choices[0].Message.Content
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("API 返回空内容")
	}
	return content, nil
}

// Generate 实现 eino 的 model.ChatModel 接口
func (m *OpenRouterChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	for _, opt := range options {
		_ = opt // 本模型不消费通用选项
	}

	content, err := m.Complete(ctx, messages, GenerateParams{})
	if err != nil {
		return nil, err
	}

	return &schema.Message{
		Role:    schema.Assistant,
		Content: content,
	}, nil
}

// Stream 实现 model.ChatModel 接口（未实现流式）
func (m *OpenRouterChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("OpenRouterChatModel 的 Stream 方法未实现")
}

var _ model.BaseChatModel = (*OpenRouterChatModel)(nil)
