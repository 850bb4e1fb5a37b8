package parser

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/llm"
	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/types"
)

// MultimodalCVParser 把整份文档（PDF或扫描图片）以Data URL形式
// 交给图像能力模型做结构化抽取。纯文本提取读不了的扫描件、
// 表格版式简历走这条路径。
type MultimodalCVParser struct {
	apiKey     string
	apiURL     string
	modelName  string
	httpClient *http.Client
}

// MultimodalOption 配置选项
type MultimodalOption func(*MultimodalCVParser)

// WithMultimodalTimeout 设置单次请求超时。多模态请求体大，默认放宽到120秒。
func WithMultimodalTimeout(d time.Duration) MultimodalOption {
	return func(m *MultimodalCVParser) {
		if d > 0 {
			m.httpClient.Timeout = d
		}
	}
}

// WithMultimodalHTTPClient 使用自定义HTTP客户端
func WithMultimodalHTTPClient(c *http.Client) MultimodalOption {
	return func(m *MultimodalCVParser) {
		if c != nil {
			m.httpClient = c
		}
	}
}

// NewMultimodalCVParser 创建多模态简历解析器
func NewMultimodalCVParser(apiKey, modelName, apiURL string, options ...MultimodalOption) (*MultimodalCVParser, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}
	if strings.TrimSpace(modelName) == "" {
		return nil, fmt.Errorf("多模态模型名不能为空")
	}
	url := apiURL
	if strings.TrimSpace(url) == "" {
		url = "https://openrouter.ai/api/v1/chat/completions"
	}

	m := &MultimodalCVParser{
		apiKey:     apiKey,
		apiURL:     url,
		modelName:  modelName,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, option := range options {
		option(m)
	}
	return m, nil
}

// --- OpenAI 兼容的多段内容消息结构 ---

type multimodalPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *multimodalURL  `json:"image_url,omitempty"`
	File     *multimodalFile `json:"file,omitempty"`
}

type multimodalURL struct {
	URL string `json:"url"`
}

type multimodalFile struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

type multimodalMessage struct {
	Role    string           `json:"role"`
	Content []multimodalPart `json:"content"`
}

type multimodalRequest struct {
	Model       string              `json:"model"`
	Messages    []multimodalMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature"`
}

type multimodalResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// documentPart 按扩展名把文档包装为file或image_url内容段
func documentPart(data []byte, filename string) (multimodalPart, error) {
	encoded := base64.StdEncoding.EncodeToString(data)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".pdf":
		return multimodalPart{
			Type: "file",
			File: &multimodalFile{
				Filename: filepath.Base(filename),
				FileData: "data:application/pdf;base64," + encoded,
			},
		}, nil
	case ".png", ".jpg", ".jpeg":
		mime := "image/png"
		if ext != ".png" {
			mime = "image/jpeg"
		}
		return multimodalPart{
			Type:     "image_url",
			ImageURL: &multimodalURL{URL: "data:" + mime + ";base64," + encoded},
		}, nil
	default:
		return multimodalPart{}, fmt.Errorf("unsupported document type for multimodal parsing: %s", ext)
	}
}

// Parse 把文档交给多模态模型做字段抽取。
// 失败返回错误，由上层级联到文本LLM路径。
func (m *MultimodalCVParser) Parse(ctx context.Context, data []byte, filename string) (*types.ParsedResume, error) {
	part, err := documentPart(data, filename)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(cvParsePromptTemplate, "(see the attached document)")
	req := multimodalRequest{
		Model: m.modelName,
		Messages: []multimodalMessage{
			{Role: "system", Content: []multimodalPart{{Type: "text", Text: cvParseSystemPrompt}}},
			{Role: "user", Content: []multimodalPart{{Type: "text", Text: prompt}, part}},
		},
		MaxTokens:   2000,
		Temperature: 0.1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("序列化多模态请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("多模态 API 请求失败，状态 %s", httpResp.Status)
	}

	var resp multimodalResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("API 返回错误: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("API 返回空内容")
	}

	resume, err := decodeMultimodalResume(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("model %s returned unusable JSON: %w", m.modelName, err)
	}
	resume.ParsingMethod = constants.ParsingMethodMultimodal
	logger.Ctx(ctx).Info().Str("model", m.modelName).Msg("多模态简历解析成功")
	return resume, nil
}

// decodeMultimodalResume 与文本路径共用清洗与归一化逻辑
func decodeMultimodalResume(raw string) (*types.ParsedResume, error) {
	cleaned := llm.StripCodeFences(raw)
	if obj := llm.ExtractJSONObject(cleaned); obj != "" {
		cleaned = obj
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		repaired := llm.SanitizeJSON(cleaned)
		if err2 := json.Unmarshal([]byte(repaired), &fields); err2 != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}
	return resumeFromFields(fields), nil
}
