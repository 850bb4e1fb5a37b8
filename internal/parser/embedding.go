package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
)

// TextEmbedder 文本向量化接口。Qdrant的点向量由它生成。
type TextEmbedder interface {
	EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error)
	// Dimensions 返回向量维度，用于创建集合
	Dimensions() int
}

// OpenAIEmbedder 通过OpenAI兼容接口（OpenRouter/阿里云百炼等）生成文本向量
type OpenAIEmbedder struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
	logger     *log.Logger
}

// OpenAIEmbedderOption 配置选项
type OpenAIEmbedderOption func(*OpenAIEmbedder)

// WithEmbedderLogger 配置自定义日志记录器
func WithEmbedderLogger(l *log.Logger) OpenAIEmbedderOption {
	return func(e *OpenAIEmbedder) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithEmbedderTimeout 配置HTTP超时
func WithEmbedderTimeout(d time.Duration) OpenAIEmbedderOption {
	return func(e *OpenAIEmbedder) {
		if d > 0 {
			e.httpClient.Timeout = d
		}
	}
}

// NewOpenAIEmbedder 创建OpenAI兼容的嵌入客户端
func NewOpenAIEmbedder(apiKey, baseURL, model string, dimensions int, options ...OpenAIEmbedderOption) (*OpenAIEmbedder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("嵌入模型名不能为空")
	}
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("嵌入服务地址不能为空")
	}

	e := &OpenAIEmbedder{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log.New(os.Stderr, "[嵌入器] ", log.LstdFlags),
	}
	for _, option := range options {
		option(e)
	}
	return e, nil
}

type embeddingRequest struct {
	Input          interface{} `json:"input"` // string 或 []string
	Model          string      `json:"model"`
	Dimensions     int         `json:"dimensions,omitempty"`
	EncodingFormat string      `json:"encoding_format,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Dimensions 返回配置的向量维度
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// EmbedStrings 将文本批量转换为向量，实现 eino 的 embedding.Embedder 接口
func (e *OpenAIEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	var input interface{} = texts
	if len(texts) == 1 {
		input = texts[0]
	}

	reqBody := embeddingRequest{
		Input:          input,
		Model:          e.model,
		EncodingFormat: "float",
	}
	if e.dimensions > 0 {
		reqBody.Dimensions = e.dimensions
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化嵌入请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送嵌入请求失败: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("嵌入 API 请求失败，状态 %s: %.200s", resp.Status, string(bodyBytes))
	}

	var apiResp embeddingResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("反序列化嵌入响应失败: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("嵌入 API 返回错误: %s", apiResp.Error.Message)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("嵌入结果数量不匹配: got %d, want %d", len(apiResp.Data), len(texts))
	}

	// 按index排序回填，响应不保证顺序
	vectors := make([][]float64, len(texts))
	for _, d := range apiResp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("嵌入结果index越界: %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}

	e.logger.Printf("嵌入完成: %d 条文本, 维度 %d", len(texts), e.dimensions)
	return vectors, nil
}

var _ TextEmbedder = (*OpenAIEmbedder)(nil)
var _ embedding.Embedder = (*OpenAIEmbedder)(nil)

// HashingEmbedder 确定性的词袋哈希嵌入器。
// 没有配置远程嵌入服务时的离线兜底：同一文本总是得到同一向量，
// 词面重叠的文本余弦相似度更高，足够支撑词面级的向量检索。
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder 创建哈希嵌入器，维度必须为正
func NewHashingEmbedder(dimensions int) (*HashingEmbedder, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("嵌入维度必须为正: %d", dimensions)
	}
	return &HashingEmbedder{dimensions: dimensions}, nil
}

// Dimensions 返回向量维度
func (h *HashingEmbedder) Dimensions() int {
	return h.dimensions
}

// EmbedStrings 词元哈希分桶计数后做L2归一化
func (h *HashingEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, h.dimensions)
		for _, tok := range strings.Fields(strings.ToLower(text)) {
			hash := fnv.New32a()
			_, _ = hash.Write([]byte(tok))
			vec[int(hash.Sum32())%h.dimensions]++
		}

		var norm float64
		for _, v := range vec {
			norm += v * v
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range vec {
				vec[j] /= norm
			}
		}
		vectors[i] = vec
	}
	return vectors, nil
}

var _ TextEmbedder = (*HashingEmbedder)(nil)
var _ embedding.Embedder = (*HashingEmbedder)(nil)
