package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// Word文档的MIME类型，按扩展名选择
const (
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeDOC  = "application/msword"
)

// TikaDocExtractor 基于Apache Tika的Word文档(.doc/.docx)文本提取器。
// PDF走Eino本地解析，Office格式没有纯Go的可靠方案，交给Tika服务。
type TikaDocExtractor struct {
	// Tika服务器地址，例如 http://localhost:9998
	ServerURL string
	// HTTP客户端，可配置超时等参数
	Client *http.Client
	// 是否附带文档元数据
	withMetadata bool
	logger       *log.Logger
}

// TikaDocOption 定义配置选项函数
type TikaDocOption func(*TikaDocExtractor)

// WithTikaMetadata 配置是否额外请求/meta端点提取文档元数据
func WithTikaMetadata(extract bool) TikaDocOption {
	return func(e *TikaDocExtractor) {
		e.withMetadata = extract
	}
}

// WithTikaDocLogger 配置自定义日志记录器
func WithTikaDocLogger(logger *log.Logger) TikaDocOption {
	return func(e *TikaDocExtractor) {
		e.logger = logger
	}
}

// WithTikaTimeout 配置HTTP客户端超时时间
func WithTikaTimeout(timeout time.Duration) TikaDocOption {
	return func(e *TikaDocExtractor) {
		e.Client.Timeout = timeout
	}
}

// NewTikaDocExtractor 创建一个新的Tika文档解析器
func NewTikaDocExtractor(serverURL string, options ...TikaDocOption) *TikaDocExtractor {
	extractor := &TikaDocExtractor{
		ServerURL: serverURL,
		Client: &http.Client{
			Timeout: 60 * time.Second,
		},
		withMetadata: false,
		logger:       log.New(os.Stderr, "[TikaDoc] ", log.LstdFlags),
	}

	for _, option := range options {
		option(extractor)
	}

	return extractor
}

// contentTypeFor 根据文件扩展名选择Content-Type
func contentTypeFor(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".docx"):
		return mimeDOCX
	case strings.HasSuffix(lower, ".doc"):
		return mimeDOC
	default:
		// 留给Tika自行探测
		return "application/octet-stream"
	}
}

// ExtractFromBytes 将文档字节PUT到Tika的/tika端点，取回纯文本
func (e *TikaDocExtractor) ExtractFromBytes(ctx context.Context, data []byte, uri string) (string, map[string]interface{}, error) {
	startTime := time.Now()

	baseMetadata := map[string]interface{}{
		"source_uri":      uri,
		"extraction_time": time.Now().Format(time.RFC3339),
	}

	url := fmt.Sprintf("%s/tika", e.ServerURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", baseMetadata, fmt.Errorf("创建HTTP请求失败: %w", err)
	}

	req.Header.Set("Content-Type", contentTypeFor(uri))
	req.Header.Set("Accept", "text/plain")
	if uri != "" {
		req.Header.Set("X-Tika-Resource-Name", uri)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return "", baseMetadata, fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", baseMetadata, fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
	}

	textBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", baseMetadata, fmt.Errorf("读取Tika响应失败: %w", err)
	}

	text := string(textBytes)
	baseMetadata["text_length"] = len(text)
	baseMetadata["processing_duration_ms"] = time.Since(startTime).Milliseconds()

	if e.withMetadata {
		if meta, err := e.extractMetadata(ctx, data, uri); err == nil {
			for k, v := range meta {
				baseMetadata[k] = v
			}
		} else {
			e.logger.Printf("元数据提取失败: %v, 继续使用基本元数据", err)
		}
	}

	e.logger.Printf("文档文本提取完成: 提取了 %d 个字符 (用时 %.2f秒)", len(text), time.Since(startTime).Seconds())
	return text, baseMetadata, nil
}

// ExtractFromReader 从io.Reader提取文本内容
func (e *TikaDocExtractor) ExtractFromReader(ctx context.Context, reader io.Reader, uri string) (string, map[string]interface{}, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", nil, fmt.Errorf("读取文档内容失败: %w", err)
	}
	return e.ExtractFromBytes(ctx, data, uri)
}

// extractMetadata 调用/meta端点提取文档元数据
func (e *TikaDocExtractor) extractMetadata(ctx context.Context, data []byte, uri string) (map[string]interface{}, error) {
	url := fmt.Sprintf("%s/meta", e.ServerURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}

	req.Header.Set("Content-Type", contentTypeFor(uri))
	req.Header.Set("Accept", "application/json")
	if uri != "" {
		req.Header.Set("X-Tika-Resource-Name", uri)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
	}

	metadataBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取Tika响应失败: %w", err)
	}

	var metadata map[string]interface{}
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return nil, fmt.Errorf("解析元数据JSON失败: %w", err)
	}
	return metadata, nil
}
