package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"recruit-agent-go/internal/tracing"
	"recruit-agent-go/internal/types"
)

// ErrJobUnknown AI服务不认识该岗位
var ErrJobUnknown = errors.New("ai service: unknown job")

// Client 招聘后台调用相似度/面试服务的HTTP客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
}

// Option 客户端配置选项
type Option func(*Client)

// WithTimeout 设置请求超时
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient 替换底层HTTP客户端，测试用
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient 创建AI服务客户端
func NewClient(baseURL string, options ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("AI服务地址不能为空")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tracer:     otel.Tracer("recruit-agent-go/recruiter/aiclient"),
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}

type registerJobRequest struct {
	JobID       string `json:"job_id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description"`
}

// RegisterJob 把岗位JD登记到AI服务（向量库+缓存）。
// 已存在视为成功：登记是幂等的。
func (c *Client) RegisterJob(ctx context.Context, jobID, title, description string) error {
	status, _, err := c.postJSON(ctx, "/job", registerJobRequest{
		JobID:       jobID,
		Title:       title,
		Description: description,
	})
	if err != nil {
		return err
	}
	if status == http.StatusCreated || status == http.StatusConflict {
		return nil
	}
	return fmt.Errorf("登记岗位失败: HTTP %d", status)
}

type compareRequest struct {
	CV string `json:"cv"`
}

// Compare 请求AI服务计算JD与简历文本的相似度
func (c *Client) Compare(ctx context.Context, jobID, cvText string) (*types.CompareResult, error) {
	status, body, err := c.postJSON(ctx, "/compare/"+jobID, compareRequest{CV: cvText})
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrJobUnknown
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("相似度比较失败: HTTP %d", status)
	}

	var result types.CompareResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("解析比较结果失败: %w", err)
	}
	return &result, nil
}

type searchRequest struct {
	Query    string `json:"query"`
	JobID    string `json:"job_id,omitempty"`
	NResults int    `json:"n_results,omitempty"`
}

// SearchApplications 语义检索投递
func (c *Client) SearchApplications(ctx context.Context, query, jobID string, nResults int) ([]types.ScoredApplication, error) {
	status, body, err := c.postJSON(ctx, "/search/applications", searchRequest{
		Query:    query,
		JobID:    jobID,
		NResults: nResults,
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("投递检索失败: HTTP %d", status)
	}

	var result struct {
		Results []types.ScoredApplication `json:"results"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("解析检索结果失败: %w", err)
	}
	return result.Results, nil
}

// postJSON 发送POST请求并读回响应体，HTTP层错误不在这里判级
func (c *Client) postJSON(ctx context.Context, path string, payload interface{}) (int, []byte, error) {
	ctx, span := c.tracer.Start(ctx, "aiclient.POST "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.url", c.baseURL+path)))
	defer span.End()

	data, err := json.Marshal(payload)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return 0, nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return 0, nil, fmt.Errorf("调用AI服务失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return resp.StatusCode, nil, fmt.Errorf("读取AI服务响应失败: %w", err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp.StatusCode, body, nil
}
