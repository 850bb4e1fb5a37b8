package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
)

// EinoPDFExtractor 使用 Eino PDF Parser 提取简历PDF的纯文本
type EinoPDFExtractor struct {
	parser  *pdf.PDFParser
	logger  *log.Logger
	timeout time.Duration
}

// EinoPDFOption PDF提取器的配置选项
type EinoPDFOption func(*EinoPDFExtractor)

// WithEinoLogger 配置自定义日志记录器
func WithEinoLogger(logger *log.Logger) EinoPDFOption {
	return func(e *EinoPDFExtractor) {
		e.logger = logger
	}
}

// WithEinoTimeout 配置单次解析的超时时间
func WithEinoTimeout(timeout time.Duration) EinoPDFOption {
	return func(e *EinoPDFExtractor) {
		e.timeout = timeout
	}
}

// NewEinoPDFExtractor 初始化 Eino PDF 文本提取器。
// 不按页面分割：简历需要整份连续文本供字段抽取使用。
func NewEinoPDFExtractor(ctx context.Context, options ...EinoPDFOption) (*EinoPDFExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Eino PDF parser: %w", err)
	}

	extractor := &EinoPDFExtractor{
		parser:  p,
		logger:  log.New(os.Stderr, "[PDF解析器] ", log.LstdFlags),
		timeout: 30 * time.Second,
	}

	for _, option := range options {
		option(extractor)
	}

	return extractor, nil
}

// ExtractFromReader 从 io.Reader 中提取PDF文本和解析元数据
func (e *EinoPDFExtractor) ExtractFromReader(ctx context.Context, reader io.Reader, uri string) (string, map[string]interface{}, error) {
	startTime := time.Now()
	e.logger.Printf("开始从Reader提取PDF文本 (URI: %s)", uri)

	extraMeta := map[string]interface{}{
		"source_uri":      uri,
		"extraction_time": time.Now().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	docs, err := e.parser.Parse(ctx, reader,
		einoParser.WithURI(uri),
		einoParser.WithExtraMeta(extraMeta),
	)

	duration := time.Since(startTime)
	if err != nil {
		e.logger.Printf("PDF提取失败: %s (用时 %.2f秒)", err, duration.Seconds())
		return "", extraMeta, fmt.Errorf("eino PDF parser failed for URI %s: %w", uri, err)
	}
	if len(docs) == 0 {
		e.logger.Printf("PDF解析无结果 (用时 %.2f秒)", duration.Seconds())
		return "", extraMeta, fmt.Errorf("eino PDF parser returned no documents for URI %s", uri)
	}

	// ToPages=false 下通常只有一个文档，以防万一仍然做合并
	var fullContent string
	for i, doc := range docs {
		fullContent += doc.Content
		if i < len(docs)-1 {
			fullContent += "\n\n"
		}
	}

	metadata := make(map[string]interface{})
	if docs[0].MetaData != nil {
		metadata = docs[0].MetaData
	}
	for k, v := range extraMeta {
		metadata[k] = v
	}
	metadata["processing_duration_ms"] = duration.Milliseconds()
	metadata["text_length"] = len(fullContent)

	e.logger.Printf("PDF提取完成: 提取了 %d 个字符 (用时 %.2f秒)", len(fullContent), duration.Seconds())
	return fullContent, metadata, nil
}

// ExtractFromBytes 从字节数组提取PDF文本
func (e *EinoPDFExtractor) ExtractFromBytes(ctx context.Context, data []byte, uri string) (string, map[string]interface{}, error) {
	return e.ExtractFromReader(ctx, bytes.NewReader(data), uri)
}

// ExtractFromFile 从PDF文件路径提取文本
func (e *EinoPDFExtractor) ExtractFromFile(ctx context.Context, filePath string) (string, map[string]interface{}, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open PDF file %s: %w", filePath, err)
	}
	defer file.Close()

	if info, err := file.Stat(); err == nil {
		e.logger.Printf("PDF文件大小: %.2f MB", float64(info.Size())/1024/1024)
	}

	return e.ExtractFromReader(ctx, file, filePath)
}
