package parser

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"recruit-agent-go/internal/logger"
)

// 允许上传的简历文件扩展名
var AllowedCVExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".doc":  true,
	".txt":  true,
}

// DocumentExtractor 按扩展名把简历文件派发给对应的文本提取器。
// PDF走Eino本地解析，Word走Tika服务，纯文本直接透传。
type DocumentExtractor struct {
	pdf  *EinoPDFExtractor
	tika *TikaDocExtractor
}

// NewDocumentExtractor 组装文档提取器。tika可以为nil，此时.doc/.docx不可用。
func NewDocumentExtractor(pdf *EinoPDFExtractor, tika *TikaDocExtractor) *DocumentExtractor {
	return &DocumentExtractor{pdf: pdf, tika: tika}
}

// Extract 从文档字节中尽力提取纯文本。
// 提取失败不向上抛错：记录日志并返回空文本，由解析链路的后续
// 环节（LLM多模态或空表单）接手。
func (d *DocumentExtractor) Extract(ctx context.Context, data []byte, filename string) string {
	text, err := d.extract(ctx, data, filename)
	if err != nil {
		logger.Warn().Err(err).Str("filename", filename).Int("size", len(data)).
			Msg("文档文本提取失败，返回空文本")
		return ""
	}
	return text
}

func (d *DocumentExtractor) extract(ctx context.Context, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty document: %s", filename)
	}

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".pdf":
		if d.pdf == nil {
			return "", fmt.Errorf("pdf extractor not configured")
		}
		text, _, err := d.pdf.ExtractFromBytes(ctx, data, filename)
		return text, err

	case ".docx", ".doc":
		if d.tika == nil {
			return "", fmt.Errorf("tika extractor not configured, cannot handle %s", ext)
		}
		text, _, err := d.tika.ExtractFromBytes(ctx, data, filename)
		return text, err

	default:
		// 其余一律按UTF-8纯文本处理
		return string(data), nil
	}
}

// DecodeBase64Document 解码API请求中内联的base64文档，
// 同时兼容 data:application/pdf;base64,... 形式的Data URL前缀。
func DecodeBase64Document(encoded string) ([]byte, error) {
	if idx := strings.Index(encoded, ";base64,"); idx != -1 {
		encoded = encoded[idx+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 document: %w", err)
	}
	return data, nil
}
