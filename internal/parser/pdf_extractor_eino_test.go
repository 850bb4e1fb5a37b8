package parser

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEinoPDFExtractor(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	extractor, err := NewEinoPDFExtractor(ctx)
	require.NoError(t, err, "创建PDF提取器不应返回错误")
	require.NotNil(t, extractor)
	require.NotNil(t, extractor.parser, "内部parser不应为nil")
	require.NotNil(t, extractor.logger, "应该有默认logger")
	assert.Equal(t, 30*time.Second, extractor.timeout)

	customLogger := log.New(os.Stdout, "[测试PDF提取器] ", log.LstdFlags)
	custom, err := NewEinoPDFExtractor(ctx,
		WithEinoLogger(customLogger),
		WithEinoTimeout(10*time.Second),
	)
	require.NoError(t, err)
	assert.Equal(t, customLogger, custom.logger)
	assert.Equal(t, 10*time.Second, custom.timeout)
}

// TestEinoExtractInvalidPDF 非PDF字节应返回错误而不是panic
func TestEinoExtractInvalidPDF(t *testing.T) {
	ctx := context.Background()
	extractor, err := NewEinoPDFExtractor(ctx)
	require.NoError(t, err)

	_, _, err = extractor.ExtractFromBytes(ctx, []byte("这不是PDF"), "bad.pdf")
	assert.Error(t, err)
}
