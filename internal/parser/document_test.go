package parser

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPlainTextPassthrough(t *testing.T) {
	d := NewDocumentExtractor(nil, nil)
	text := d.Extract(context.Background(), []byte("raw resume text"), "cv.txt")
	assert.Equal(t, "raw resume text", text)
}

// TestExtractDocxViaTika .docx走Tika路径
func TestExtractDocxViaTika(t *testing.T) {
	srv := newFakeTikaServer(t, "docx text")
	defer srv.Close()

	d := NewDocumentExtractor(nil, NewTikaDocExtractor(srv.URL))
	text := d.Extract(context.Background(), []byte("bytes"), "cv.docx")
	assert.Equal(t, "docx text", text)
}

// TestExtractFailureYieldsEmpty 提取失败不抛错，返回空文本
func TestExtractFailureYieldsEmpty(t *testing.T) {
	d := NewDocumentExtractor(nil, nil)
	assert.Equal(t, "", d.Extract(context.Background(), []byte("x"), "cv.pdf"))
	assert.Equal(t, "", d.Extract(context.Background(), []byte("x"), "cv.docx"))
	assert.Equal(t, "", d.Extract(context.Background(), nil, "cv.txt"))
}

func TestDecodeBase64Document(t *testing.T) {
	raw := []byte("%PDF-1.4 fake")
	encoded := base64.StdEncoding.EncodeToString(raw)

	got, err := DecodeBase64Document(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	// Data URL前缀也应被接受
	got, err = DecodeBase64Document("data:application/pdf;base64," + encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = DecodeBase64Document("not$$base64!!")
	assert.Error(t, err)
}

func TestAllowedCVExtensions(t *testing.T) {
	assert.True(t, AllowedCVExtensions[".pdf"])
	assert.True(t, AllowedCVExtensions[".docx"])
	assert.True(t, AllowedCVExtensions[".doc"])
	assert.False(t, AllowedCVExtensions[".exe"])
}
