package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeTikaServer 模拟Tika的/tika与/meta端点
func newFakeTikaServer(t *testing.T, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		switch r.URL.Path {
		case "/tika":
			assert.Equal(t, "text/plain", r.Header.Get("Accept"))
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(text))
		case "/meta":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"Content-Type":"application/vnd.openxmlformats-officedocument.wordprocessingml.document","xmpTPg:NPages":"2"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestTikaDocExtractorOptions(t *testing.T) {
	e := NewTikaDocExtractor("http://localhost:9998",
		WithTikaMetadata(true),
		WithTikaTimeout(10*time.Second),
	)
	assert.True(t, e.withMetadata)
	assert.Equal(t, 10*time.Second, e.Client.Timeout)
	assert.NotNil(t, e.logger)
}

func TestTikaExtractFromBytes(t *testing.T) {
	srv := newFakeTikaServer(t, "Jane Doe\njane@corp.io\nPython Django")
	defer srv.Close()

	e := NewTikaDocExtractor(srv.URL)
	text, meta, err := e.ExtractFromBytes(context.Background(), []byte("fake docx bytes"), "cv.docx")
	require.NoError(t, err)
	assert.Contains(t, text, "jane@corp.io")
	assert.Equal(t, len(text), meta["text_length"])
}

func TestTikaExtractWithMetadata(t *testing.T) {
	srv := newFakeTikaServer(t, "hello")
	defer srv.Close()

	e := NewTikaDocExtractor(srv.URL, WithTikaMetadata(true))
	_, meta, err := e.ExtractFromBytes(context.Background(), []byte("x"), "cv.doc")
	require.NoError(t, err)
	assert.Equal(t, "2", meta["xmpTPg:NPages"])
}

func TestTikaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	e := NewTikaDocExtractor(srv.URL)
	_, _, err := e.ExtractFromBytes(context.Background(), []byte("x"), "cv.docx")
	assert.Error(t, err)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, mimeDOCX, contentTypeFor("resume.DOCX"))
	assert.Equal(t, mimeDOC, contentTypeFor("resume.doc"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("resume.bin"))
}
