package recruiter_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"testing"

	hzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/parser"
	"recruit-agent-go/internal/recruiter"
	"recruit-agent-go/internal/recruiter/aiclient"
	"recruit-agent-go/internal/storage"
)

const testResumeTxt = `Jane Smith
Email: jane.smith@example.com
Phone: +1 415-555-0134

Summary
Backend engineer with 5 years of Python and Django experience.

Skills
Python, Django, PostgreSQL, Docker

Experience
Senior Backend Engineer at Acme Corp (2021-Present)
Backend Engineer at Widgets Inc (2019-2021)
`

func newTestHandler(t *testing.T) *recruiter.Handler {
	t.Helper()

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.CVParser.UseLLM = false

	extractor := parser.NewDocumentExtractor(nil, nil)
	cvParser, err := parser.NewCVParser(extractor)
	require.NoError(t, err)

	ai, err := aiclient.NewClient("http://127.0.0.1:1")
	require.NoError(t, err)

	return recruiter.NewHandler(cfg, &storage.Storage{}, extractor, cvParser, ai)
}

func newTestEngine(t *testing.T) *route.Engine {
	t.Helper()
	h := newTestHandler(t)
	engine := route.NewEngine(hzconfig.NewOptions([]hzconfig.Option{}))
	engine.GET("/health", h.Health)
	engine.POST("/api/v1/parse-cv", h.ParseCV)
	return engine
}

// multipartCV 构造带cv文件字段的multipart请求体
func multipartCV(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	fw, err := w.CreateFormFile("cv", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func TestBackendHealth(t *testing.T) {
	engine := newTestEngine(t)

	w := ut.PerformRequest(engine, "GET", "/health", nil)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode())
}

func TestParseCVTxtHeuristics(t *testing.T) {
	engine := newTestEngine(t)

	body, contentType := multipartCV(t, "resume.txt", []byte(testResumeTxt), map[string]string{"use_llm": "false"})
	w := ut.PerformRequest(engine, "POST", "/api/v1/parse-cv",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType})
	resp := w.Result()

	require.Equal(t, http.StatusOK, resp.StatusCode())
	var result struct {
		Success      bool `json:"success"`
		ParsedResume struct {
			Email         string   `json:"email"`
			Skills        []string `json:"skills"`
			ParsingMethod string   `json:"parsing_method"`
		} `json:"parsed_resume"`
	}
	require.NoError(t, json.Unmarshal(resp.Body(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "jane.smith@example.com", result.ParsedResume.Email)
	assert.Contains(t, result.ParsedResume.Skills, "Python")
	assert.Equal(t, "ner_nlp", result.ParsedResume.ParsingMethod)
}

func TestParseCVRejectsExtension(t *testing.T) {
	engine := newTestEngine(t)

	body, contentType := multipartCV(t, "malware.exe", []byte("MZ"), nil)
	w := ut.PerformRequest(engine, "POST", "/api/v1/parse-cv",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType})

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode())
}

func TestParseCVMissingFile(t *testing.T) {
	engine := newTestEngine(t)

	w := ut.PerformRequest(engine, "POST", "/api/v1/parse-cv", nil)

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode())
}
