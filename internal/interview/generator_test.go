package interview

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-agent-go/internal/llm"
	"recruit-agent-go/internal/types"
)

const (
	testJobDesc = "Python backend developer, 3+ years, Django, PostgreSQL"
	testResume  = "5 years Python, Django, PostgreSQL, AWS. Built payment microservices."
)

// newFakeModelServer OpenAI兼容假服务：status非200时全部失败，否则固定回复reply
func newFakeModelServer(t *testing.T, status int, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		resp := map[string]any{
			"id":    "test",
			"model": "fake-model",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": reply}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestChain(t *testing.T, apiURL string) *llm.ModelChain {
	t.Helper()
	chain, err := llm.NewModelChain("test-key", apiURL, []string{"fake-model"})
	require.NoError(t, err)
	return chain
}

func TestStartInterviewSuccess(t *testing.T) {
	srv := newFakeModelServer(t, http.StatusOK,
		`{"question": "You listed Django - tell me about the most challenging API you built.", "type": "technical_cv_based", "focus_area": "Django", "cv_reference": "Django experience"}`)
	defer srv.Close()

	g := NewGenerator(newTestChain(t, srv.URL))
	result := g.StartInterview(context.Background(), testJobDesc, testResume)

	assert.True(t, result.Success)
	assert.False(t, result.Fallback)
	assert.Contains(t, result.Question, "Django")
	assert.Equal(t, "Django", result.FocusArea)
	assert.Equal(t, "fake-model", result.Model)
}

// TestStartInterviewFallback 全部模型失败仍然返回success=true+兜底问题
func TestStartInterviewFallback(t *testing.T) {
	srv := newFakeModelServer(t, http.StatusInternalServerError, "")
	defer srv.Close()

	g := NewGenerator(newTestChain(t, srv.URL))
	result := g.StartInterview(context.Background(), testJobDesc, testResume)

	assert.True(t, result.Success)
	assert.True(t, result.Fallback)
	require.NotEmpty(t, result.Question)
	// 兜底问题应围绕简历里抓到的第一个技术词
	assert.Contains(t, result.Question, "Python")
}

// TestStartInterviewFallbackNoSkills 简历里抓不到技术词时用通用兜底
func TestStartInterviewFallbackNoSkills(t *testing.T) {
	srv := newFakeModelServer(t, http.StatusInternalServerError, "")
	defer srv.Close()

	g := NewGenerator(newTestChain(t, srv.URL))
	result := g.StartInterview(context.Background(), "厨师岗位", "十年烘焙经验")

	assert.True(t, result.Success)
	assert.True(t, result.Fallback)
	assert.Contains(t, result.Question, "challenging project")
}

func TestNextQuestionSuccess(t *testing.T) {
	srv := newFakeModelServer(t, http.StatusOK,
		`{"question": "How did you handle schema migrations in PostgreSQL?", "type": "deep_dive", "focus_area": "PostgreSQL"}`)
	defer srv.Close()

	g := NewGenerator(newTestChain(t, srv.URL), WithTotalQuestions(8))
	history := []types.ChatMessage{
		{Role: "interviewer", Content: "Tell me about Django."},
		{Role: "interviewee", Content: "I built REST APIs with DRF."},
	}
	result := g.NextQuestion(context.Background(), testJobDesc, testResume, history, 3)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.QuestionNumber)
	assert.Equal(t, "deep_dive", result.Type)
	assert.False(t, result.Fallback)
}

// TestNextQuestionFallbackVariesByNumber 兜底问题随题号换模板，不会一直重复同一句
func TestNextQuestionFallbackVariesByNumber(t *testing.T) {
	srv := newFakeModelServer(t, http.StatusInternalServerError, "")
	defer srv.Close()

	g := NewGenerator(newTestChain(t, srv.URL))

	q2 := g.NextQuestion(context.Background(), testJobDesc, testResume, nil, 2)
	q3 := g.NextQuestion(context.Background(), testJobDesc, testResume, nil, 3)
	q6 := g.NextQuestion(context.Background(), testJobDesc, testResume, nil, 6)

	assert.True(t, q2.Fallback)
	assert.True(t, q3.Fallback)
	assert.NotEqual(t, q2.Question, q3.Question)
	assert.NotEqual(t, q3.Question, q6.Question)
	assert.Contains(t, q6.Question, "architectural decisions")
}

// TestNextQuestionInvalidJSON 模型返回废话同样走兜底
func TestNextQuestionInvalidJSON(t *testing.T) {
	srv := newFakeModelServer(t, http.StatusOK, "好的，我来出题……（没有JSON）")
	defer srv.Close()

	g := NewGenerator(newTestChain(t, srv.URL))
	result := g.NextQuestion(context.Background(), testJobDesc, testResume, nil, 1)

	assert.True(t, result.Success)
	assert.True(t, result.Fallback)
	assert.NotEmpty(t, result.Question)
}

// TestNilChainAlwaysFallback 未配置模型链时全部问题走本地模板
func TestNilChainAlwaysFallback(t *testing.T) {
	g := NewGenerator(nil)
	result := g.StartInterview(context.Background(), testJobDesc, testResume)
	assert.True(t, result.Success)
	assert.True(t, result.Fallback)
}

func TestNormalizeRole(t *testing.T) {
	cases := map[string]string{
		"system":      "system",
		"interviewer": "system",
		"assistant":   "assistant",
		"interviewee": "assistant",
		"candidate":   "assistant",
		"user":        "user",
		"HR小姐姐":       "user",
		"":            "user",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeRole(in), "role %q", in)
	}
}

// TestRenderHistoryWindow 只保留最近N条，且按提问方/候选人标注
func TestRenderHistoryWindow(t *testing.T) {
	var history []types.ChatMessage
	for i := 0; i < 10; i++ {
		role := "interviewer"
		if i%2 == 1 {
			role = "interviewee"
		}
		history = append(history, types.ChatMessage{Role: role, Content: string(rune('a' + i))})
	}

	rendered := renderHistory(history, 6, 0)
	assert.NotContains(t, rendered, "Interviewer: a")
	assert.Contains(t, rendered, "Candidate: j")
	assert.Contains(t, rendered, "Interviewer: ")
}

func TestFocusHintFor(t *testing.T) {
	assert.Contains(t, focusHintFor(1), "SPECIFIC project")
	assert.Contains(t, focusHintFor(4), "DEEP TECHNICAL")
	assert.Contains(t, focusHintFor(5), "problem-solving")
	assert.Contains(t, focusHintFor(9), "skill gap")
}

func TestExtractTechTokens(t *testing.T) {
	tokens := extractTechTokens("Python, python, Django and AWS")
	// 大小写去重
	assert.Equal(t, []string{"Python", "Django", "AWS"}, tokens)
	assert.Empty(t, extractTechTokens("厨师 烘焙"))
}
