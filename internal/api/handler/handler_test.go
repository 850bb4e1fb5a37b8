package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	hzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-agent-go/internal/api/handler"
	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/interview"
	"recruit-agent-go/internal/llm"
	"recruit-agent-go/internal/parser"
	"recruit-agent-go/internal/storage"
)

const (
	testJobDesc = "Python backend developer, 3+ years, Django, PostgreSQL"
	testCVText  = "5 years Python, Django, PostgreSQL, AWS. Built payment microservices. Email: jane@example.com"
)

// newFakeModelServer OpenAI兼容假服务，status非200时所有模型失败
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

// newFakeQdrantServer 模拟Qdrant：两个集合已存在（维度16），
// 岗位检索返回固定JD文本，投递检索返回两条结果。
func newFakeQdrantServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet:
			w.Write([]byte(`{"result": {"config": {"params": {"vectors": {"size": 16, "distance": "Cosine"}}}}}`))
		case r.URL.Path == "/collections/job_descriptions/points" && r.Method == http.MethodPost:
			w.Write([]byte(`{"result": [{"id": "p1", "payload": {"job_id": "job-1", "text": "` + testJobDesc + `"}}], "status": "ok", "time": 0.001}`))
		case r.URL.Path == "/collections/job_descriptions/points" && r.Method == http.MethodPut:
			w.Write([]byte(`{"result": {"status": "completed"}, "status": "ok", "time": 0.001}`))
		case r.URL.Path == "/collections/applications/points" && r.Method == http.MethodPut:
			w.Write([]byte(`{"result": {"status": "completed"}, "status": "ok", "time": 0.001}`))
		case r.URL.Path == "/collections/applications/points/search" && r.Method == http.MethodPost:
			w.Write([]byte(`{
				"result": [
					{"id": "p1", "score": 0.93, "payload": {"application_id": "app-1", "job_id": "job-1", "cv_text": "python dev"}},
					{"id": "p2", "score": 0.61, "payload": {"application_id": "app-2", "job_id": "job-1"}}
				],
				"status": "ok", "time": 0.001
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

// newTestHandler qdrantURL为空时不挂向量库
func newTestHandler(t *testing.T, qdrantURL string, modelServerURL string) *handler.Handler {
	t.Helper()

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Qdrant.Dimension = 16
	cfg.CVParser.UseLLM = false

	st := &storage.Storage{}
	if qdrantURL != "" {
		qcfg := cfg.Qdrant
		qcfg.Endpoint = qdrantURL
		qd, err := storage.NewQdrant(&qcfg)
		require.NoError(t, err)
		st.Qdrant = qd
	}

	embedder, err := parser.NewHashingEmbedder(16)
	require.NoError(t, err)

	cvParser, err := parser.NewCVParser(nil)
	require.NoError(t, err)

	var chain *llm.ModelChain
	if modelServerURL != "" {
		chain, err = llm.NewModelChain("test-key", modelServerURL, []string{"fake-model"})
		require.NoError(t, err)
	} else {
		srv := newFakeModelServer(t, http.StatusInternalServerError, "")
		t.Cleanup(srv.Close)
		chain, err = llm.NewModelChain("test-key", srv.URL, []string{"fake-model"})
		require.NoError(t, err)
	}

	return handler.NewHandler(cfg, st, &handler.AIComponents{
		CVParser:  cvParser,
		Embedder:  embedder,
		Generator: interview.NewGenerator(chain),
		Evaluator: interview.NewEvaluator(chain),
	})
}

func newTestEngine(t *testing.T, h *handler.Handler) *route.Engine {
	t.Helper()
	engine := route.NewEngine(hzconfig.NewOptions([]hzconfig.Option{}))
	engine.GET("/health", h.Health)
	engine.POST("/job", h.CreateJob)
	engine.POST("/compare/:job_id", h.CompareCV)
	engine.POST("/parsed-cv", h.SubmitParsedCV)
	engine.POST("/application", h.SubmitApplication)
	engine.POST("/search/applications", h.SearchApplications)
	engine.POST("/interview/start", h.StartInterview)
	engine.POST("/interview/next-question", h.NextQuestion)
	engine.POST("/interview/evaluate-answer", h.EvaluateAnswer)
	engine.POST("/interview/evaluate", h.EvaluateSession)
	return engine
}

func postJSON(t *testing.T, engine *route.Engine, path string, payload interface{}) *ut.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return ut.PerformRequest(engine, "POST", path,
		&ut.Body{Body: bytes.NewBuffer(data), Len: len(data)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
}

func decodeBody(t *testing.T, body []byte, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(body, v))
}

func TestHealth(t *testing.T) {
	engine := newTestEngine(t, newTestHandler(t, "", ""))

	w := ut.PerformRequest(engine, "GET", "/health", nil)
	resp := w.Result()

	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), `"status":"ok"`)
}

func TestCreateJobRequiresDescription(t *testing.T) {
	engine := newTestEngine(t, newTestHandler(t, "", ""))

	w := postJSON(t, engine, "/job", map[string]string{"job_id": "job-1"})

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode())
}

func TestCreateJobStoresInQdrant(t *testing.T) {
	qdrant := newFakeQdrantServer(t)
	defer qdrant.Close()
	engine := newTestEngine(t, newTestHandler(t, qdrant.URL, ""))

	w := postJSON(t, engine, "/job", map[string]string{"description": testJobDesc})
	resp := w.Result()

	require.Equal(t, http.StatusCreated, resp.StatusCode())
	var body struct {
		JobID string `json:"job_id"`
	}
	decodeBody(t, resp.Body(), &body)
	// 未指定job_id时由JD文本哈希派生，重复提交是幂等的
	assert.NotEmpty(t, body.JobID)
}

func TestCompareUnknownJobReturns404(t *testing.T) {
	engine := newTestEngine(t, newTestHandler(t, "", ""))

	w := postJSON(t, engine, "/compare/no-such-job", map[string]string{"cv": testCVText})

	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode())
}

func TestCompareReturnsScoreAndLink(t *testing.T) {
	qdrant := newFakeQdrantServer(t)
	defer qdrant.Close()
	engine := newTestEngine(t, newTestHandler(t, qdrant.URL, ""))

	// 用与JD完全相同的文本比较，得分为1.0，必然达到链接阈值
	w := postJSON(t, engine, "/compare/job-1", map[string]string{"cv": testJobDesc})
	resp := w.Result()

	require.Equal(t, http.StatusOK, resp.StatusCode())
	var body struct {
		SimilarityScore      float64 `json:"similarity_score"`
		SimilarityPercentage float64 `json:"similarity_percentage"`
		InterviewLink        string  `json:"interview_link"`
	}
	decodeBody(t, resp.Body(), &body)
	assert.InDelta(t, 1.0, body.SimilarityScore, 1e-9)
	assert.InDelta(t, 100.0, body.SimilarityPercentage, 1e-9)
	assert.NotEmpty(t, body.InterviewLink)
}

func TestCompareLowScoreHasNoLink(t *testing.T) {
	qdrant := newFakeQdrantServer(t)
	defer qdrant.Close()
	engine := newTestEngine(t, newTestHandler(t, qdrant.URL, ""))

	w := postJSON(t, engine, "/compare/job-1", map[string]string{"cv": "completely unrelated pastry chef resume baking croissants"})
	resp := w.Result()

	require.Equal(t, http.StatusOK, resp.StatusCode())
	var body struct {
		SimilarityScore float64 `json:"similarity_score"`
		InterviewLink   string  `json:"interview_link"`
	}
	decodeBody(t, resp.Body(), &body)
	assert.Less(t, body.SimilarityScore, 0.5)
	assert.Empty(t, body.InterviewLink)
}

func TestSubmitApplicationTextOnly(t *testing.T) {
	engine := newTestEngine(t, newTestHandler(t, "", ""))

	w := postJSON(t, engine, "/application", map[string]string{"cv_text": testCVText})
	resp := w.Result()

	require.Equal(t, http.StatusOK, resp.StatusCode())
	var body struct {
		ApplicationID   string   `json:"application_id"`
		SimilarityScore *float64 `json:"similarity_score"`
		ParsingMethod   string   `json:"parsing_method"`
	}
	decodeBody(t, resp.Body(), &body)
	assert.NotEmpty(t, body.ApplicationID)
	// 没有岗位就没有得分
	assert.Nil(t, body.SimilarityScore)
	assert.Equal(t, "ner_nlp", body.ParsingMethod)
}

func TestSubmitApplicationNeedsCV(t *testing.T) {
	engine := newTestEngine(t, newTestHandler(t, "", ""))

	w := postJSON(t, engine, "/application", map[string]string{"candidate_name": "Jane"})

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode())
}

func TestSubmitApplicationBadBase64(t *testing.T) {
	engine := newTestEngine(t, newTestHandler(t, "", ""))

	w := postJSON(t, engine, "/application", map[string]string{"cv_pdf_base64": "%%%not-base64%%%"})

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode())
}

func TestSubmitParsedCVScores(t *testing.T) {
	qdrant := newFakeQdrantServer(t)
	defer qdrant.Close()
	engine := newTestEngine(t, newTestHandler(t, qdrant.URL, ""))

	w := postJSON(t, engine, "/parsed-cv", map[string]string{
		"cv_text":        testCVText,
		"job_id":         "job-1",
		"candidate_name": "Jane Smith",
	})
	resp := w.Result()

	require.Equal(t, http.StatusOK, resp.StatusCode())
	var body struct {
		ParsedCVID      string  `json:"parsed_cv_id"`
		SimilarityScore float64 `json:"similarity_score"`
	}
	decodeBody(t, resp.Body(), &body)
	assert.NotEmpty(t, body.ParsedCVID)
	assert.Greater(t, body.SimilarityScore, 0.0)
}

func TestSearchApplications(t *testing.T) {
	qdrant := newFakeQdrantServer(t)
	defer qdrant.Close()
	engine := newTestEngine(t, newTestHandler(t, qdrant.URL, ""))

	w := postJSON(t, engine, "/search/applications", map[string]interface{}{
		"query":  "python backend",
		"job_id": "job-1",
	})
	resp := w.Result()

	require.Equal(t, http.StatusOK, resp.StatusCode())
	var body struct {
		Results []struct {
			ApplicationID string  `json:"application_id"`
			Score         float64 `json:"score"`
		} `json:"results"`
	}
	decodeBody(t, resp.Body(), &body)
	require.Len(t, body.Results, 2)
	assert.Equal(t, "app-1", body.Results[0].ApplicationID)
	assert.InDelta(t, 0.93, body.Results[0].Score, 0.01)
}

func TestSearchApplicationsWithoutQdrant(t *testing.T) {
	engine := newTestEngine(t, newTestHandler(t, "", ""))

	w := postJSON(t, engine, "/search/applications", map[string]string{"query": "python"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Result().StatusCode())
}

func TestInterviewStartWithModel(t *testing.T) {
	model := newFakeModelServer(t, http.StatusOK,
		`{"question": "Tell me about the most complex Django API you built.", "type": "technical_cv_based", "focus_area": "Django"}`)
	defer model.Close()
	engine := newTestEngine(t, newTestHandler(t, "", model.URL))

	w := postJSON(t, engine, "/interview/start", map[string]string{
		"job_description": testJobDesc,
		"resume_summary":  testCVText,
	})
	resp := w.Result()

	require.Equal(t, http.StatusOK, resp.StatusCode())
	var body struct {
		Success  bool   `json:"success"`
		Question string `json:"question"`
		Fallback bool   `json:"fallback"`
	}
	decodeBody(t, resp.Body(), &body)
	assert.True(t, body.Success)
	assert.False(t, body.Fallback)
	assert.Contains(t, body.Question, "Django")
}

// TestInterviewStartFallback 模型全挂时接口仍返回200与兜底问题
func TestInterviewStartFallback(t *testing.T) {
	engine := newTestEngine(t, newTestHandler(t, "", ""))

	w := postJSON(t, engine, "/interview/start", map[string]string{
		"job_description": testJobDesc,
		"resume_summary":  testCVText,
	})
	resp := w.Result()

	require.Equal(t, http.StatusOK, resp.StatusCode())
	var body struct {
		Success  bool   `json:"success"`
		Question string `json:"question"`
		Fallback bool   `json:"fallback"`
	}
	decodeBody(t, resp.Body(), &body)
	assert.True(t, body.Success)
	assert.True(t, body.Fallback)
	assert.NotEmpty(t, body.Question)
}

func TestEvaluateAnswerClampsScore(t *testing.T) {
	model := newFakeModelServer(t, http.StatusOK,
		`{"score": 15, "feedback": "strong answer", "strengths": ["clear"], "improvements": []}`)
	defer model.Close()
	engine := newTestEngine(t, newTestHandler(t, "", model.URL))

	w := postJSON(t, engine, "/interview/evaluate-answer", map[string]string{
		"question": "How do you scale Django?",
		"answer":   "Caching, read replicas, async workers.",
	})
	resp := w.Result()

	require.Equal(t, http.StatusOK, resp.StatusCode())
	var body struct {
		Success bool `json:"success"`
		Score   int  `json:"score"`
	}
	decodeBody(t, resp.Body(), &body)
	assert.True(t, body.Success)
	assert.Equal(t, 10, body.Score)
}

// TestEvaluateSessionFallbackAverages 模型不可用时按平均分给推荐档位
func TestEvaluateSessionFallbackAverages(t *testing.T) {
	engine := newTestEngine(t, newTestHandler(t, "", ""))

	w := postJSON(t, engine, "/interview/evaluate", map[string]interface{}{
		"job_description": testJobDesc,
		"answer_scores":   []int{8, 7, 9},
	})
	resp := w.Result()

	require.Equal(t, http.StatusOK, resp.StatusCode())
	var body struct {
		Success        bool   `json:"success"`
		OverallScore   int    `json:"overall_score"`
		Recommendation string `json:"recommendation"`
		Fallback       bool   `json:"fallback"`
	}
	decodeBody(t, resp.Body(), &body)
	assert.True(t, body.Success)
	assert.True(t, body.Fallback)
	assert.Equal(t, 8, body.OverallScore)
	assert.Equal(t, "recommend", body.Recommendation)
}
