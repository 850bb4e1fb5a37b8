package interview

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/types"
)

func TestEvaluateAnswerSuccess(t *testing.T) {
	srv := newFakeModelServer(t, http.StatusOK,
		`{"score": 8, "feedback": "Solid answer.", "strengths": ["depth"], "improvements": ["examples"]}`)
	defer srv.Close()

	e := NewEvaluator(newTestChain(t, srv.URL))
	eval := e.EvaluateAnswer(context.Background(), testJobDesc, "Q", "A", testResume)

	assert.True(t, eval.Success)
	assert.False(t, eval.Fallback)
	assert.Equal(t, 8, eval.Score)
	assert.Equal(t, "Solid answer.", eval.Feedback)
	assert.Equal(t, []string{"depth"}, eval.Strengths)
}

// TestEvaluateAnswerClamping 越界分数被钳制到 [1,10]
func TestEvaluateAnswerClamping(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  int
	}{
		{"超上限", `{"score": 15, "feedback": "x"}`, 10},
		{"负分", `{"score": -3, "feedback": "x"}`, 1},
		{"字符串数字", `{"score": "7", "feedback": "x"}`, 7},
		{"小数", `{"score": 6.6, "feedback": "x"}`, 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newFakeModelServer(t, http.StatusOK, tc.reply)
			defer srv.Close()

			e := NewEvaluator(newTestChain(t, srv.URL))
			eval := e.EvaluateAnswer(context.Background(), testJobDesc, "Q", "A", testResume)
			assert.Equal(t, tc.want, eval.Score)
			assert.True(t, eval.Success)
		})
	}
}

// TestEvaluateAnswerAllModelsFail 全挂时给中性5分，不报错
func TestEvaluateAnswerAllModelsFail(t *testing.T) {
	srv := newFakeModelServer(t, http.StatusInternalServerError, "")
	defer srv.Close()

	e := NewEvaluator(newTestChain(t, srv.URL))
	eval := e.EvaluateAnswer(context.Background(), testJobDesc, "Q", "A", testResume)

	assert.True(t, eval.Success)
	assert.True(t, eval.Fallback)
	assert.Equal(t, 5, eval.Score)
	assert.Equal(t, "Answer recorded.", eval.Feedback)
	assert.NotNil(t, eval.Strengths)
}

// TestEvaluateAnswerMissingScore JSON合法但没有score字段也按兜底处理
func TestEvaluateAnswerMissingScore(t *testing.T) {
	srv := newFakeModelServer(t, http.StatusOK, `{"feedback": "no score here"}`)
	defer srv.Close()

	e := NewEvaluator(newTestChain(t, srv.URL))
	eval := e.EvaluateAnswer(context.Background(), testJobDesc, "Q", "A", testResume)

	assert.True(t, eval.Fallback)
	assert.Equal(t, 5, eval.Score)
}

func TestEvaluateSessionSuccess(t *testing.T) {
	srv := newFakeModelServer(t, http.StatusOK, `{
		"overall_score": 8,
		"strengths": ["demonstrated Django depth"],
		"areas_for_improvement": ["system design breadth"],
		"cv_verification": "verified",
		"job_fit": "good",
		"recommendation": "recommend",
		"summary": "Strong technical showing."
	}`)
	defer srv.Close()

	e := NewEvaluator(newTestChain(t, srv.URL))
	eval := e.EvaluateSession(context.Background(), testJobDesc, testResume,
		[]types.ChatMessage{{Role: "interviewer", Content: "Q1"}, {Role: "interviewee", Content: "A1"}},
		[]int{8, 7})

	assert.True(t, eval.Success)
	assert.False(t, eval.Fallback)
	assert.Equal(t, 8, eval.OverallScore)
	assert.Equal(t, constants.RecommendationRecommend, eval.Recommendation)
	assert.Equal(t, "verified", eval.CVVerification)
	assert.Equal(t, []int{8, 7}, eval.AnswerScores)
}

// TestEvaluateSessionFallbackThresholds 兜底推荐档位：均分≥7推荐，≥5待定，其余不推荐
func TestEvaluateSessionFallbackThresholds(t *testing.T) {
	srv := newFakeModelServer(t, http.StatusInternalServerError, "")
	defer srv.Close()
	e := NewEvaluator(newTestChain(t, srv.URL))

	cases := []struct {
		name   string
		scores []int
		want   string
	}{
		{"高分推荐", []int{8, 8, 7}, constants.RecommendationRecommend},
		{"中等待定", []int{5, 6}, constants.RecommendationConsider},
		{"低分不推荐", []int{2, 3}, constants.RecommendationNotRecommend},
		{"边界7分", []int{7, 7}, constants.RecommendationRecommend},
		{"边界5分", []int{5, 5}, constants.RecommendationConsider},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eval := e.EvaluateSession(context.Background(), testJobDesc, testResume, nil, tc.scores)
			assert.True(t, eval.Success)
			assert.True(t, eval.Fallback)
			assert.Equal(t, tc.want, eval.Recommendation)
		})
	}
}

// TestEvaluateSessionNoScores 一题没答完也能给出结构完整的终评
func TestEvaluateSessionNoScores(t *testing.T) {
	srv := newFakeModelServer(t, http.StatusInternalServerError, "")
	defer srv.Close()

	e := NewEvaluator(newTestChain(t, srv.URL))
	eval := e.EvaluateSession(context.Background(), testJobDesc, testResume, nil, nil)

	assert.True(t, eval.Success)
	assert.Equal(t, 5, eval.OverallScore)
	assert.Equal(t, constants.RecommendationConsider, eval.Recommendation)
	assert.NotEmpty(t, eval.Summary)
}

func TestClampScore(t *testing.T) {
	mk := func(raw string) scoreValue {
		var s scoreValue
		require.NoError(t, s.UnmarshalJSON([]byte(raw)))
		return s
	}
	assert.Equal(t, 10, clampScore(mk("99"), 5))
	assert.Equal(t, 1, clampScore(mk("0"), 5))
	// 存在但不可解析 → 用替代值
	assert.Equal(t, 5, clampScore(mk(`"not-a-number"`), 5))
	assert.Equal(t, 7, clampScore(mk(`"7"`), 5))
}

func TestAverageScore(t *testing.T) {
	assert.Equal(t, 5.0, averageScore(nil))
	assert.Equal(t, 7.5, averageScore([]int{7, 8}))
}
