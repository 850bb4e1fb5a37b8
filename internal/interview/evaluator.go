package interview

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/llm"
	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/types"
)

// Evaluator 回答与整场面试的评估器。
// 与 Generator 共享降级契约：模型链全挂时给出中性分兜底，
// 永远不把错误交给调用方。
type Evaluator struct {
	chain  *llm.ModelChain
	tracer trace.Tracer
}

// NewEvaluator 创建评估器。chain 可为 nil，此时全部评估走兜底。
func NewEvaluator(chain *llm.ModelChain) *Evaluator {
	return &Evaluator{
		chain:  chain,
		tracer: otel.Tracer("interview-evaluator"),
	}
}

// scoreValue 兼容模型把分数写成 7、"7"、6.6 等形态。
// present 区分"字段缺失"与"字段存在但不可解析"。
type scoreValue struct {
	present bool
	valid   bool
	value   float64
}

func (s *scoreValue) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if raw == "null" || raw == "" {
		return nil
	}
	s.present = true
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		s.valid = true
		s.value = v
	}
	return nil
}

// answerPayload 单题评估的模型JSON
type answerPayload struct {
	Score        scoreValue `json:"score"`
	Feedback     string     `json:"feedback"`
	Strengths    []string   `json:"strengths"`
	Improvements []string   `json:"improvements"`
}

// sessionPayload 终评的模型JSON
type sessionPayload struct {
	OverallScore        scoreValue `json:"overall_score"`
	Strengths           []string   `json:"strengths"`
	AreasForImprovement []string   `json:"areas_for_improvement"`
	CVVerification      string     `json:"cv_verification"`
	JobFit              string     `json:"job_fit"`
	Recommendation      string     `json:"recommendation"`
	Summary             string     `json:"summary"`
}

// clampScore 把分数钳制到 [1,10]；字段存在但不可解析时取替代值
func clampScore(s scoreValue, substitute float64) int {
	v := s.value
	if !s.valid {
		v = substitute
	}
	score := int(math.Round(v))
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

// EvaluateAnswer 评估单题回答，分数始终落在 [1,10]。
func (e *Evaluator) EvaluateAnswer(ctx context.Context, jobDescription, question, answer, resumeSummary string) *types.AnswerEvaluation {
	ctx, span := e.tracer.Start(ctx, "Evaluator.EvaluateAnswer")
	defer span.End()

	if e.chain != nil {
		userPrompt := fmt.Sprintf(answerEvalUserPrompt,
			truncate(jobDescription, 800), truncate(resumeSummary, 800), question, answer)

		temp := 0.7
		result, err := e.chain.CompleteSimple(ctx, answerEvalSystemPrompt, userPrompt, llm.GenerateParams{
			Temperature: &temp,
			MaxTokens:   500,
		})
		if err == nil {
			var payload answerPayload
			if decodeJSONPayload(result.Content, &payload) && payload.Score.present {
				score := clampScore(payload.Score, 5)
				span.SetAttributes(
					attribute.String("interview.model", result.Model),
					attribute.Int("interview.score", score),
				)
				return &types.AnswerEvaluation{
					Success:      true,
					Score:        score,
					Feedback:     payload.Feedback,
					Strengths:    emptyIfNil(payload.Strengths),
					Improvements: emptyIfNil(payload.Improvements),
					Model:        result.Model,
				}
			}
			logger.Ctx(ctx).Warn().Str("model", result.Model).Msg("回答评估JSON不可用，使用中性兜底")
		} else {
			logger.Ctx(ctx).Warn().Err(err).Msg("回答评估的全部模型均失败")
		}
	}

	span.SetAttributes(attribute.Bool("interview.fallback", true))
	return &types.AnswerEvaluation{
		Success:      true,
		Score:        5,
		Feedback:     "Answer recorded.",
		Strengths:    []string{},
		Improvements: []string{},
		Fallback:     true,
	}
}

// EvaluateSession 评估整场面试。answerScores为各题已得分数。
func (e *Evaluator) EvaluateSession(ctx context.Context, jobDescription, resumeSummary string, history []types.ChatMessage, answerScores []int) *types.SessionEvaluation {
	ctx, span := e.tracer.Start(ctx, "Evaluator.EvaluateSession",
		trace.WithAttributes(attribute.Int("interview.answer_count", len(answerScores))))
	defer span.End()

	avg := averageScore(answerScores)

	if e.chain != nil {
		// 终评携带全部历史，单条截断到300字符，总量3500
		conversation := truncate(renderHistory(history, len(history), 300), 3500)
		userPrompt := fmt.Sprintf(sessionEvalUserPrompt,
			truncate(jobDescription, 1000), truncate(resumeSummary, 1000), conversation, avg)

		temp := 0.7
		result, err := e.chain.CompleteSimple(ctx, sessionEvalSystemPrompt, userPrompt, llm.GenerateParams{
			Temperature: &temp,
			MaxTokens:   1000,
		})
		if err == nil {
			var payload sessionPayload
			if decodeJSONPayload(result.Content, &payload) && payload.OverallScore.present {
				score := clampScore(payload.OverallScore, avg)
				span.SetAttributes(
					attribute.String("interview.model", result.Model),
					attribute.Int("interview.overall_score", score),
				)
				return &types.SessionEvaluation{
					Success:             true,
					OverallScore:        score,
					Strengths:           emptyIfNil(payload.Strengths),
					AreasForImprovement: emptyIfNil(payload.AreasForImprovement),
					CVVerification:      orDefault(payload.CVVerification, "unknown"),
					JobFit:              orDefault(payload.JobFit, "unknown"),
					Recommendation:      orDefault(payload.Recommendation, constants.RecommendationConsider),
					Summary:             payload.Summary,
					AnswerScores:        answerScores,
					Model:               result.Model,
				}
			}
			logger.Ctx(ctx).Warn().Str("model", result.Model).Msg("终评JSON不可用，使用均分兜底")
		} else {
			logger.Ctx(ctx).Warn().Err(err).Msg("终评的全部模型均失败")
		}
	}

	span.SetAttributes(attribute.Bool("interview.fallback", true))
	return &types.SessionEvaluation{
		Success:             true,
		OverallScore:        int(math.Round(avg)),
		Strengths:           []string{"Completed the interview"},
		AreasForImprovement: []string{"Review technical depth in answers"},
		CVVerification:      "partial",
		JobFit:              "fair",
		Recommendation:      recommendationFor(avg),
		Summary:             fmt.Sprintf("Interview completed with average score of %.1f/10. Review individual responses for detailed assessment.", avg),
		AnswerScores:        answerScores,
		Fallback:            true,
	}
}

// averageScore 各题均分，没有任何得分时取中性5分
func averageScore(scores []int) float64 {
	if len(scores) == 0 {
		return 5
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return float64(sum) / float64(len(scores))
}

// recommendationFor 按均分给推荐档位：≥7推荐，≥5待定，其余不推荐
func recommendationFor(avg float64) string {
	switch {
	case avg >= constants.RecommendScoreFloor:
		return constants.RecommendationRecommend
	case avg >= constants.ConsiderScoreFloor:
		return constants.RecommendationConsider
	default:
		return constants.RecommendationNotRecommend
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
