package handler

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/interview"
	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/storage/models"
	"recruit-agent-go/internal/types"
)

// 面试接口是无状态的：完整历史随每次请求传入。
// interview_id 仅用于可选的Redis对话留痕与MySQL终评落库，核心流程不依赖它。

type interviewStartRequest struct {
	JobDescription string `json:"job_description" validate:"required"`
	ResumeSummary  string `json:"resume_summary"`
	InterviewID    string `json:"interview_id"`
}

// StartInterview 生成第一道面试问题
func (h *Handler) StartInterview(c context.Context, ctx *app.RequestContext) {
	var req interviewStartRequest
	if err := h.bindAndValidate(ctx, &req); err != nil {
		badRequest(ctx, err)
		return
	}

	result := h.components.Generator.StartInterview(c, req.JobDescription, req.ResumeSummary)

	h.appendTranscript(c, req.InterviewID, types.ChatMessage{Role: "interviewer", Content: result.Question})

	ctx.JSON(consts.StatusOK, result)
}

type interviewNextRequest struct {
	JobDescription string              `json:"job_description" validate:"required"`
	ResumeSummary  string              `json:"resume_summary"`
	History        []types.ChatMessage `json:"history"`
	QuestionNumber int                 `json:"question_number"`
	InterviewID    string              `json:"interview_id"`
}

// NextQuestion 基于对话历史生成下一道问题
func (h *Handler) NextQuestion(c context.Context, ctx *app.RequestContext) {
	var req interviewNextRequest
	if err := h.bindAndValidate(ctx, &req); err != nil {
		badRequest(ctx, err)
		return
	}

	history := req.History
	if len(history) == 0 && req.InterviewID != "" && h.components.Transcripts != nil {
		stored, err := h.components.Transcripts.History(c, req.InterviewID)
		if err != nil {
			logger.Warn().Err(err).Str("interview_id", req.InterviewID).Msg("读取面试留痕失败")
		} else {
			history = stored
		}
	}

	questionNumber := req.QuestionNumber
	if questionNumber <= 0 {
		questionNumber = countInterviewerTurns(history) + 1
	}

	result := h.components.Generator.NextQuestion(c, req.JobDescription, req.ResumeSummary, history, questionNumber)

	h.appendTranscript(c, req.InterviewID, types.ChatMessage{Role: "interviewer", Content: result.Question})

	ctx.JSON(consts.StatusOK, result)
}

type evaluateAnswerRequest struct {
	JobDescription string `json:"job_description"`
	Question       string `json:"question" validate:"required"`
	Answer         string `json:"answer" validate:"required"`
	ResumeSummary  string `json:"resume_summary"`
	InterviewID    string `json:"interview_id"`
}

// EvaluateAnswer 给单题回答打分，得分始终在[1,10]内
func (h *Handler) EvaluateAnswer(c context.Context, ctx *app.RequestContext) {
	var req evaluateAnswerRequest
	if err := h.bindAndValidate(ctx, &req); err != nil {
		badRequest(ctx, err)
		return
	}

	result := h.components.Evaluator.EvaluateAnswer(c, req.JobDescription, req.Question, req.Answer, req.ResumeSummary)

	h.appendTranscript(c, req.InterviewID, types.ChatMessage{Role: "interviewee", Content: req.Answer})

	ctx.JSON(consts.StatusOK, result)
}

type evaluateSessionRequest struct {
	JobDescription string              `json:"job_description"`
	ResumeSummary  string              `json:"resume_summary"`
	History        []types.ChatMessage `json:"history"`
	AnswerScores   []int               `json:"answer_scores"`
	InterviewID    string              `json:"interview_id"`
}

// EvaluateSession 整场面试终评。interview_id对应已排期的面试时，
// 评估结果同时落库并把面试状态置为completed。
func (h *Handler) EvaluateSession(c context.Context, ctx *app.RequestContext) {
	var req evaluateSessionRequest
	if err := h.bindAndValidate(ctx, &req); err != nil {
		badRequest(ctx, err)
		return
	}

	history := req.History
	if len(history) == 0 && req.InterviewID != "" && h.components.Transcripts != nil {
		stored, err := h.components.Transcripts.History(c, req.InterviewID)
		if err != nil {
			logger.Warn().Err(err).Str("interview_id", req.InterviewID).Msg("读取面试留痕失败")
		} else {
			history = stored
		}
	}

	result := h.components.Evaluator.EvaluateSession(c, req.JobDescription, req.ResumeSummary, history, req.AnswerScores)

	h.persistSessionEvaluation(c, req.InterviewID, history, result)

	ctx.JSON(consts.StatusOK, result)
}

// appendTranscript 把消息追加到Redis留痕，失败只告警
func (h *Handler) appendTranscript(ctx context.Context, interviewID string, msg types.ChatMessage) {
	if interviewID == "" || h.components.Transcripts == nil || msg.Content == "" {
		return
	}
	if err := h.components.Transcripts.Append(ctx, interviewID, msg); err != nil {
		logger.Warn().Err(err).Str("interview_id", interviewID).Msg("写入面试留痕失败")
	}
}

// persistSessionEvaluation 终评结果落库
func (h *Handler) persistSessionEvaluation(ctx context.Context, interviewID string, history []types.ChatMessage, result *types.SessionEvaluation) {
	if interviewID == "" || h.storage.MySQL == nil {
		return
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":          constants.InterviewStatusCompleted,
		"question_count":  countInterviewerTurns(history),
		"overall_score":   result.OverallScore,
		"recommendation":  result.Recommendation,
		"answer_scores":   models.JSONOf(result.AnswerScores),
		"evaluation_json": models.JSONOf(result),
		"completed_at":    &now,
	}
	if err := h.storage.MySQL.UpdateInterviewEvaluation(ctx, interviewID, updates); err != nil {
		logger.Warn().Err(err).Str("interview_id", interviewID).Msg("面试终评落库失败")
	}
}

// countInterviewerTurns 统计历史中面试官提问的轮数
func countInterviewerTurns(history []types.ChatMessage) int {
	n := 0
	for _, msg := range history {
		if interview.NormalizeRole(msg.Role) == "system" {
			n++
		}
	}
	return n
}
