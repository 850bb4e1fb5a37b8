package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"

	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/parser"
	"recruit-agent-go/internal/similarity"
	"recruit-agent-go/internal/storage"
	"recruit-agent-go/internal/storage/models"
	"recruit-agent-go/internal/types"
)

type parsedCVRequest struct {
	CVText         string `json:"cv_text" validate:"required"`
	JobID          string `json:"job_id" validate:"required"`
	CandidateName  string `json:"candidate_name"`
	CandidateEmail string `json:"candidate_email"`
	UserID         string `json:"user_id"`
}

// SubmitParsedCV 登记一份简历文本并立即对指定岗位打分。
// 简历入向量库，MySQL可用时同时落库并登记outbox事件。
func (h *Handler) SubmitParsedCV(c context.Context, ctx *app.RequestContext) {
	var req parsedCVRequest
	if err := h.bindAndValidate(ctx, &req); err != nil {
		badRequest(ctx, err)
		return
	}

	jobText, err := h.jobDescriptionText(c, req.JobID)
	if errors.Is(err, errJobNotFound) {
		ctx.JSON(consts.StatusNotFound, utils.H{"error": "job not found", "job_id": req.JobID})
		return
	}
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	parsedCVID := uuid.NewString()
	score := similarity.Score(jobText, req.CVText)
	percentage := roundPercentage(score)
	link := h.issueInterviewLink(c, parsedCVID, percentage)

	parsed := h.components.CVParser.ParseText(c, req.CVText, h.cfg.CVParser.UseLLM)
	if parsed.FullName == "" {
		parsed.FullName = req.CandidateName
	}
	if parsed.Email == "" {
		parsed.Email = req.CandidateEmail
	}

	h.storeApplicationVector(c, parsedCVID, req.JobID, req.CVText, map[string]string{
		"candidate_name":  req.CandidateName,
		"candidate_email": req.CandidateEmail,
		"user_id":         req.UserID,
	}, &score)

	h.persistApplication(c, &models.Application{
		ApplicationID:   parsedCVID,
		JobID:           req.JobID,
		CandidateName:   req.CandidateName,
		CandidateEmail:  req.CandidateEmail,
		CVText:          req.CVText,
		ParsedResume:    models.JSONOf(parsed),
		SimilarityScore: &percentage,
		InterviewLink:   optionalString(link),
		Status:          constants.ApplicationStatusPending,
	}, parsed.ParsingMethod)

	ctx.JSON(consts.StatusOK, utils.H{
		"parsed_cv_id":     parsedCVID,
		"similarity_score": score,
	})
}

type applicationRequest struct {
	ApplicationID  string `json:"application_id"`
	CVText         string `json:"cv_text"`
	CVPDFBase64    string `json:"cv_pdf_base64"`
	JobID          string `json:"job_id"`
	CandidateName  string `json:"candidate_name"`
	CandidateEmail string `json:"candidate_email"`
}

type applicationResponse struct {
	ApplicationID   string              `json:"application_id"`
	SimilarityScore *float64            `json:"similarity_score,omitempty"`
	InterviewLink   string              `json:"interview_link,omitempty"`
	ParsingMethod   string              `json:"parsing_method,omitempty"`
	InterviewReady  bool                `json:"interview_ready"`
	ParsedResume    *types.ParsedResume `json:"parsed_resume,omitempty"`
}

// SubmitApplication 提交一份投递。接受纯文本或base64编码的PDF；
// 指定了job_id时附带相似度评分，达到阈值时发放面试链接。
func (h *Handler) SubmitApplication(c context.Context, ctx *app.RequestContext) {
	var req applicationRequest
	if err := h.bindAndValidate(ctx, &req); err != nil {
		badRequest(ctx, err)
		return
	}
	if req.CVText == "" && req.CVPDFBase64 == "" {
		badRequest(ctx, fmt.Errorf("cv_text 与 cv_pdf_base64 至少提供一个"))
		return
	}

	cvText := req.CVText
	var parsed *types.ParsedResume
	if cvText == "" {
		data, err := parser.DecodeBase64Document(req.CVPDFBase64)
		if err != nil {
			badRequest(ctx, fmt.Errorf("解码cv_pdf_base64失败: %w", err))
			return
		}
		cvText = h.components.Extractor.Extract(c, data, "cv.pdf")
		parsed = h.components.CVParser.ParseDocument(c, data, "cv.pdf", h.cfg.CVParser.UseLLM)
	} else {
		parsed = h.components.CVParser.ParseText(c, cvText, h.cfg.CVParser.UseLLM)
	}

	applicationID := req.ApplicationID
	if applicationID == "" {
		applicationID = uuid.NewString()
	}

	resp := applicationResponse{
		ApplicationID: applicationID,
		ParsingMethod: parsed.ParsingMethod,
		ParsedResume:  parsed,
	}

	var percentagePtr *float64
	if req.JobID != "" {
		jobText, err := h.jobDescriptionText(c, req.JobID)
		if errors.Is(err, errJobNotFound) {
			ctx.JSON(consts.StatusNotFound, utils.H{"error": "job not found", "job_id": req.JobID})
			return
		}
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}

		score := similarity.Score(jobText, cvText)
		percentage := roundPercentage(score)
		resp.SimilarityScore = &score
		resp.InterviewLink = h.issueInterviewLink(c, applicationID, percentage)
		resp.InterviewReady = resp.InterviewLink != ""
		percentagePtr = &percentage
	}

	h.storeApplicationVector(c, applicationID, req.JobID, cvText, map[string]string{
		"candidate_name":  req.CandidateName,
		"candidate_email": req.CandidateEmail,
	}, resp.SimilarityScore)

	h.persistApplication(c, &models.Application{
		ApplicationID:   applicationID,
		JobID:           req.JobID,
		CandidateName:   req.CandidateName,
		CandidateEmail:  req.CandidateEmail,
		CVText:          cvText,
		ParsedResume:    models.JSONOf(parsed),
		SimilarityScore: percentagePtr,
		InterviewLink:   optionalString(resp.InterviewLink),
		Status:          constants.ApplicationStatusPending,
	}, parsed.ParsingMethod)

	ctx.JSON(consts.StatusOK, resp)
}

type searchApplicationsRequest struct {
	Query    string `json:"query" validate:"required"`
	JobID    string `json:"job_id"`
	NResults int    `json:"n_results"`
}

// SearchApplications 在投递集合上做语义检索，可按岗位过滤
func (h *Handler) SearchApplications(c context.Context, ctx *app.RequestContext) {
	var req searchApplicationsRequest
	if err := h.bindAndValidate(ctx, &req); err != nil {
		badRequest(ctx, err)
		return
	}

	if h.storage.Qdrant == nil {
		ctx.JSON(consts.StatusServiceUnavailable, utils.H{"error": "向量检索不可用"})
		return
	}

	vector, err := h.embedText(c, req.Query)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": fmt.Sprintf("查询向量化失败: %v", err)})
		return
	}

	limit := req.NResults
	if limit <= 0 {
		limit = h.cfg.Qdrant.DefaultSearchLimit
	}

	var filter map[string]interface{}
	if req.JobID != "" {
		filter = map[string]interface{}{
			"must": []map[string]interface{}{
				{"key": "job_id", "match": map[string]interface{}{"value": req.JobID}},
			},
		}
	}

	records, err := h.storage.Qdrant.QueryDocuments(c, h.cfg.Qdrant.ApplicationsCollection, vector, limit, filter)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": fmt.Sprintf("向量检索失败: %v", err)})
		return
	}

	results := make([]types.ScoredApplication, 0, len(records))
	for _, rec := range records {
		item := types.ScoredApplication{
			ApplicationID: rec.ID,
			Score:         float64(rec.Score),
			Metadata:      map[string]string{},
		}
		if appID, ok := rec.Payload["application_id"].(string); ok && appID != "" {
			item.ApplicationID = appID
		}
		if text, ok := rec.Payload["cv_text"].(string); ok {
			item.CVText = text
		}
		for _, key := range []string{"job_id", "candidate_name", "candidate_email", "user_id"} {
			if v, ok := rec.Payload[key].(string); ok && v != "" {
				item.Metadata[key] = v
			}
		}
		results = append(results, item)
	}

	ctx.JSON(consts.StatusOK, utils.H{"results": results})
}

// storeApplicationVector 投递文本入向量库，失败只告警
func (h *Handler) storeApplicationVector(ctx context.Context, applicationID, jobID, cvText string, meta map[string]string, score *float64) {
	if h.storage.Qdrant == nil {
		return
	}

	vector, err := h.embedText(ctx, cvText)
	if err != nil {
		logger.Warn().Err(err).Str("application_id", applicationID).Msg("简历向量化失败，跳过向量库写入")
		return
	}

	payload := map[string]interface{}{
		"application_id": applicationID,
		"cv_text":        cvText,
	}
	if jobID != "" {
		payload["job_id"] = jobID
	}
	if score != nil {
		payload["similarity_score"] = *score
	}
	for k, v := range meta {
		if v != "" {
			payload[k] = v
		}
	}

	if _, err := h.storage.Qdrant.PutDocument(ctx, h.cfg.Qdrant.ApplicationsCollection, applicationID, vector, payload); err != nil {
		logger.Warn().Err(err).Str("application_id", applicationID).Msg("投递写入Qdrant失败")
	}
}

// persistApplication MySQL可用时落库，并在同一事务里登记outbox事件
func (h *Handler) persistApplication(ctx context.Context, application *models.Application, parsingMethod string) {
	if h.storage.MySQL == nil {
		return
	}

	event, err := storage.NewSubmittedOutboxMessage(&h.cfg.RabbitMQ, storage.ApplicationSubmittedEvent{
		ApplicationID:  application.ApplicationID,
		JobID:          application.JobID,
		SubmittedAt:    time.Now(),
		CandidateName:  application.CandidateName,
		CandidateEmail: application.CandidateEmail,
		ParsingMethod:  parsingMethod,
	})
	if err != nil {
		logger.Warn().Err(err).Str("application_id", application.ApplicationID).Msg("构建outbox事件失败，仅落库投递记录")
		if err := h.storage.MySQL.CreateApplication(ctx, application); err != nil {
			logger.Warn().Err(err).Str("application_id", application.ApplicationID).Msg("投递写入MySQL失败")
		}
		return
	}

	if err := h.storage.MySQL.CreateApplicationWithOutbox(ctx, application, event); err != nil {
		logger.Warn().Err(err).Str("application_id", application.ApplicationID).Msg("投递写入MySQL失败")
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
