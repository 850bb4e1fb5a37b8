package handler

import (
	"context"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/similarity"
	"recruit-agent-go/internal/storage"
	"recruit-agent-go/internal/storage/models"
	"recruit-agent-go/internal/types"
	pkgutils "recruit-agent-go/pkg/utils"
)

type createJobRequest struct {
	JobID       string `json:"job_id"`
	Title       string `json:"title"`
	Department  string `json:"department"`
	Location    string `json:"location"`
	Description string `json:"description" validate:"required"`
}

// CreateJob 登记一个岗位：JD文本入向量库与缓存，MySQL可用时落库。
// 已存在的job_id返回409。
func (h *Handler) CreateJob(c context.Context, ctx *app.RequestContext) {
	var req createJobRequest
	if err := h.bindAndValidate(ctx, &req); err != nil {
		badRequest(ctx, err)
		return
	}

	jobID := req.JobID
	if jobID == "" {
		// 未指定ID时用JD文本的哈希，同一描述重复提交是幂等的upsert
		jobID = pkgutils.HashTextID(req.Description)
	}

	stored := false

	if h.storage.MySQL != nil {
		err := h.storage.MySQL.CreateJobPost(c, &models.JobPost{
			JobID:       jobID,
			Title:       req.Title,
			Department:  req.Department,
			Location:    req.Location,
			Description: req.Description,
			Status:      constants.JobStatusActive,
		})
		if errors.Is(err, storage.ErrJobAlreadyExists) && req.JobID != "" {
			ctx.JSON(consts.StatusConflict, utils.H{"error": "job already exists", "job_id": jobID})
			return
		}
		if err != nil && !errors.Is(err, storage.ErrJobAlreadyExists) {
			logger.Warn().Err(err).Str("job_id", jobID).Msg("岗位写入MySQL失败")
		} else {
			stored = true
		}
	} else if h.storage.Qdrant != nil && req.JobID != "" {
		// 没有MySQL时用向量库判断重复
		doc, err := h.storage.Qdrant.GetDocument(c, h.cfg.Qdrant.JobsCollection, jobID)
		if err == nil && doc != nil {
			ctx.JSON(consts.StatusConflict, utils.H{"error": "job already exists", "job_id": jobID})
			return
		}
	}

	if h.storage.Qdrant != nil {
		vector, err := h.embedText(c, req.Description)
		if err != nil {
			logger.Warn().Err(err).Str("job_id", jobID).Msg("JD向量化失败，跳过向量库写入")
		} else {
			payload := map[string]interface{}{
				"job_id": jobID,
				"text":   req.Description,
			}
			if req.Title != "" {
				payload["title"] = req.Title
			}
			if _, err := h.storage.Qdrant.PutDocument(c, h.cfg.Qdrant.JobsCollection, jobID, vector, payload); err != nil {
				logger.Warn().Err(err).Str("job_id", jobID).Msg("JD写入Qdrant失败")
			} else {
				stored = true
			}
		}
	}

	h.cacheJobDescription(c, jobID, req.Description)
	if h.storage.Redis != nil {
		stored = true
	}

	if !stored {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "没有可用的岗位存储"})
		return
	}

	logger.Info().Str("job_id", jobID).Msg("岗位已登记")
	ctx.JSON(consts.StatusCreated, utils.H{"job_id": jobID})
}

type compareRequest struct {
	CV string `json:"cv" validate:"required"`
}

// CompareCV 计算JD与简历文本的TF-IDF余弦相似度。
// 得分达到阈值时返回面试链接，同一岗位+简历组合只发放一次。
func (h *Handler) CompareCV(c context.Context, ctx *app.RequestContext) {
	jobID := ctx.Param("job_id")

	var req compareRequest
	if err := h.bindAndValidate(ctx, &req); err != nil {
		badRequest(ctx, err)
		return
	}

	jobText, err := h.jobDescriptionText(c, jobID)
	if errors.Is(err, errJobNotFound) {
		ctx.JSON(consts.StatusNotFound, utils.H{"error": "job not found", "job_id": jobID})
		return
	}
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	score := similarity.Score(jobText, req.CV)
	percentage := roundPercentage(score)

	result := types.CompareResult{
		SimilarityScore:      score,
		SimilarityPercentage: percentage,
	}
	result.InterviewLink = h.issueInterviewLink(c, compareGuardID(jobID, req.CV), percentage)

	logger.Info().
		Str("job_id", jobID).
		Float64("similarity_percentage", percentage).
		Bool("interview_link_issued", result.InterviewLink != "").
		Msg("完成JD与简历比较")

	ctx.JSON(consts.StatusOK, result)
}
