package handler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/interview"
	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/parser"
	"recruit-agent-go/internal/storage"
	"recruit-agent-go/internal/storage/models"
	pkgutils "recruit-agent-go/pkg/utils"
)

// errJobNotFound 任何一个存储层都找不到该岗位
var errJobNotFound = errors.New("job not found")

// AIComponents AI服务的组件聚合：简历解析、向量化与面试问答
type AIComponents struct {
	Extractor   *parser.DocumentExtractor
	CVParser    *parser.CVParser
	Embedder    parser.TextEmbedder
	Generator   *interview.Generator
	Evaluator   *interview.Evaluator
	Transcripts *interview.TranscriptStore // 可选，Redis未配置时为nil
}

// Handler 相似度/面试服务的HTTP处理器
type Handler struct {
	cfg        *config.Config
	storage    *storage.Storage
	components *AIComponents
	validate   *validator.Validate
}

// NewHandler 创建处理器
func NewHandler(cfg *config.Config, storage *storage.Storage, components *AIComponents) *Handler {
	return &Handler{
		cfg:        cfg,
		storage:    storage,
		components: components,
		validate:   validator.New(),
	}
}

// Health 健康检查
func (h *Handler) Health(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
}

// bindAndValidate 解析JSON请求体并校验
func (h *Handler) bindAndValidate(ctx *app.RequestContext, req interface{}) error {
	if err := ctx.BindJSON(req); err != nil {
		return fmt.Errorf("解析请求体失败: %w", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}
	return nil
}

// badRequest 统一的400响应
func badRequest(ctx *app.RequestContext, err error) {
	ctx.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
}

// jobDescriptionText 按 Redis缓存 → Qdrant payload → MySQL 的顺序查找岗位JD文本。
// 找到后回填缓存；全部未命中返回 errJobNotFound。
func (h *Handler) jobDescriptionText(ctx context.Context, jobID string) (string, error) {
	if h.storage.Redis != nil {
		if text, err := h.storage.Redis.GetJobDescription(ctx, jobID); err == nil && text != "" {
			return text, nil
		}
	}

	if h.storage.Qdrant != nil {
		doc, err := h.storage.Qdrant.GetDocument(ctx, h.cfg.Qdrant.JobsCollection, jobID)
		if err != nil {
			logger.Warn().Err(err).Str("job_id", jobID).Msg("查询Qdrant岗位文档失败")
		} else if doc != nil {
			if text, ok := doc.Payload["text"].(string); ok && text != "" {
				h.cacheJobDescription(ctx, jobID, text)
				return text, nil
			}
		}
	}

	if h.storage.MySQL != nil {
		job, err := h.storage.MySQL.GetJobPost(ctx, jobID)
		if err == nil && job.Description != "" {
			h.cacheJobDescription(ctx, jobID, job.Description)
			return job.Description, nil
		}
		if err != nil && !errors.Is(err, storage.ErrJobNotFound) {
			return "", fmt.Errorf("查询岗位失败: %w", err)
		}
	}

	return "", errJobNotFound
}

func (h *Handler) cacheJobDescription(ctx context.Context, jobID, text string) {
	if h.storage.Redis == nil {
		return
	}
	if err := h.storage.Redis.CacheJobDescription(ctx, jobID, text); err != nil {
		logger.Warn().Err(err).Str("job_id", jobID).Msg("写入JD缓存失败")
	}
}

// embedText 生成单条文本的向量
func (h *Handler) embedText(ctx context.Context, text string) ([]float64, error) {
	vectors, err := h.components.Embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("向量化结果为空")
	}
	return vectors[0], nil
}

// roundPercentage 得分换算为百分比，保留两位小数
func roundPercentage(score float64) float64 {
	return math.Round(score*100*100) / 100
}

// issueInterviewLink 当得分达到阈值时发放面试链接。
// 同一guardID（岗位+简历指纹或投递ID）至多发放一次：并发重复请求
// 通过Redis SETNX守卫拿到的是首次发放的同一条链接。
func (h *Handler) issueInterviewLink(ctx context.Context, guardID string, percentage float64) string {
	if percentage < constants.InterviewLinkThreshold {
		return ""
	}

	link := uuid.NewString()

	if h.storage.Redis != nil {
		claimed, err := h.storage.Redis.ClaimInterviewLink(ctx, guardID, link, 30*24*time.Hour)
		if err != nil {
			logger.Warn().Err(err).Str("guard_id", guardID).Msg("申领面试链接失败，降级为无守卫发放")
		} else if !claimed {
			existing, err := h.storage.Redis.GetClaimedInterviewLink(ctx, guardID)
			if err == nil && existing != "" {
				return h.fullInterviewLink(existing)
			}
			// 守卫存在但读取失败，宁可不重复发放
			return ""
		}
	}

	if h.storage.MySQL != nil {
		now := time.Now()
		if err := h.storage.MySQL.CreateInterview(ctx, &models.Interview{
			InterviewLink: link,
			ApplicationID: guardID,
			Status:        constants.InterviewStatusScheduled,
			ScheduledAt:   &now,
		}); err != nil {
			logger.Warn().Err(err).Str("interview_link", link).Msg("写入面试排期记录失败")
		}
	}

	return h.fullInterviewLink(link)
}

// fullInterviewLink 拼接配置的基础URL
func (h *Handler) fullInterviewLink(link string) string {
	if base := h.cfg.Interview.LinkBaseURL; base != "" {
		return base + link
	}
	return link
}

// compareGuardID 无投递上下文的比较请求用 岗位ID+简历指纹 做链接守卫
func compareGuardID(jobID, cvText string) string {
	return jobID + ":" + pkgutils.CalculateMD5([]byte(cvText))
}
