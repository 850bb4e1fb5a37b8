package recruiter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/parser"
	"recruit-agent-go/internal/recruiter/aiclient"
	"recruit-agent-go/internal/storage"
	"recruit-agent-go/internal/storage/models"
	pkgutils "recruit-agent-go/pkg/utils"
)

// Handler 招聘后台的HTTP处理器。岗位与投递以MySQL为准，
// 相似度评分与面试链接委托给AI服务，原始简历文件进MinIO。
type Handler struct {
	cfg       *config.Config
	storage   *storage.Storage
	extractor *parser.DocumentExtractor
	cvParser  *parser.CVParser
	ai        *aiclient.Client
	validate  *validator.Validate
}

// NewHandler 创建后台处理器
func NewHandler(cfg *config.Config, st *storage.Storage, extractor *parser.DocumentExtractor, cvParser *parser.CVParser, ai *aiclient.Client) *Handler {
	return &Handler{
		cfg:       cfg,
		storage:   st,
		extractor: extractor,
		cvParser:  cvParser,
		ai:        ai,
		validate:  validator.New(),
	}
}

// Health 健康检查
func (h *Handler) Health(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
}

type createJobPostRequest struct {
	Title       string `json:"title" validate:"required"`
	Department  string `json:"department"`
	Location    string `json:"location"`
	Description string `json:"description" validate:"required"`
}

// CreateJobPost 新建岗位：落库MySQL并登记到AI服务
func (h *Handler) CreateJobPost(c context.Context, ctx *app.RequestContext) {
	var req createJobPostRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
		return
	}

	job := &models.JobPost{
		JobID:       uuid.NewString(),
		Title:       req.Title,
		Department:  req.Department,
		Location:    req.Location,
		Description: req.Description,
		Status:      constants.JobStatusActive,
	}

	if err := h.storage.MySQL.CreateJobPost(c, job); err != nil {
		if errors.Is(err, storage.ErrJobAlreadyExists) {
			ctx.JSON(consts.StatusConflict, utils.H{"error": "job already exists"})
			return
		}
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	// AI服务不可达不阻塞岗位创建，评分时还有机会重新登记
	if err := h.ai.RegisterJob(c, job.JobID, job.Title, job.Description); err != nil {
		logger.Warn().Err(err).Str("job_id", job.JobID).Msg("岗位登记到AI服务失败")
	}
	if h.storage.Redis != nil {
		if err := h.storage.Redis.CacheJobDescription(c, job.JobID, job.Description); err != nil {
			logger.Warn().Err(err).Str("job_id", job.JobID).Msg("写入JD缓存失败")
		}
	}

	ctx.JSON(consts.StatusCreated, job)
}

// ListJobPosts 岗位列表，可按状态过滤
func (h *Handler) ListJobPosts(c context.Context, ctx *app.RequestContext) {
	status := string(ctx.Query("status"))
	limit := queryInt(ctx, "limit", 20)
	offset := queryInt(ctx, "offset", 0)

	jobs, total, err := h.storage.MySQL.ListJobPosts(c, status, limit, offset)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	ctx.JSON(consts.StatusOK, utils.H{"jobs": jobs, "total": total})
}

// GetJobPost 岗位详情
func (h *Handler) GetJobPost(c context.Context, ctx *app.RequestContext) {
	jobID := ctx.Param("job_id")

	job, err := h.storage.MySQL.GetJobPost(c, jobID)
	if errors.Is(err, storage.ErrJobNotFound) {
		ctx.JSON(consts.StatusNotFound, utils.H{"error": "job not found"})
		return
	}
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	ctx.JSON(consts.StatusOK, job)
}

// CloseJobPost 关闭岗位，不再接受新投递
func (h *Handler) CloseJobPost(c context.Context, ctx *app.RequestContext) {
	jobID := ctx.Param("job_id")

	job, err := h.storage.MySQL.GetJobPost(c, jobID)
	if errors.Is(err, storage.ErrJobNotFound) {
		ctx.JSON(consts.StatusNotFound, utils.H{"error": "job not found"})
		return
	}
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	job.Status = constants.JobStatusClosed
	if err := h.storage.MySQL.UpdateJobPost(c, job); err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	ctx.JSON(consts.StatusOK, job)
}

// SubmitApplication 候选人向岗位投递简历（multipart上传）。
// 扩展名白名单 + 5MB上限 + MD5去重；解析失败不拒单，
// 返回可手工补填的空表单（success=false）。
func (h *Handler) SubmitApplication(c context.Context, ctx *app.RequestContext) {
	jobID := ctx.Param("job_id")

	job, err := h.storage.MySQL.GetJobPost(c, jobID)
	if errors.Is(err, storage.ErrJobNotFound) {
		ctx.JSON(consts.StatusNotFound, utils.H{"error": "job not found"})
		return
	}
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	if job.Status != constants.JobStatusActive {
		ctx.JSON(consts.StatusConflict, utils.H{"error": "job is not accepting applications", "status": job.Status})
		return
	}

	fileHeader, err := ctx.FormFile("cv")
	if err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "缺少cv文件"})
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !parser.AllowedCVExtensions[ext] {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": fmt.Sprintf("不支持的文件类型: %s", ext)})
		return
	}
	if fileHeader.Size > constants.MaxCVFileSize {
		ctx.JSON(consts.StatusRequestEntityTooLarge, utils.H{"error": "文件超过5MB上限"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "打开上传文件失败"})
		return
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "读取上传文件失败"})
		return
	}

	candidateName := string(ctx.PostForm("candidate_name"))
	candidateEmail := string(ctx.PostForm("candidate_email"))

	applicationID := uuid.NewString()

	// 文件MD5去重：同一份文件重复投递直接拒绝
	var fileMD5 string
	if h.storage.Redis != nil {
		md5Hex := pkgutils.CalculateMD5(fileBytes)
		exists, err := h.storage.Redis.CheckAndAddCVFileMD5(c, md5Hex)
		if err != nil {
			logger.Warn().Err(err).Msg("查询文件MD5去重集合失败，跳过去重")
		} else if exists {
			ctx.JSON(consts.StatusConflict, utils.H{"error": "duplicate cv file"})
			return
		}
		fileMD5 = md5Hex
	}

	// 原始文件进MinIO
	var objectKey string
	if h.storage.MinIO != nil {
		key, md5Hex, err := h.storage.MinIO.UploadCVFile(c, applicationID, ext, bytes.NewReader(fileBytes), int64(len(fileBytes)))
		if err != nil {
			h.rollbackFileMD5(c, fileMD5)
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": fmt.Sprintf("存储简历文件失败: %v", err)})
			return
		}
		objectKey = key
		if fileMD5 == "" {
			fileMD5 = md5Hex
		}
	}

	// 提取+解析，失败不拒单
	cvText := h.extractor.Extract(c, fileBytes, fileHeader.Filename)
	parsed := h.cvParser.ParseDocument(c, fileBytes, fileHeader.Filename, h.cfg.CVParser.UseLLM)
	if candidateName == "" {
		candidateName = parsed.FullName
	}
	if candidateEmail == "" {
		candidateEmail = parsed.Email
	}

	// 委托AI服务评分
	var scorePtr *float64
	var interviewLink string
	if result, err := h.ai.Compare(c, jobID, cvText); err != nil {
		logger.Warn().Err(err).Str("job_id", jobID).Str("application_id", applicationID).
			Msg("相似度评分失败，投递继续，稍后可由消费端补算")
	} else {
		scorePtr = &result.SimilarityPercentage
		interviewLink = result.InterviewLink
	}

	application := &models.Application{
		ApplicationID:   applicationID,
		JobID:           jobID,
		CandidateName:   candidateName,
		CandidateEmail:  candidateEmail,
		CVFilePathOSS:   objectKey,
		CVFileMD5:       fileMD5,
		CVText:          cvText,
		ParsedResume:    models.JSONOf(parsed),
		SimilarityScore: scorePtr,
		Status:          constants.ApplicationStatusPending,
	}
	if interviewLink != "" {
		application.InterviewLink = &interviewLink
	}

	event, err := storage.NewSubmittedOutboxMessage(&h.cfg.RabbitMQ, storage.ApplicationSubmittedEvent{
		ApplicationID:  applicationID,
		JobID:          jobID,
		SubmittedAt:    time.Now(),
		CandidateName:  candidateName,
		CandidateEmail: candidateEmail,
		CVFilePathOSS:  objectKey,
		CVFileMD5:      fileMD5,
		ParsingMethod:  parsed.ParsingMethod,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("构建outbox事件失败，仅落库投递")
		err = h.storage.MySQL.CreateApplication(c, application)
	} else {
		err = h.storage.MySQL.CreateApplicationWithOutbox(c, application, event)
	}
	if err != nil {
		// 落库失败回滚去重登记，让候选人可以重试
		h.rollbackFileMD5(c, fileMD5)
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": fmt.Sprintf("保存投递失败: %v", err)})
		return
	}

	resp := utils.H{
		"application_id": applicationID,
		"parsed_resume":  parsed,
		"success":        parsed.ParsingMethod != constants.ParsingMethodFailed,
	}
	if scorePtr != nil {
		resp["similarity_score"] = *scorePtr
	}
	if interviewLink != "" {
		resp["interview_link"] = interviewLink
	}
	ctx.JSON(consts.StatusCreated, resp)
}

// ListApplications 某岗位的投递列表，按相似度降序
func (h *Handler) ListApplications(c context.Context, ctx *app.RequestContext) {
	jobID := ctx.Param("job_id")
	limit := queryInt(ctx, "limit", 20)
	offset := queryInt(ctx, "offset", 0)

	applications, total, err := h.storage.MySQL.ListApplicationsByJob(c, jobID, limit, offset)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	ctx.JSON(consts.StatusOK, utils.H{"applications": applications, "total": total})
}

// GetApplication 投递详情
func (h *Handler) GetApplication(c context.Context, ctx *app.RequestContext) {
	applicationID := ctx.Param("application_id")

	application, err := h.storage.MySQL.GetApplication(c, applicationID)
	if err != nil {
		ctx.JSON(consts.StatusNotFound, utils.H{"error": "application not found"})
		return
	}

	ctx.JSON(consts.StatusOK, application)
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending reviewed accepted rejected"`
}

// UpdateApplicationStatus 推进投递的审核状态
func (h *Handler) UpdateApplicationStatus(c context.Context, ctx *app.RequestContext) {
	applicationID := ctx.Param("application_id")

	var req updateStatusRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
		return
	}

	if err := h.storage.MySQL.UpdateApplicationStatus(c, applicationID, req.Status); err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	ctx.JSON(consts.StatusOK, utils.H{"application_id": applicationID, "status": req.Status})
}

// ParseCV 只解析不建投递：上传简历文件，返回结构化字段。
// use_llm=false 时只走离线启发式。
func (h *Handler) ParseCV(c context.Context, ctx *app.RequestContext) {
	fileHeader, err := ctx.FormFile("cv")
	if err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "缺少cv文件"})
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !parser.AllowedCVExtensions[ext] {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": fmt.Sprintf("不支持的文件类型: %s", ext)})
		return
	}
	if fileHeader.Size > constants.MaxCVFileSize {
		ctx.JSON(consts.StatusRequestEntityTooLarge, utils.H{"error": "文件超过5MB上限"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "打开上传文件失败"})
		return
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "读取上传文件失败"})
		return
	}

	useLLM := h.cfg.CVParser.UseLLM
	if v := string(ctx.PostForm("use_llm")); v != "" {
		useLLM, _ = strconv.ParseBool(v)
	}

	parsed := h.cvParser.ParseDocument(c, fileBytes, fileHeader.Filename, useLLM)

	// 解析失败也返回200：前端拿空表单让候选人手工补填
	ctx.JSON(consts.StatusOK, utils.H{
		"success":       parsed.ParsingMethod != constants.ParsingMethodFailed,
		"parsed_resume": parsed,
	})
}

// SearchApplications 代理AI服务的语义检索
func (h *Handler) SearchApplications(c context.Context, ctx *app.RequestContext) {
	var req struct {
		Query    string `json:"query" validate:"required"`
		JobID    string `json:"job_id"`
		NResults int    `json:"n_results"`
	}
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
		return
	}

	results, err := h.ai.SearchApplications(c, req.Query, req.JobID, req.NResults)
	if err != nil {
		ctx.JSON(consts.StatusBadGateway, utils.H{"error": err.Error()})
		return
	}

	ctx.JSON(consts.StatusOK, utils.H{"results": results})
}

// rollbackFileMD5 去重登记的撤销，失败只记日志
func (h *Handler) rollbackFileMD5(ctx context.Context, md5Hex string) {
	if md5Hex == "" || h.storage.Redis == nil {
		return
	}
	if err := h.storage.Redis.RemoveCVFileMD5(ctx, md5Hex); err != nil {
		logger.Warn().Err(err).Str("md5", md5Hex).Msg("回滚文件MD5登记失败")
	}
}

func queryInt(ctx *app.RequestContext, key string, def int) int {
	v := string(ctx.Query(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
