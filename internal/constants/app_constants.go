package constants

import "time"

const (
	// 相似度阈值：得分(百分比)达到该值才会生成面试链接
	InterviewLinkThreshold = 50.0

	// 默认面试总题数
	DefaultTotalQuestions = 10

	// LLM解析简历时送入Prompt的最大字符数
	LLMParseMaxChars = 3000

	// 面试上下文只保留最近的对话轮数
	InterviewHistoryWindow = 6

	// Qdrant 集合名
	CollectionJobDescriptions = "job_descriptions"
	CollectionApplications    = "applications"

	// JD文本缓存
	JDCacheDuration = 24 * time.Hour

	// CV文件上传限制
	MaxCVFileSize = 5 * 1024 * 1024 // 5MB
)

// 简历解析来源标记（provenance）
const (
	ParsingMethodHeuristic         = "ner_nlp"
	ParsingMethodLLM               = "deepseek_llm"
	ParsingMethodMultimodal        = "multimodal_llm"
	ParsingMethodHeuristicFallback = "ner_nlp_fallback"
	ParsingMethodFailed            = "failed"
)

// 面试评估的推荐档位
const (
	RecommendationRecommend    = "recommend"
	RecommendationConsider     = "consider"
	RecommendationNotRecommend = "not_recommend"

	// 按平均分兜底推荐时的阈值
	RecommendScoreFloor = 7.0
	ConsiderScoreFloor  = 5.0
)

// 业务状态枚举，与数据库中的取值保持一致
const (
	JobStatusActive   = "active"
	JobStatusInactive = "inactive"
	JobStatusClosed   = "closed"

	ApplicationStatusPending  = "pending"
	ApplicationStatusReviewed = "reviewed"
	ApplicationStatusAccepted = "accepted"
	ApplicationStatusRejected = "rejected"

	InterviewStatusScheduled = "scheduled"
	InterviewStatusCompleted = "completed"
	InterviewStatusCancelled = "cancelled"
)
