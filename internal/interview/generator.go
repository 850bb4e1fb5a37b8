package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/llm"
	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/types"
)

// 兜底问题里用来从简历摘要中抓技术词的模式
var techTokenPattern = regexp.MustCompile(`(?i)\b(Python|Java|JavaScript|TypeScript|React|Angular|Vue|Node\.?js|Django|Flask|FastAPI|Spring|AWS|Azure|GCP|Docker|Kubernetes|SQL|PostgreSQL|MySQL|MongoDB|Redis|GraphQL|REST API|microservices|CI/CD|Git|Linux|TensorFlow|PyTorch|Machine Learning)\b`)

// Generator 面试问题生成器。
// 远端失败永远不会传给调用方：模型链全挂时降级到本地模板问题，
// 结果带 fallback 标记。
type Generator struct {
	chain          *llm.ModelChain
	totalQuestions int
	temperature    float64
	maxTokens      int
	tracer         trace.Tracer
}

// GeneratorOption 配置选项
type GeneratorOption func(*Generator)

// WithTotalQuestions 设置一场面试的总题数
func WithTotalQuestions(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.totalQuestions = n
		}
	}
}

// WithGenerateParams 设置生成参数
func WithGenerateParams(temperature float64, maxTokens int) GeneratorOption {
	return func(g *Generator) {
		g.temperature = temperature
		g.maxTokens = maxTokens
	}
}

// NewGenerator 创建问题生成器。chain 可为 nil，此时全部问题走本地模板。
func NewGenerator(chain *llm.ModelChain, options ...GeneratorOption) *Generator {
	g := &Generator{
		chain:          chain,
		totalQuestions: constants.DefaultTotalQuestions,
		temperature:    0.7,
		maxTokens:      1000,
		tracer:         otel.Tracer("interview-generator"),
	}
	for _, option := range options {
		option(g)
	}
	return g
}

// NormalizeRole 把对外宽松的角色名归一化为聊天模型认识的三种。
// interviewer 是提问方，interviewee/candidate 的话当作 assistant 上下文，
// 未知角色一律按 user 处理。
func NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "system":
		return "system"
	case "assistant", "interviewee", "candidate":
		return "assistant"
	case "interviewer":
		return "system"
	default:
		return "user"
	}
}

// renderHistory 把最近的对话渲染为Interviewer/Candidate对话文本
func renderHistory(history []types.ChatMessage, window int, perMessageLimit int) string {
	if len(history) > window {
		history = history[len(history)-window:]
	}
	var b strings.Builder
	for i, msg := range history {
		speaker := "Candidate"
		if strings.EqualFold(msg.Role, "interviewer") || NormalizeRole(msg.Role) == "system" {
			speaker = "Interviewer"
		}
		content := msg.Content
		if perMessageLimit > 0 && len(content) > perMessageLimit {
			content = content[:perMessageLimit]
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(content)
	}
	return b.String()
}

// truncate 截断到最多n字节，Prompt预算控制
func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// questionPayload 模型返回的问题JSON
type questionPayload struct {
	Question    string `json:"question"`
	Type        string `json:"type"`
	FocusArea   string `json:"focus_area"`
	CVReference string `json:"cv_reference"`
}

// StartInterview 生成开场问题
func (g *Generator) StartInterview(ctx context.Context, jobDescription, resumeSummary string) *types.QuestionResult {
	ctx, span := g.tracer.Start(ctx, "Generator.StartInterview")
	defer span.End()

	userPrompt := fmt.Sprintf(initialQuestionUserPrompt,
		truncate(jobDescription, 2000), truncate(resumeSummary, 2000))

	if payload, model, ok := g.askForQuestion(ctx, initialQuestionSystemPrompt, userPrompt); ok {
		span.SetAttributes(attribute.String("interview.model", model))
		return &types.QuestionResult{
			Success:     true,
			Question:    payload.Question,
			Type:        orDefault(payload.Type, "technical_cv_based"),
			FocusArea:   orDefault(payload.FocusArea, "technical"),
			CVReference: payload.CVReference,
			Model:       model,
		}
	}

	span.SetAttributes(attribute.Bool("interview.fallback", true))
	logger.Ctx(ctx).Warn().Msg("开场问题走本地兜底模板")
	return &types.QuestionResult{
		Success:   true,
		Question:  fallbackInitialQuestion(resumeSummary),
		Type:      "technical_cv_based",
		FocusArea: "technical",
		Fallback:  true,
	}
}

// NextQuestion 基于对话历史生成下一问。只携带最近6轮上下文。
func (g *Generator) NextQuestion(ctx context.Context, jobDescription, resumeSummary string, history []types.ChatMessage, questionNumber int) *types.QuestionResult {
	ctx, span := g.tracer.Start(ctx, "Generator.NextQuestion",
		trace.WithAttributes(attribute.Int("interview.question_number", questionNumber)))
	defer span.End()

	conversation := renderHistory(history, constants.InterviewHistoryWindow, 0)
	userPrompt := fmt.Sprintf(followupUserPrompt,
		truncate(jobDescription, 1500), truncate(resumeSummary, 1500),
		conversation, questionNumber, g.totalQuestions, focusHintFor(questionNumber))

	if payload, model, ok := g.askForQuestion(ctx, followupSystemPrompt, userPrompt); ok {
		span.SetAttributes(attribute.String("interview.model", model))
		return &types.QuestionResult{
			Success:        true,
			Question:       payload.Question,
			Type:           orDefault(payload.Type, "technical"),
			FocusArea:      orDefault(payload.FocusArea, "technical"),
			CVReference:    payload.CVReference,
			QuestionNumber: questionNumber,
			Model:          model,
		}
	}

	span.SetAttributes(attribute.Bool("interview.fallback", true))
	logger.Ctx(ctx).Warn().Int("question_number", questionNumber).Msg("追问走本地兜底模板")
	return &types.QuestionResult{
		Success:        true,
		Question:       fallbackFollowupQuestion(resumeSummary, questionNumber),
		Type:           "technical",
		FocusArea:      "cv_based",
		QuestionNumber: questionNumber,
		Fallback:       true,
	}
}

// askForQuestion 调用模型链并解析问题JSON；任何失败返回ok=false
func (g *Generator) askForQuestion(ctx context.Context, systemPrompt, userPrompt string) (*questionPayload, string, bool) {
	if g.chain == nil {
		return nil, "", false
	}

	temp := g.temperature
	result, err := g.chain.CompleteSimple(ctx, systemPrompt, userPrompt, llm.GenerateParams{
		Temperature: &temp,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("问题生成的全部模型均失败")
		return nil, "", false
	}

	var payload questionPayload
	if !decodeJSONPayload(result.Content, &payload) || strings.TrimSpace(payload.Question) == "" {
		logger.Ctx(ctx).Warn().Str("model", result.Model).Msg("模型返回的问题JSON不可用")
		return nil, "", false
	}
	return &payload, result.Model, true
}

// decodeJSONPayload 清洗模型输出并反序列化，含引号修复重试
func decodeJSONPayload(raw string, v interface{}) bool {
	cleaned := llm.StripCodeFences(raw)
	if obj := llm.ExtractJSONObject(cleaned); obj != "" {
		cleaned = obj
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		repaired := llm.SanitizeJSON(cleaned)
		if err2 := json.Unmarshal([]byte(repaired), v); err2 != nil {
			return false
		}
	}
	return true
}

// extractTechTokens 去重地抓取简历摘要里出现的技术词
func extractTechTokens(resumeSummary string) []string {
	var tokens []string
	seen := make(map[string]bool)
	for _, m := range techTokenPattern.FindAllString(resumeSummary, -1) {
		key := strings.ToLower(m)
		if !seen[key] {
			seen[key] = true
			tokens = append(tokens, m)
		}
	}
	return tokens
}

// fallbackInitialQuestion 开场兜底：围绕简历里第一个技术词提问
func fallbackInitialQuestion(resumeSummary string) string {
	if tokens := extractTechTokens(resumeSummary); len(tokens) > 0 {
		return fmt.Sprintf("I see you have experience with %s. Can you describe a challenging project where you used %s and explain the technical decisions you made?", tokens[0], tokens[0])
	}
	return "Looking at your experience, can you walk me through the most technically challenging project you've worked on and explain your approach?"
}

// fallbackFollowupQuestion 追问兜底：按题号换不同的技术词和模板
func fallbackFollowupQuestion(resumeSummary string, questionNumber int) string {
	tokens := extractTechTokens(resumeSummary)

	switch {
	case questionNumber <= 2 && len(tokens) > 0:
		return fmt.Sprintf("Can you explain a specific technical challenge you faced while working with %s and how you solved it?", tokens[0])
	case questionNumber <= 3 && len(tokens) > 1:
		return fmt.Sprintf("Your resume mentions %s. What's the most complex feature or system you've built using it?", tokens[1])
	case questionNumber <= 4 && len(tokens) > 0:
		idx := 2
		if idx > len(tokens)-1 {
			idx = len(tokens) - 1
		}
		return fmt.Sprintf("How would you approach debugging a critical performance issue in a %s application?", tokens[idx])
	case questionNumber <= 5 && len(tokens) > 0:
		limit := 3
		if len(tokens) < limit {
			limit = len(tokens)
		}
		return fmt.Sprintf("Given your experience with %s, how do you ensure code quality and maintainability in your projects?", strings.Join(tokens[:limit], ", "))
	default:
		return "Based on your technical background, what architectural decisions would you make for a new project and why?"
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
