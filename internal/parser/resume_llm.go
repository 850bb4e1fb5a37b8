package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/llm"
	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/tracing"
	"recruit-agent-go/internal/types"
)

// LLM抽取结果的结构校验：字段集合固定，串/数组两种形态都接受。
// 模型经常把列表字段返回成逗号分隔字符串，这里不做硬性限制，
// 归一化交给 normalize 阶段。
const resumeSchemaJSON = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"full_name":        {"type": ["string", "null"]},
		"email":            {"type": ["string", "null"]},
		"phone":            {"type": ["string", "null"]},
		"location":         {"type": ["string", "null"]},
		"date_of_birth":    {"type": ["string", "null"]},
		"nationality":      {"type": ["string", "null"]},
		"summary":          {"type": ["string", "null"]},
		"skills":           {"type": ["string", "array", "null"]},
		"total_experience": {"type": ["string", "number", "null"]},
		"current_position": {"type": ["string", "null"]},
		"current_company":  {"type": ["string", "null"]},
		"education":        {"type": ["string", "array", "null"]},
		"experience":       {"type": ["string", "array", "null"]},
		"certifications":   {"type": ["string", "array", "null"]},
		"languages":        {"type": ["string", "array", "null"]},
		"portfolio_url":    {"type": ["string", "null"]},
		"linkedin":         {"type": ["string", "null"]},
		"github":           {"type": ["string", "null"]},
		"references":       {"type": ["string", "null"]}
	}
}`

const cvParseSystemPrompt = "You are a professional CV parser. Return only valid JSON."

const cvParsePromptTemplate = `You are an expert CV/Resume parser. Extract ALL structured information from the following CV text.

Return a JSON object with these EXACT fields (extract all available data):
- full_name: candidate's full name
- email: email address
- phone: phone number with country code if available
- location: current location/city/country
- date_of_birth: date of birth if mentioned
- nationality: nationality if mentioned
- summary: professional summary or objective (2-3 sentences)
- skills: comma-separated list of ALL technical and soft skills found
- total_experience: total years of professional experience (e.g., "5 years")
- current_position: current job title
- current_company: current company name
- education: formatted education history with degree, institution, and year (e.g., "B.S. Computer Science, MIT (2020)")
- certifications: comma-separated list of ALL certifications
- languages: comma-separated list of ALL languages spoken
- portfolio_url: personal website or portfolio URL
- linkedin: LinkedIn profile URL
- github: GitHub profile URL
- references: reference information or "Available upon request"

CV Text:
%s

IMPORTANT: Extract EVERY piece of information available. Return ONLY valid JSON, no markdown, no code blocks.`

// CVParser 简历解析器：多模态LLM → 文本LLM → 离线启发式 的三级级联。
// 每级失败都降级到下一级，永远返回结构完整的结果而不是错误。
type CVParser struct {
	extractor  *DocumentExtractor
	chain      *llm.ModelChain      // 文本LLM链，可为nil（纯离线模式）
	multimodal *MultimodalCVParser  // 图像能力路径，可为nil
	schema     *gojsonschema.Schema
	maxChars    int
	temperature float64
	maxTokens   int
	tracer      trace.Tracer
}

// CVParserOption 解析器配置选项
type CVParserOption func(*CVParser)

// WithLLMChain 配置文本LLM模型链
func WithLLMChain(chain *llm.ModelChain) CVParserOption {
	return func(p *CVParser) {
		p.chain = chain
	}
}

// WithMultimodalParser 配置多模态文档解析路径
func WithMultimodalParser(m *MultimodalCVParser) CVParserOption {
	return func(p *CVParser) {
		p.multimodal = m
	}
}

// WithParseLimits 配置送入Prompt的最大字符数与生成参数
func WithParseLimits(maxChars int, temperature float64, maxTokens int) CVParserOption {
	return func(p *CVParser) {
		if maxChars > 0 {
			p.maxChars = maxChars
		}
		p.temperature = temperature
		p.maxTokens = maxTokens
	}
}

// NewCVParser 创建简历解析器
func NewCVParser(extractor *DocumentExtractor, options ...CVParserOption) (*CVParser, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(resumeSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to compile resume schema: %w", err)
	}

	p := &CVParser{
		extractor:   extractor,
		schema:      schema,
		maxChars:    constants.LLMParseMaxChars,
		temperature: 0.1,
		maxTokens:   2000,
		tracer:      otel.Tracer("cv-parser"),
	}
	for _, option := range options {
		option(p)
	}
	return p, nil
}

// ParseText 对已提取的纯文本做解析。
// useLLM=false 时只走离线启发式。
func (p *CVParser) ParseText(ctx context.Context, text string, useLLM bool) *types.ParsedResume {
	ctx, span := p.tracer.Start(ctx, "CVParser.ParseText")
	defer span.End()

	base := ParseResumeText(text)

	if !useLLM || p.chain == nil {
		span.SetAttributes(attribute.String("parse.method", base.ParsingMethod))
		return base
	}

	llmResume, err := p.parseWithLLM(ctx, text)
	if err != nil {
		// LLM路径整体失败：回落到启发式结果并打上降级标记
		tracing.RecordErrorWithInfo(span, err, tracing.ErrorTypeLLM, attribute.String("error.detail", "LLM简历解析失败，使用启发式结果"))
		logger.Ctx(ctx).Warn().Err(err).Msg("LLM简历解析失败，回落到启发式路径")
		base.ParsingMethod = constants.ParsingMethodHeuristicFallback
		base.Error = err.Error()
		return base
	}

	merged := mergeResumes(llmResume, base)
	merged.ParsingMethod = constants.ParsingMethodLLM
	span.SetAttributes(attribute.String("parse.method", merged.ParsingMethod))
	logger.Ctx(ctx).Info().Str("extracted", formatFieldCount(merged)).Msg("LLM简历解析成功")
	return merged
}

// ParseDocument 从原始文档字节开始的完整级联解析。
func (p *CVParser) ParseDocument(ctx context.Context, data []byte, filename string, useLLM bool) *types.ParsedResume {
	ctx, span := p.tracer.Start(ctx, "CVParser.ParseDocument",
		trace.WithAttributes(
			attribute.String("parse.filename", filename),
			attribute.Int("parse.size_bytes", len(data)),
		))
	defer span.End()

	// 图像能力路径优先：能读扫描件和表格，纯文本路径读不了
	if useLLM && p.multimodal != nil {
		if resume, err := p.multimodal.Parse(ctx, data, filename); err == nil {
			span.SetAttributes(attribute.String("parse.method", resume.ParsingMethod))
			return resume
		} else {
			tracing.RecordErrorWithInfo(span, err, tracing.ErrorTypeLLM, attribute.String("error.detail", "多模态解析失败，级联到文本路径"))
			logger.Ctx(ctx).Warn().Err(err).Msg("多模态简历解析失败，级联到文本LLM路径")
		}
	}

	text := p.extractor.Extract(ctx, data, filename)
	if strings.TrimSpace(text) == "" {
		// 提取不出文本且多模态也失败：返回可手工填写的空表单
		span.SetAttributes(attribute.String("parse.method", constants.ParsingMethodFailed))
		return types.EmptyParsedResume(constants.ParsingMethodFailed, "could not extract text from document")
	}

	return p.ParseText(ctx, text, useLLM)
}

// parseWithLLM 调用文本模型链做结构化抽取
func (p *CVParser) parseWithLLM(ctx context.Context, text string) (*types.ParsedResume, error) {
	truncated := text
	if len(truncated) > p.maxChars {
		truncated = truncated[:p.maxChars]
	}

	prompt := fmt.Sprintf(cvParsePromptTemplate, truncated)
	temp := p.temperature
	result, err := p.chain.CompleteSimple(ctx, cvParseSystemPrompt, prompt, llm.GenerateParams{
		Temperature: &temp,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return nil, err
	}

	resume, err := p.decodeResumeJSON(result.Content)
	if err != nil {
		return nil, fmt.Errorf("model %s returned unusable JSON: %w", result.Model, err)
	}
	return resume, nil
}

// decodeResumeJSON 清洗、修复并校验模型输出，归一化为ParsedResume
func (p *CVParser) decodeResumeJSON(raw string) (*types.ParsedResume, error) {
	cleaned := llm.StripCodeFences(raw)
	if obj := llm.ExtractJSONObject(cleaned); obj != "" {
		cleaned = obj
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		// 常见故障：字符串里未转义的引号。修复后再试一次。
		repaired := llm.SanitizeJSON(cleaned)
		if err2 := json.Unmarshal([]byte(repaired), &fields); err2 != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		cleaned = repaired
	}

	validation, err := p.schema.Validate(gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}
	if !validation.Valid() {
		var issues []string
		for _, e := range validation.Errors() {
			issues = append(issues, e.String())
		}
		return nil, fmt.Errorf("response does not match resume schema: %s", strings.Join(issues, "; "))
	}

	return resumeFromFields(fields), nil
}

// resumeFromFields 将宽松的字段map归一化为强类型结果
func resumeFromFields(fields map[string]interface{}) *types.ParsedResume {
	return &types.ParsedResume{
		FullName:        asString(fields["full_name"]),
		Email:           asString(fields["email"]),
		Phone:           asString(fields["phone"]),
		Location:        asString(fields["location"]),
		DateOfBirth:     asString(fields["date_of_birth"]),
		Nationality:     asString(fields["nationality"]),
		Summary:         asString(fields["summary"]),
		Skills:          asList(fields["skills"]),
		Education:       asList(fields["education"]),
		Experience:      asList(fields["experience"]),
		CurrentPosition: asString(fields["current_position"]),
		CurrentCompany:  asString(fields["current_company"]),
		TotalExperience: asString(fields["total_experience"]),
		Languages:       asList(fields["languages"]),
		Certifications:  asList(fields["certifications"]),
		References:      asString(fields["references"]),
		LinkedIn:        asString(fields["linkedin"]),
		GitHub:          asString(fields["github"]),
		Portfolio:       asString(fields["portfolio_url"]),
	}
}

// mergeResumes 合并LLM结果与启发式结果，LLM字段优先，空缺由启发式补齐
func mergeResumes(primary, secondary *types.ParsedResume) *types.ParsedResume {
	merged := *primary
	pickStr := func(a, b string) string {
		if strings.TrimSpace(a) != "" {
			return a
		}
		return b
	}
	pickList := func(a, b []string) []string {
		if len(a) > 0 {
			return a
		}
		if b == nil {
			return []string{}
		}
		return b
	}

	merged.FullName = pickStr(primary.FullName, secondary.FullName)
	merged.Email = pickStr(primary.Email, secondary.Email)
	merged.Phone = pickStr(primary.Phone, secondary.Phone)
	merged.Location = pickStr(primary.Location, secondary.Location)
	merged.DateOfBirth = pickStr(primary.DateOfBirth, secondary.DateOfBirth)
	merged.Nationality = pickStr(primary.Nationality, secondary.Nationality)
	merged.Summary = pickStr(primary.Summary, secondary.Summary)
	merged.Skills = pickList(primary.Skills, secondary.Skills)
	merged.Education = pickList(primary.Education, secondary.Education)
	merged.Experience = pickList(primary.Experience, secondary.Experience)
	merged.CurrentPosition = pickStr(primary.CurrentPosition, secondary.CurrentPosition)
	merged.CurrentCompany = pickStr(primary.CurrentCompany, secondary.CurrentCompany)
	merged.TotalExperience = pickStr(primary.TotalExperience, secondary.TotalExperience)
	merged.Languages = pickList(primary.Languages, secondary.Languages)
	merged.Certifications = pickList(primary.Certifications, secondary.Certifications)
	merged.References = pickStr(primary.References, secondary.References)
	merged.LinkedIn = pickStr(primary.LinkedIn, secondary.LinkedIn)
	merged.GitHub = pickStr(primary.GitHub, secondary.GitHub)
	merged.Portfolio = pickStr(primary.Portfolio, secondary.Portfolio)
	return &merged
}

// asString 接受string/数值/nil
func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", t), "0"), ".")
	default:
		return ""
	}
}

// asList 接受数组、逗号分隔字符串或nil
func asList(v interface{}) []string {
	switch t := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(t, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
		if out == nil {
			return []string{}
		}
		return out
	default:
		return []string{}
	}
}
