package types

// ChatMessage 面试对话中的一条消息。
// Role 对外允许 interviewer/interviewee 等宽松取值，
// 发往模型前会被归一化到 system/user/assistant 三种。
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QuestionResult 生成面试问题的结果。
// 无论远端模型是否可用，调用方拿到的都是结构完整的结果：
// 全部模型失败时 Fallback 为 true，Question 来自本地兜底模板。
type QuestionResult struct {
	Success        bool   `json:"success"`
	Question       string `json:"question"`
	Type           string `json:"type,omitempty"`
	FocusArea      string `json:"focus_area,omitempty"`
	CVReference    string `json:"cv_reference,omitempty"`
	QuestionNumber int    `json:"question_number,omitempty"`
	Model          string `json:"model,omitempty"`
	Fallback       bool   `json:"fallback,omitempty"`
}

// AnswerEvaluation 单题回答的评估结果，Score 始终被钳制在 [1,10]。
type AnswerEvaluation struct {
	Success      bool     `json:"success"`
	Score        int      `json:"score"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	Model        string   `json:"model,omitempty"`
	Fallback     bool     `json:"fallback,omitempty"`
}

// SessionEvaluation 整场面试的终评。
type SessionEvaluation struct {
	Success             bool     `json:"success"`
	OverallScore        int      `json:"overall_score"`
	Strengths           []string `json:"strengths"`
	AreasForImprovement []string `json:"areas_for_improvement"`
	CVVerification      string   `json:"cv_verification,omitempty"` // verified / partial / unverified
	JobFit              string   `json:"job_fit,omitempty"`         // excellent / good / fair / poor
	Recommendation      string   `json:"recommendation"`            // recommend / consider / not_recommend
	Summary             string   `json:"summary"`
	AnswerScores        []int    `json:"answer_scores,omitempty"`
	Model               string   `json:"model,omitempty"`
	Fallback            bool     `json:"fallback,omitempty"`
}
