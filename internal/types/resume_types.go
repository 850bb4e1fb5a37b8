package types // 项目的公共数据类型

// ParsedResume 从简历文本中抽取出的结构化字段。
// 所有字段都允许为空：某个抽取器失败不会影响其它字段。
type ParsedResume struct {
	FullName        string            `json:"full_name"`
	Email           string            `json:"email"`
	Phone           string            `json:"phone"`
	Location        string            `json:"location"`
	DateOfBirth     string            `json:"date_of_birth,omitempty"`
	Nationality     string            `json:"nationality,omitempty"`
	Summary         string            `json:"summary"`
	Skills          []string          `json:"skills"`
	Education       []string          `json:"education"`
	Experience      []string          `json:"experience"`
	CurrentPosition string            `json:"current_position,omitempty"`
	CurrentCompany  string            `json:"current_company,omitempty"`
	TotalExperience string            `json:"total_experience,omitempty"`
	Languages       []string          `json:"languages"`
	Certifications  []string          `json:"certifications"`
	References      string            `json:"references,omitempty"`
	LinkedIn        string            `json:"linkedin,omitempty"`
	GitHub          string            `json:"github,omitempty"`
	Portfolio       string            `json:"portfolio,omitempty"`
	Projects        []string          `json:"projects,omitempty"`
	Awards          []string          `json:"awards,omitempty"`
	Publications    []string          `json:"publications,omitempty"`
	VolunteerWork   []string          `json:"volunteer_work,omitempty"`
	Interests       []string          `json:"interests,omitempty"`
	Memberships     []string          `json:"memberships,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`

	// ParsingMethod 记录本结果来自哪条抽取路径，便于审计
	ParsingMethod string `json:"parsing_method"`
	// Error 解析彻底失败时的说明（ParsingMethod == "failed" 时才有值）
	Error string `json:"error,omitempty"`
}

// EmptyParsedResume 返回一个全部字段为空、可直接回填表单的解析结果。
// 解析全部失败时仍然给调用方一个结构完整的对象，而不是报错。
func EmptyParsedResume(method string, errMsg string) *ParsedResume {
	return &ParsedResume{
		Skills:         []string{},
		Education:      []string{},
		Experience:     []string{},
		Languages:      []string{},
		Certifications: []string{},
		ParsingMethod:  method,
		Error:          errMsg,
	}
}

// CompareResult 一次JD与简历的相似度比较结果。
type CompareResult struct {
	SimilarityScore      float64 `json:"similarity_score"`      // [0,1]
	SimilarityPercentage float64 `json:"similarity_percentage"` // score×100，仅在边界处换算
	InterviewLink        string  `json:"interview_link,omitempty"`
}

// ScoredApplication 向量检索返回的单条投递。
type ScoredApplication struct {
	ApplicationID string            `json:"application_id"`
	Score         float64           `json:"score"`
	CVText        string            `json:"cv_text,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}
