package parser

import (
	"fmt"
	"regexp"
	"strings"

	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/types"
)

// 技能词表：按词面做大小写无关的子串匹配
var skillsVocabulary = []string{
	// 编程语言
	"python", "java", "javascript", "typescript", "c++", "c#", "ruby", "php",
	"swift", "kotlin", "go", "rust", "scala", "matlab", "perl",

	// Web技术
	"html", "css", "react", "angular", "vue", "node.js", "express", "django",
	"flask", "fastapi", "spring", "asp.net", "laravel", "next.js", "nuxt.js",

	// 数据库
	"sql", "mysql", "postgresql", "mongodb", "redis", "cassandra", "oracle",
	"sqlite", "dynamodb", "firebase", "elasticsearch",

	// 云与DevOps
	"aws", "azure", "gcp", "docker", "kubernetes", "jenkins", "gitlab",
	"github actions", "terraform", "ansible", "ci/cd", "devops",

	// 数据科学与AI
	"machine learning", "deep learning", "nlp", "computer vision", "tensorflow",
	"pytorch", "scikit-learn", "pandas", "numpy", "keras", "opencv",

	// 移动端
	"android", "ios", "react native", "flutter", "xamarin",

	// 其它
	"git", "rest api", "graphql", "microservices", "agile", "scrum",
	"jira", "linux", "windows", "macos", "blockchain", "solidity",
}

var educationKeywords = []string{
	"bachelor", "master", "phd", "doctorate", "mba", "b.tech", "m.tech",
	"b.sc", "m.sc", "b.e", "m.e", "diploma", "associate", "undergraduate",
	"graduate", "postgraduate", "university", "college", "institute",
}

var experienceHeadings = []string{
	"experience", "work experience", "employment", "professional experience",
	"work history", "career", "positions held",
}

var commonLanguages = []string{
	"english", "spanish", "french", "german", "chinese", "mandarin", "japanese",
	"korean", "arabic", "hindi", "portuguese", "russian", "italian", "dutch",
	"turkish", "vietnamese", "urdu", "bengali",
}

var commonNationalities = []string{
	"American", "British", "Canadian", "Australian", "Indian", "Chinese",
	"German", "French", "Italian", "Spanish", "Japanese", "Brazilian",
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

	// 电话模式按严格程度排序，第一个有效数字数≥10的匹配胜出
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\+?\d{1,4}[-.\s]?\(?\d{1,4}\)?[-.\s]?\d{1,4}[-.\s]?\d{1,9}`),
		regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`),
		regexp.MustCompile(`\+?\d{10,15}`),
		regexp.MustCompile(`\d{3}[-.\s]\d{3}[-.\s]\d{4}`),
	}
	phoneStripPattern = regexp.MustCompile(`[-.\s()]`)

	degreePattern = regexp.MustCompile(`(?i)(bachelor|master|phd|b\.tech|m\.tech|b\.sc|m\.sc|b\.e|m\.e|mba|diploma)[\w\s.]*`)
	yearPattern   = regexp.MustCompile(`\b(19|20)\d{2}\b`)

	experienceYearsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)\+?\s*years?\s*(?:of\s+)?experience`),
		regexp.MustCompile(`(?i)experience\s*(?:of\s+)?(\d+)\+?\s*years?`),
		regexp.MustCompile(`(?i)(\d+)\+?\s*yrs`),
	}

	linkedinPattern  = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?linkedin\.com/in/[\w-]+`)
	githubPattern    = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?github\.com/[\w-]+`)
	genericURLPattern = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?[\w-]+\.[a-z]{2,}(?:/[\w./-]*)?`)

	locationPattern = regexp.MustCompile(`(?:Address|Location|City)[\s:]+([A-Z][a-z]+(?:,?\s+[A-Z][a-z]+)*)`)

	dobPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:DOB|Date of Birth|Born)[\s:]+(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`),
		regexp.MustCompile(`(?i)(?:DOB|Date of Birth|Born)[\s:]+(\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{4})`),
		regexp.MustCompile(`\b(\d{1,2}[-/]\d{1,2}[-/]\d{4})\b`),
	}

	nationalityPattern = regexp.MustCompile(`(?:Nationality|Citizen)[\s:]+([A-Z][a-z]+)`)

	jobTitleTokens = []string{"developer", "engineer", "manager", "analyst", "designer", "consultant", "architect", "scientist", "lead"}
	companyTokens  = []string{"company", "corporation", "technologies", "solutions", "inc", "ltd", "llc", "pvt"}
)

// ExtractEmail 返回文本中第一个邮箱地址
func ExtractEmail(text string) string {
	return emailPattern.FindString(text)
}

// ExtractPhone 依次尝试各电话模式，接受第一个有效数字数不少于10位的匹配
func ExtractPhone(text string) string {
	for _, p := range phonePatterns {
		for _, m := range p.FindAllString(text, -1) {
			stripped := phoneStripPattern.ReplaceAllString(m, "")
			if len(strings.TrimPrefix(stripped, "+")) >= 10 {
				return strings.TrimSpace(m)
			}
		}
	}
	return ""
}

// ExtractName 在前500个字符中找人名。
// 没有NER模型时的近似：取最前面一行由2~4个首字母大写单词组成、
// 不含数字和@的行当作姓名。
func ExtractName(text string) string {
	head := text
	if len(head) > 500 {
		head = head[:500]
	}
	for _, line := range strings.Split(head, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.ContainsAny(line, "@0123456789:") {
			continue
		}
		words := strings.Fields(line)
		if len(words) < 2 || len(words) > 4 {
			continue
		}
		allCapitalized := true
		for _, w := range words {
			r := []rune(w)
			if r[0] < 'A' || r[0] > 'Z' {
				allCapitalized = false
				break
			}
		}
		if allCapitalized {
			return line
		}
	}
	return ""
}

// ExtractSkills 对技能词表做大小写无关匹配，去重后返回Title Case形式
func ExtractSkills(text string) []string {
	lower := strings.ToLower(text)
	var skills []string
	seen := make(map[string]bool)
	for _, kw := range skillsVocabulary {
		if strings.Contains(lower, kw) {
			display := titleCase(kw)
			if !seen[display] {
				seen[display] = true
				skills = append(skills, display)
			}
		}
	}
	return skills
}

// ExtractEducation 从第一个教育相关标题行开始扫描至多20行，
// 组合学位、年份、院校；凑够2个字段即记为一条，最多3条。
func ExtractEducation(text string) []string {
	lines := strings.Split(text, "\n")
	start := -1
	for i, line := range lines {
		l := strings.ToLower(line)
		if strings.Contains(l, "education") || strings.Contains(l, "academic") || strings.Contains(l, "qualification") {
			start = i
			break
		}
	}
	if start == -1 {
		return nil
	}

	var entries []string
	var degree, year, institution string
	flush := func() {
		fields := 0
		for _, f := range []string{degree, institution, year} {
			if f != "" {
				fields++
			}
		}
		if fields >= 2 {
			parts := []string{}
			if degree != "" {
				parts = append(parts, degree)
			}
			if institution != "" {
				parts = append(parts, institution)
			}
			if year != "" {
				parts = append(parts, "("+year+")")
			}
			entries = append(entries, strings.Join(parts, " "))
		}
		degree, year, institution = "", "", ""
	}

	for i := start + 1; i < len(lines) && i <= start+20 && len(entries) < 3; i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if m := degreePattern.FindString(line); m != "" {
			if degree != "" {
				flush()
			}
			degree = strings.TrimSpace(m)
		}
		if ms := yearPattern.FindAllString(line, -1); len(ms) > 0 {
			year = ms[len(ms)-1]
		}
		l := strings.ToLower(line)
		if strings.Contains(l, "university") || strings.Contains(l, "college") || strings.Contains(l, "institute") {
			institution = line
		}
	}
	flush()
	return entries
}

// ExtractExperienceYears 提取总工作年限，返回"N years"形式
func ExtractExperienceYears(text string) string {
	for _, p := range experienceYearsPatterns {
		if m := p.FindStringSubmatch(text); len(m) >= 2 {
			return m[1] + " years"
		}
	}
	return ""
}

// workEntry 工作经历行扫描的中间结果
type workEntry struct {
	title    string
	company  string
	duration string
}

// extractWorkEntries 从经历标题行开始扫描至多30行，
// 按行分类为职位/公司/时段，最多3条。
func extractWorkEntries(text string) []workEntry {
	lines := strings.Split(text, "\n")
	start := -1
	for i, line := range lines {
		l := strings.ToLower(line)
		for _, h := range experienceHeadings {
			if strings.Contains(l, h) {
				start = i
				break
			}
		}
		if start != -1 {
			break
		}
	}
	if start == -1 {
		return nil
	}

	var entries []workEntry
	var cur workEntry
	flush := func() {
		if cur.title != "" || cur.company != "" {
			entries = append(entries, cur)
		}
		cur = workEntry{}
	}

	for i := start + 1; i < len(lines) && i <= start+30 && len(entries) < 3; i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		l := strings.ToLower(line)

		if containsAny(l, jobTitleTokens) {
			if cur.title != "" {
				flush()
			}
			cur.title = line
			continue
		}
		if containsAny(l, companyTokens) {
			cur.company = line
			continue
		}
		if years := yearPattern.FindAllString(line, -1); len(years) >= 2 {
			cur.duration = years[0] + " - " + years[1]
		} else if len(years) == 1 && strings.Contains(l, "present") {
			cur.duration = years[0] + " - Present"
		}
	}
	flush()
	if len(entries) > 3 {
		entries = entries[:3]
	}
	return entries
}

// ExtractExperience 将工作经历格式化为"职位 | 公司 | 时段"的列表
func ExtractExperience(text string) []string {
	var out []string
	for _, e := range extractWorkEntries(text) {
		parts := []string{}
		if e.title != "" {
			parts = append(parts, e.title)
		}
		if e.company != "" {
			parts = append(parts, e.company)
		}
		if e.duration != "" {
			parts = append(parts, e.duration)
		}
		out = append(out, strings.Join(parts, " | "))
	}
	return out
}

// ExtractLinkedIn 提取LinkedIn个人主页链接
func ExtractLinkedIn(text string) string {
	return linkedinPattern.FindString(text)
}

// ExtractGitHub 提取GitHub个人主页链接
func ExtractGitHub(text string) string {
	return githubPattern.FindString(text)
}

// ExtractPortfolio 提取个人网站链接：排除社交平台域名、
// 排除邮箱误匹配，长度需大于5。
func ExtractPortfolio(text string) string {
	excluded := []string{"linkedin.com", "github.com", "facebook.com", "twitter.com", "instagram.com"}
	for _, m := range genericURLPattern.FindAllString(text, -1) {
		lower := strings.ToLower(m)
		if len(m) <= 5 || strings.Contains(m, "@") {
			continue
		}
		skip := false
		for _, d := range excluded {
			if strings.Contains(lower, d) {
				skip = true
				break
			}
		}
		// 纯邮箱域名的尾巴也会被URL模式击中，要求含协议、www或路径
		if !skip && (strings.HasPrefix(lower, "http") || strings.HasPrefix(lower, "www.") || strings.Contains(m, "/")) {
			return m
		}
	}
	return ""
}

// ExtractLocation 先找"Address/Location/City:"标注，
// 其次在前1000个字符内找"City, Country"形式的行。
func ExtractLocation(text string) string {
	if m := locationPattern.FindStringSubmatch(text); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	head := text
	if len(head) > 1000 {
		head = head[:1000]
	}
	cityCountry := regexp.MustCompile(`^[A-Z][a-z]+(?: [A-Z][a-z]+)*,\s*[A-Z][a-z]+(?: [A-Z][a-z]+)*$`)
	for _, line := range strings.Split(head, "\n") {
		line = strings.TrimSpace(line)
		if cityCountry.MatchString(line) {
			return line
		}
	}
	return ""
}

// ExtractDateOfBirth 依次尝试DOB标注、英文月份、裸日期三种形式
func ExtractDateOfBirth(text string) string {
	for _, p := range dobPatterns {
		if m := p.FindStringSubmatch(text); len(m) >= 2 {
			return m[1]
		}
	}
	return ""
}

// ExtractNationality 先找"Nationality:"标注，再扫常见国籍词表
func ExtractNationality(text string) string {
	if m := nationalityPattern.FindStringSubmatch(text); len(m) == 2 {
		return m[1]
	}
	for _, n := range commonNationalities {
		if regexp.MustCompile(`\b` + n + `\b`).MatchString(text) {
			return n
		}
	}
	return ""
}

// ExtractSummary 取自我介绍标题后的至多5行，遇到下一个节标题即停
func ExtractSummary(text string) string {
	lines := strings.Split(text, "\n")
	start := -1
	for i, line := range lines {
		l := strings.ToLower(strings.TrimSpace(line))
		if strings.Contains(l, "summary") || strings.Contains(l, "objective") ||
			strings.Contains(l, "profile") || strings.Contains(l, "about") || strings.Contains(l, "overview") {
			start = i
			break
		}
	}
	if start == -1 {
		return ""
	}

	var collected []string
	for i := start + 1; i < len(lines) && len(collected) < 5; i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			if len(collected) > 0 {
				break
			}
			continue
		}
		l := strings.ToLower(line)
		if strings.Contains(l, "experience") || strings.Contains(l, "education") ||
			strings.Contains(l, "skills") || strings.Contains(l, "projects") {
			break
		}
		collected = append(collected, line)
	}
	return strings.Join(collected, " ")
}

// ExtractCurrentPosition 当前职位：先找含currently/present等标记的职位行，
// 否则取第一条工作经历的职位。
func ExtractCurrentPosition(text string) string {
	for _, line := range strings.Split(text, "\n") {
		l := strings.ToLower(line)
		if (strings.Contains(l, "currently") || strings.Contains(l, "present") ||
			strings.Contains(l, "current position") || strings.Contains(l, "working as")) &&
			containsAny(l, jobTitleTokens) {
			return strings.TrimSpace(line)
		}
	}
	if entries := extractWorkEntries(text); len(entries) > 0 {
		return entries[0].title
	}
	return ""
}

// ExtractCurrentCompany 仅当第一条经历的时段含Present时，认定其公司为当前公司
func ExtractCurrentCompany(text string) string {
	entries := extractWorkEntries(text)
	if len(entries) > 0 && strings.Contains(strings.ToLower(entries[0].duration), "present") {
		return entries[0].company
	}
	return ""
}

// ExtractLanguages 从语言标题行后扫描至多10行匹配常见语言，缺省English
func ExtractLanguages(text string) []string {
	lines := strings.Split(text, "\n")
	start := -1
	for i, line := range lines {
		if strings.Contains(strings.ToLower(line), "language") {
			start = i
			break
		}
	}
	if start == -1 {
		return []string{"English"}
	}

	var langs []string
	seen := make(map[string]bool)
	for i := start; i < len(lines) && i <= start+10; i++ {
		l := strings.ToLower(lines[i])
		for _, lang := range commonLanguages {
			if strings.Contains(l, lang) {
				display := titleCase(lang)
				if !seen[display] {
					seen[display] = true
					langs = append(langs, display)
				}
			}
		}
	}
	if len(langs) == 0 {
		return []string{"English"}
	}
	return langs
}

// ExtractCertifications 从认证标题行后收集至多5条，遇到下一节标题停止
func ExtractCertifications(text string) []string {
	lines := strings.Split(text, "\n")
	start := -1
	for i, line := range lines {
		l := strings.ToLower(line)
		if strings.Contains(l, "certification") || strings.Contains(l, "certificate") || strings.Contains(l, "licenses") {
			start = i
			break
		}
	}
	if start == -1 {
		return nil
	}

	var certs []string
	for i := start + 1; i < len(lines) && i <= start+9 && len(certs) < 5; i++ {
		line := strings.TrimSpace(lines[i])
		if len(line) <= 5 {
			continue
		}
		l := strings.ToLower(line)
		if strings.Contains(l, "experience") || strings.Contains(l, "education") ||
			strings.Contains(l, "skills") || strings.Contains(l, "language") ||
			strings.Contains(l, "reference") {
			break
		}
		certs = append(certs, line)
	}
	return certs
}

// ExtractReferences 识别"references available"类套话，否则收集reference节内容
func ExtractReferences(text string) string {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "references available") || strings.Contains(lower, "reference available") {
		return "Available upon request"
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.Contains(strings.ToLower(line), "reference") {
			var collected []string
			for j := i + 1; j < len(lines) && len(collected) < 3; j++ {
				l := strings.TrimSpace(lines[j])
				if l == "" {
					break
				}
				collected = append(collected, l)
			}
			return strings.Join(collected, "; ")
		}
	}
	return ""
}

// ParseResumeText 运行全部启发式抽取器，单个抽取器失败不影响其它字段。
// 全程离线，不依赖任何外部服务，是解析链路的最终兜底。
func ParseResumeText(text string) *types.ParsedResume {
	if strings.TrimSpace(text) == "" {
		return types.EmptyParsedResume(constants.ParsingMethodFailed, "empty document text")
	}

	r := &types.ParsedResume{
		FullName:        ExtractName(text),
		Email:           ExtractEmail(text),
		Phone:           ExtractPhone(text),
		Location:        ExtractLocation(text),
		DateOfBirth:     ExtractDateOfBirth(text),
		Nationality:     ExtractNationality(text),
		Summary:         ExtractSummary(text),
		Skills:          ExtractSkills(text),
		Education:       ExtractEducation(text),
		Experience:      ExtractExperience(text),
		CurrentPosition: ExtractCurrentPosition(text),
		CurrentCompany:  ExtractCurrentCompany(text),
		TotalExperience: ExtractExperienceYears(text),
		Languages:       ExtractLanguages(text),
		Certifications:  ExtractCertifications(text),
		References:      ExtractReferences(text),
		LinkedIn:        ExtractLinkedIn(text),
		GitHub:          ExtractGitHub(text),
		Portfolio:       ExtractPortfolio(text),
		ParsingMethod:   constants.ParsingMethodHeuristic,
	}
	if r.Skills == nil {
		r.Skills = []string{}
	}
	if r.Education == nil {
		r.Education = []string{}
	}
	if r.Experience == nil {
		r.Experience = []string{}
	}
	if r.Certifications == nil {
		r.Certifications = []string{}
	}
	return r
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// titleCase 简易Title Case：每个空格分隔的词首字母大写
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// formatFieldCount 统计非空字段数，用于日志
func formatFieldCount(r *types.ParsedResume) string {
	count := 0
	for _, s := range []string{r.FullName, r.Email, r.Phone, r.Location, r.Summary, r.TotalExperience, r.LinkedIn, r.GitHub} {
		if s != "" {
			count++
		}
	}
	for _, l := range [][]string{r.Skills, r.Education, r.Experience, r.Languages, r.Certifications} {
		if len(l) > 0 {
			count++
		}
	}
	return fmt.Sprintf("%d fields", count)
}
