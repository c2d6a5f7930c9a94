package heuristics

import (
	"regexp"
	"strings"

	"resumate/internal/parser"
)

// 各分区的默认基线置信度。
const (
	DefaultWorkBaseline      = 70.0
	DefaultEducationBaseline = 70.0
	DefaultSkillsBaseline    = 75.0
)

const maxSectionEntries = 10

var (
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	urlRe   = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)

	// 电话号码模式按优先级排列，命中即止。
	phoneRes = []*regexp.Regexp{
		regexp.MustCompile(`\+\d{1,3}[-.\s]\d{3}[-.\s]\d{4}`),
		regexp.MustCompile(`\+?\d{1,3}[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`),
		regexp.MustCompile(`\(\d{3}\)\s*\d{3}[-.\s]?\d{4}`),
		regexp.MustCompile(`\d{3}[-.\s]\d{3}[-.\s]\d{4}`),
	}

	trailingPunctRe = regexp.MustCompile(`[.,;:!?]+$`)
	spaceRe         = regexp.MustCompile(`\s+`)
	companyRe       = regexp.MustCompile(`(?i)(?:at|@)\s+([A-Z][A-Za-z\s&]+?)(?:\s+(?:from|since|in)|[,.]|$)`)
	wordRe          = regexp.MustCompile(`[a-z0-9+#./]+`)
)

var jobKeywords = []string{
	"engineer", "developer", "manager", "director", "architect",
	"analyst", "consultant", "specialist", "lead", "senior", "junior",
	"designer", "administrator", "coordinator", "assistant", "chief",
	"officer", "president", "founder", "owner", "partner", "head",
}

var titleKeywords = []string{
	"engineer", "developer", "manager", "director", "architect",
	"analyst", "consultant", "specialist", "lead", "senior", "junior",
	"designer", "administrator", "coordinator", "assistant",
	"software", "data", "product", "project", "technical",
}

var degreeKeywords = []string{
	"bachelor", "master", "phd", "doctor", "mba", "degree",
	"b.s.", "m.s.", "b.a.", "m.a.", "diploma", "certificate",
	"associate", "graduate", "undergraduate",
}

var technicalSkills = []string{
	"python", "java", "javascript", "typescript", "react", "angular", "vue",
	"node", "nodejs", "sql", "nosql", "mysql", "postgresql", "mongodb",
	"aws", "azure", "gcp", "docker", "kubernetes", "git", "github",
	"linux", "html", "css", "json", "xml", "api", "rest", "graphql",
	"django", "flask", "fastapi", "spring", "express", "next.js",
	"tensorflow", "pytorch", "nlp", "machine learning", "ai", "data science",
	"pandas", "numpy", "spark", "hadoop", "scala", "go", "rust", "c++",
	"ci/cd", "devops", "agile", "scrum", "jira", "confluence",
}

var softSkills = []string{
	"leadership", "communication", "teamwork", "problem solving",
	"project management", "agile", "scrum", "collaboration",
	"analytical", "critical thinking", "creativity", "adaptability",
	"time management", "organization", "presentation", "mentoring",
}

var certificationKeywords = []string{
	"aws certified", "azure certified", "gcp certified",
	"pmp", "scrum master", "cfa", "cpa", "six sigma",
}

// Config 控制各分区的基线置信度，零值字段回落到默认值。
type Config struct {
	WorkBaseline      float64
	EducationBaseline float64
	SkillsBaseline    float64
}

// Heuristics 用规则与关键词从纯文本中提取结构化实体。
// 所有正则在包加载时编译完成，实例可并发复用。
type Heuristics struct {
	workBaseline      float64
	educationBaseline float64
	skillsBaseline    float64
}

// New 构造启发式提取器。
func New(cfg Config) *Heuristics {
	if cfg.WorkBaseline <= 0 {
		cfg.WorkBaseline = DefaultWorkBaseline
	}
	if cfg.EducationBaseline <= 0 {
		cfg.EducationBaseline = DefaultEducationBaseline
	}
	if cfg.SkillsBaseline <= 0 {
		cfg.SkillsBaseline = DefaultSkillsBaseline
	}
	return &Heuristics{
		workBaseline:      cfg.WorkBaseline,
		educationBaseline: cfg.EducationBaseline,
		skillsBaseline:    cfg.SkillsBaseline,
	}
}

// Extract 对同一输入总是返回相同结果，且从不失败：
// 文本中什么也认不出来时返回全空实体集与全零置信度。
func (h *Heuristics) Extract(text string) parser.EntitySet {
	entities := parser.EmptyEntitySet()
	if strings.TrimSpace(text) == "" {
		return entities
	}

	lines := splitLines(text)

	entities.PersonalInfo = h.extractPersonalInfo(text, lines)
	entities.WorkExperience = h.extractWorkExperience(lines)
	entities.Education = h.extractEducation(lines)
	entities.Skills = h.extractSkills(text)
	entities.ConfidenceScores = h.scoreConfidence(entities)
	return entities
}

func (h *Heuristics) extractPersonalInfo(text string, lines []string) parser.PersonalInfo {
	var info parser.PersonalInfo

	if email := emailRe.FindString(text); email != "" {
		info.Email = email
	}
	for _, re := range phoneRes {
		if phone := re.FindString(text); phone != "" {
			info.Phone = spaceRe.ReplaceAllString(strings.TrimSpace(phone), " ")
			break
		}
	}

	for _, raw := range urlRe.FindAllString(text, -1) {
		url := trailingPunctRe.ReplaceAllString(raw, "")
		lower := strings.ToLower(url)
		switch {
		case strings.Contains(lower, "linkedin.com"):
			info.LinkedinURL = url
		case strings.Contains(lower, "github.com"):
			info.GithubURL = url
		default:
			if info.PortfolioURL == "" {
				info.PortfolioURL = url
			}
		}
	}

	info.FullName = extractName(lines)
	return info
}

// extractName 取第一行看起来像人名的内容：
// 两到四个以大写字母开头的词，不含数字、邮箱或链接。
func extractName(lines []string) string {
	for _, line := range lines {
		candidate := strings.TrimSpace(line)
		if candidate == "" || len(candidate) > 60 {
			continue
		}
		if strings.ContainsAny(candidate, "@:/0123456789") {
			continue
		}
		words := strings.Fields(candidate)
		if len(words) < 2 || len(words) > 4 {
			continue
		}
		plausible := true
		for _, word := range words {
			r := rune(word[0])
			if r < 'A' || r > 'Z' {
				plausible = false
				break
			}
		}
		if plausible {
			return candidate
		}
	}
	return ""
}

func (h *Heuristics) extractWorkExperience(lines []string) []parser.WorkExperience {
	experiences := []parser.WorkExperience{}
	for _, line := range lines {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, " at ") && !strings.Contains(lower, " @ ") && !strings.Contains(lower, " in ") {
			continue
		}
		if !containsAny(lower, jobKeywords) {
			continue
		}
		experiences = append(experiences, parser.WorkExperience{
			Title:       extractJobTitle(line),
			Company:     extractCompany(line),
			Description: line,
		})
		if len(experiences) == maxSectionEntries {
			break
		}
	}
	return experiences
}

// extractJobTitle 以首个职位关键词为锚点截取其前后文。
func extractJobTitle(line string) string {
	words := strings.Fields(line)
	for i, word := range words {
		if !containsKeyword(titleKeywords, strings.ToLower(word)) {
			continue
		}
		start := max(0, i-2)
		end := min(len(words), i+2)
		return strings.Join(words[start:end], " ")
	}
	return "Unknown"
}

func extractCompany(line string) string {
	if m := companyRe.FindStringSubmatch(line); m != nil {
		company := strings.TrimSpace(m[1])
		if len(company) > 2 {
			return company
		}
	}
	return "Unknown"
}

func (h *Heuristics) extractEducation(lines []string) []parser.Education {
	education := []parser.Education{}
	for _, line := range lines {
		lower := strings.ToLower(line)
		if !containsAny(lower, degreeKeywords) {
			continue
		}
		education = append(education, parser.Education{
			Institution: extractInstitution(line),
			Degree:      line,
		})
		if len(education) == maxSectionEntries {
			break
		}
	}
	return education
}

var institutionRe = regexp.MustCompile(`([A-Z][A-Za-z.&' ]*(?:University|College|Institute|School|Academy)(?: of [A-Z][A-Za-z ]*)?)`)

func extractInstitution(line string) string {
	if m := institutionRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1])
	}
	return "Unknown"
}

func (h *Heuristics) extractSkills(text string) parser.Skills {
	lower := strings.ToLower(text)
	words := make(map[string]struct{})
	for _, w := range wordRe.FindAllString(lower, -1) {
		words[w] = struct{}{}
	}

	match := func(skill string) bool {
		// 单词技能按整词匹配，避免 "go" 命中 "google" 这类误报；
		// 多词技能退化为子串匹配。
		if strings.ContainsAny(skill, " /") {
			return strings.Contains(lower, skill)
		}
		_, ok := words[skill]
		return ok
	}

	skills := parser.Skills{
		Technical:      []string{},
		SoftSkills:     []string{},
		Languages:      []string{},
		Certifications: []string{},
	}
	for _, s := range technicalSkills {
		if match(s) {
			skills.Technical = append(skills.Technical, s)
		}
	}
	for _, s := range softSkills {
		if match(s) {
			skills.SoftSkills = append(skills.SoftSkills, s)
		}
	}
	for _, c := range certificationKeywords {
		if strings.Contains(lower, c) {
			skills.Certifications = append(skills.Certifications, c)
		}
	}
	return skills
}

// scoreConfidence 计算各分区的启发式置信度：
// personalInfo 按姓名/邮箱/电话的命中比例折算，
// 其余分区命中即取基线，未命中为零。
func (h *Heuristics) scoreConfidence(entities parser.EntitySet) parser.ConfidenceScores {
	scores := parser.ConfidenceScores{
		parser.SectionPersonalInfo:   0,
		parser.SectionWorkExperience: 0,
		parser.SectionEducation:      0,
		parser.SectionSkills:         0,
	}

	filled := 0
	if entities.PersonalInfo.FullName != "" {
		filled++
	}
	if entities.PersonalInfo.Email != "" {
		filled++
	}
	if entities.PersonalInfo.Phone != "" {
		filled++
	}
	scores[parser.SectionPersonalInfo] = float64(filled) / 3 * 100

	if len(entities.WorkExperience) > 0 {
		scores[parser.SectionWorkExperience] = h.workBaseline
	}
	if len(entities.Education) > 0 {
		scores[parser.SectionEducation] = h.educationBaseline
	}
	if len(entities.Skills.Technical)+len(entities.Skills.SoftSkills)+len(entities.Skills.Certifications) > 0 {
		scores[parser.SectionSkills] = h.skillsBaseline
	}
	return scores
}

func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

func containsKeyword(keywords []string, word string) bool {
	word = strings.Trim(word, ".,;:!?()")
	for _, k := range keywords {
		if word == k {
			return true
		}
	}
	return false
}
