package parser

// Section 表示解析结果中的固定分区。
type Section string

const (
	SectionPersonalInfo   Section = "personalInfo"
	SectionWorkExperience Section = "workExperience"
	SectionEducation      Section = "education"
	SectionSkills         Section = "skills"
)

// Sections 按固定顺序列出全部分区，置信度融合与校验都依赖它。
var Sections = []Section{
	SectionPersonalInfo,
	SectionWorkExperience,
	SectionEducation,
	SectionSkills,
}

// ConfidenceScores 保存每个分区 0~100 的置信度。
type ConfidenceScores map[Section]float64

// Document 表示一次提交的待解析文档，创建后不可变。
type Document struct {
	ID       string
	Filename string
	MIMEHint string
	Bytes    []byte
}

// ExtractionResult 是文本提取阶段的输出。
type ExtractionResult struct {
	Text       string
	Sufficient bool
}

// PersonalInfo 汇总从文档中识别出的个人信息。
type PersonalInfo struct {
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Location     string `json:"location"`
	LinkedinURL  string `json:"linkedinUrl"`
	GithubURL    string `json:"githubUrl"`
	PortfolioURL string `json:"portfolioUrl"`
	Summary      string `json:"summary"`
}

// WorkExperience 表示一段工作经历。
type WorkExperience struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Description string `json:"description"`
}

// Education 表示一段教育经历。
type Education struct {
	Institution  string `json:"institution"`
	Degree       string `json:"degree"`
	FieldOfStudy string `json:"fieldOfStudy"`
	Location     string `json:"location"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	GPA          string `json:"gpa"`
}

// Skills 按类别归档识别出的技能。
type Skills struct {
	Technical      []string `json:"technical"`
	SoftSkills     []string `json:"softSkills"`
	Languages      []string `json:"languages"`
	Certifications []string `json:"certifications"`
}

// EntitySet 是启发式实体提取阶段的结构化输出。
type EntitySet struct {
	PersonalInfo     PersonalInfo     `json:"personalInfo"`
	WorkExperience   []WorkExperience `json:"workExperience"`
	Education        []Education      `json:"education"`
	Skills           Skills           `json:"skills"`
	ConfidenceScores ConfidenceScores `json:"confidenceScores"`
}

// EnhancedResult 是 AI 校验阶段的输出：与 EntitySet 同构，
// 外加一份独立的 AI 置信度。
type EnhancedResult struct {
	EntitySet
	AIConfidence ConfidenceScores `json:"aiConfidence"`
}

// MergedResult 是流水线的最终产物。Degraded 为 true 时表示
// AI 校验缺席，置信度未经融合直接沿用启发式结果。
type MergedResult struct {
	EntitySet
	Degraded bool `json:"degraded"`
}

// EmptyEntitySet 返回全空分区、全零置信度的实体集。
func EmptyEntitySet() EntitySet {
	return EntitySet{
		WorkExperience:   []WorkExperience{},
		Education:        []Education{},
		ConfidenceScores: zeroConfidence(),
	}
}

func zeroConfidence() ConfidenceScores {
	scores := make(ConfidenceScores, len(Sections))
	for _, section := range Sections {
		scores[section] = 0
	}
	return scores
}
