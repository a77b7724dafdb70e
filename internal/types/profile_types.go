package types

// DocumentFormat 表示上传文档的格式
type DocumentFormat string

const (
	// FormatPDF PDF文档
	FormatPDF DocumentFormat = "pdf"
	// FormatDOCX Word文档
	FormatDOCX DocumentFormat = "docx"
	// FormatUnknown 无法识别的格式
	FormatUnknown DocumentFormat = "unknown"
)

// ExtractionMethod 表示技能画像的抽取路径
type ExtractionMethod string

const (
	// ExtractionMethodRAG 检索增强抽取（主路径）
	ExtractionMethodRAG ExtractionMethod = "rag"
	// ExtractionMethodFallback 正则模式兜底抽取
	ExtractionMethodFallback ExtractionMethod = "fallback"
)

// ContactInfo 从简历文本中抽取的联系信息，任一字段都可能为空
type ContactInfo struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// TextChunk 归一化文本的一个重叠分块
type TextChunk struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// SkillProfile 简历处理流水线的最终产物
type SkillProfile struct {
	// 联系信息
	Contact ContactInfo `json:"contact"`

	// 技能清单（均为 Title Case，去重，单项上限见配置）
	TechnicalSkills      []string `json:"technical_skills"`
	SoftSkills           []string `json:"soft_skills"`
	ProgrammingLanguages []string `json:"programming_languages"`
	FrameworksTools      []string `json:"frameworks_tools"`

	// 叙述性字段，来自逐问检索的原始回答
	Certifications    string `json:"certifications"`
	ExperienceSummary string `json:"experience_summary"`
	EducationSummary  string `json:"education_summary"`
	Projects          string `json:"projects"`
	Industries        string `json:"industries"`
	CareerLevel       string `json:"career_level"`

	// 组合摘要（Markdown格式）
	Summary string `json:"summary"`

	// 抽取路径标记
	Method ExtractionMethod `json:"method"`
}

// EnhancedJob 岗位描述文档经LLM增强后的结构化结果
type EnhancedJob struct {
	EnhancedDescription     string   `json:"enhanced_description"`
	KeyRequirements         []string `json:"key_requirements"`
	KeyResponsibilities     []string `json:"key_responsibilities"`
	PreferredQualifications []string `json:"preferred_qualifications"`
	CompensationInfo        string   `json:"compensation_info"`
	AdditionalDetails       string   `json:"additional_details"`
	Summary                 string   `json:"summary"`
}

// JobContext 岗位表单上下文，随文档内容一起送入增强提示词
type JobContext struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// JobForMatching 参与匹配计算的岗位视图
type JobForMatching struct {
	JobID                   string
	Title                   string
	Company                 string
	KeyRequirements         []string
	PreferredQualifications []string
}

// MatchResult 单个岗位的匹配结果
type MatchResult struct {
	JobID          string   `json:"job_id"`
	Title          string   `json:"title"`
	Company        string   `json:"company"`
	MatchScore     float64  `json:"match_score"` // 百分比，保留一位小数
	MatchingSkills []string `json:"matching_skills"`
}
