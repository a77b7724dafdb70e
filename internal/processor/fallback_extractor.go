package processor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"job-match-go/internal/config"
	"job-match-go/internal/logger"
	"job-match-go/internal/types"
)

// skillContextPatterns 常见的技能引导短语，捕获短语之后到句号为止的内容
var skillContextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`skills?[:\s]+([^.]+)`),
	regexp.MustCompile(`technologies?[:\s]+([^.]+)`),
	regexp.MustCompile(`proficient in[:\s]+([^.]+)`),
	regexp.MustCompile(`experience with[:\s]+([^.]+)`),
	regexp.MustCompile(`knowledge of[:\s]+([^.]+)`),
	regexp.MustCompile(`familiar with[:\s]+([^.]+)`),
	regexp.MustCompile(`worked with[:\s]+([^.]+)`),
}

// skillListSplitRe 捕获内容中的条目分隔符
var skillListSplitRe = regexp.MustCompile(`[,;|\n•·]`)

// FallbackExtractor 纯规则的技能抽取器。
// 不依赖任何外部后端，作为检索增强抽取失败时的降级路径，
// 对格式正常的文本必定成功。
type FallbackExtractor struct {
	skillCap   int // 技术技能上限
	summaryCap int // 摘要中列出的技能上限
	logger     zerolog.Logger
}

// NewFallbackExtractor 创建降级抽取器
func NewFallbackExtractor(pipeline config.PipelineConfig) *FallbackExtractor {
	skillCap := pipeline.FallbackCap
	if skillCap <= 0 {
		skillCap = 10
	}
	return &FallbackExtractor{
		skillCap:   skillCap,
		summaryCap: 15,
		logger:     logger.Logger.With().Str("component", "fallback_extractor").Logger(),
	}
}

// Extract 用上下文短语规则扫描文本并抽取技能。
// 空文本不报错，返回带错误说明摘要的空档案。结果确定且可复现。
func (e *FallbackExtractor) Extract(ctx context.Context, text string) (*types.SkillProfile, error) {
	if text == "" {
		return &types.SkillProfile{
			TechnicalSkills:      []string{},
			SoftSkills:           []string{},
			ProgrammingLanguages: []string{},
			FrameworksTools:      []string{},
			Summary:              "Unable to generate summary due to processing error.",
			ExperienceSummary:    answerNotAvailable,
			EducationSummary:     answerNotAvailable,
			Projects:             answerNotAvailable,
			Industries:           answerNotAvailable,
			CareerLevel:          answerNotAvailable,
			Method:               types.ExtractionMethodFallback,
		}, nil
	}

	found := scanSkillContexts(text)
	e.logger.Debug().Int("found_skills", len(found)).Msg("规则抽取完成")

	technical := found
	if len(technical) > e.skillCap {
		technical = technical[:e.skillCap]
	}

	return &types.SkillProfile{
		TechnicalSkills:      technical,
		SoftSkills:           []string{},
		ProgrammingLanguages: []string{},
		FrameworksTools:      []string{},
		Summary:              e.composeSummary(found),
		ExperienceSummary:    "Experience details extracted using pattern matching.",
		EducationSummary:     "Education details not available with current processing.",
		Projects:             "Projects not identified",
		Industries:           "Industries not identified",
		CareerLevel:          "Career level not determined",
		Method:               types.ExtractionMethodFallback,
	}, nil
}

// scanSkillContexts 在小写文本上按模式顺序扫描，保持首次出现顺序去重
func scanSkillContexts(text string) []string {
	lower := strings.ToLower(text)
	caser := cases.Title(language.English)

	var found []string
	seen := make(map[string]struct{})
	for _, pattern := range skillContextPatterns {
		for _, match := range pattern.FindAllStringSubmatch(lower, -1) {
			for _, raw := range skillListSplitRe.Split(match[1], -1) {
				skill := caser.String(strings.TrimSpace(raw))
				if utf8.RuneCountInString(skill) <= 2 {
					continue
				}
				if _, ok := seen[skill]; ok {
					continue
				}
				seen[skill] = struct{}{}
				found = append(found, skill)
			}
		}
	}
	return found
}

func (e *FallbackExtractor) composeSummary(found []string) string {
	listed := "No specific skills identified in standard format"
	if len(found) > 0 {
		if len(found) > e.summaryCap {
			found = found[:e.summaryCap]
		}
		listed = strings.Join(found, ", ")
	}
	return fmt.Sprintf("## Skills Extracted\n• Found Skills: %s", listed)
}
