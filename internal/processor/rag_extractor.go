package processor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"job-match-go/internal/config"
	"job-match-go/internal/index"
	"job-match-go/internal/logger"
	"job-match-go/internal/parser"
	"job-match-go/internal/types"
)

// extractionQuestions 固定顺序的十问抽取题组。
// 顺序不可变: 前四问的答案按列表解析，后六问的答案作为原文保留。
var extractionQuestions = [10]string{
	"Extract all specific technical skills, technologies, software tools, and programming languages explicitly mentioned. Return only the exact terms found, separated by commas.",
	"Extract all soft skills and interpersonal abilities explicitly mentioned. Return only the exact terms found, separated by commas.",
	"Extract all programming languages specifically mentioned. Return only the exact language names found, separated by commas.",
	"Extract all frameworks, libraries, development tools, and platforms specifically mentioned. Return only the exact names found, separated by commas.",
	"Extract all certifications, licenses, or professional credentials mentioned. Include the full certification names.",
	"Provide a comprehensive summary of the work experience, highlighting key roles, responsibilities, and achievements mentioned.",
	"Summarize the educational background including degrees, institutions, and relevant academic achievements mentioned.",
	"Extract and list all specific projects mentioned with their key details.",
	"Identify the industries and domains mentioned.",
	"Determine the experience level and career stage based on the information provided.",
}

// answerNotAvailable 单问失败或检索为空时的占位答案
const answerNotAvailable = "Not available"

// skillDisqualifiers 含有这些短语的条目不算有效技能
var skillDisqualifiers = []string{"not mentioned", "not available", "none found"}

// RAGExtractor 基于检索增强的技能档案抽取器。
// 对文档分块建立内存向量索引，逐题检索相关片段后交给大模型回答。
// 索引构建或嵌入后端失败会返回错误，由调用方决定是否降级到FallbackExtractor。
type RAGExtractor struct {
	embedder TextEmbedder
	answerer QuestionAnswerer
	pipeline config.PipelineConfig
	logger   zerolog.Logger
}

// NewRAGExtractor 创建抽取器，embedder与answerer不能为空
func NewRAGExtractor(embedder TextEmbedder, answerer QuestionAnswerer, pipeline config.PipelineConfig) (*RAGExtractor, error) {
	if embedder == nil {
		return nil, fmt.Errorf("TextEmbedder 不能为空")
	}
	if answerer == nil {
		return nil, fmt.Errorf("QuestionAnswerer 不能为空")
	}
	return &RAGExtractor{
		embedder: embedder,
		answerer: answerer,
		pipeline: pipeline,
		logger:   logger.Logger.With().Str("component", "rag_extractor").Logger(),
	}, nil
}

// Extract 从归一化文本中抽取结构化技能档案。
// 文本为空或索引构建失败时返回错误; 单个问题的失败只会让对应字段落为占位值。
func (e *RAGExtractor) Extract(ctx context.Context, text string) (*types.SkillProfile, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewEmptyInputError("", "")
	}

	chunks := parser.ChunkText(text, e.pipeline.ChunkSize, e.pipeline.ChunkOverlap)
	if len(chunks) == 0 {
		return nil, NewEmptyInputError("", "")
	}

	idx, err := e.buildIndex(ctx, chunks)
	if err != nil {
		return nil, err
	}

	answers := e.answerQuestions(ctx, idx)

	profile := &types.SkillProfile{
		TechnicalSkills:      parseExtractedSkills(answers[0], e.pipeline.SkillCap),
		SoftSkills:           parseExtractedSkills(answers[1], e.pipeline.SkillCap),
		ProgrammingLanguages: parseExtractedSkills(answers[2], e.pipeline.SkillCap),
		FrameworksTools:      parseExtractedSkills(answers[3], e.pipeline.SkillCap),
		Certifications:       answers[4],
		ExperienceSummary:    answers[5],
		EducationSummary:     answers[6],
		Projects:             answers[7],
		Industries:           answers[8],
		CareerLevel:          answers[9],
		Method:               types.ExtractionMethodRAG,
	}
	profile.Summary = composeProfileSummary(profile)

	e.logger.Info().
		Int("chunks", len(chunks)).
		Int("technical_skills", len(profile.TechnicalSkills)).
		Int("programming_languages", len(profile.ProgrammingLanguages)).
		Msg("检索增强抽取完成")

	return profile, nil
}

// buildIndex 对所有分块做嵌入并建立内存索引，嵌入后端失败视为不可用
func (e *RAGExtractor) buildIndex(ctx context.Context, chunks []string) (*index.MemoryIndex, error) {
	vectors, err := e.embedder.EmbedStrings(ctx, chunks)
	if err != nil {
		return nil, NewBackendError("", fmt.Sprintf("分块嵌入失败: %v", err))
	}
	if len(vectors) != len(chunks) {
		return nil, NewIndexError("", fmt.Sprintf("嵌入数量(%d)与分块数量(%d)不匹配", len(vectors), len(chunks)))
	}

	textChunks := make([]types.TextChunk, len(chunks))
	for i, c := range chunks {
		textChunks[i] = types.TextChunk{Index: i, Content: c}
	}

	idx := index.NewMemoryIndex()
	if err := idx.Add(textChunks, vectors); err != nil {
		return nil, NewIndexError("", err.Error())
	}
	return idx, nil
}

// answerQuestions 逐题检索并回答，单题失败落为占位值，不中断题组
func (e *RAGExtractor) answerQuestions(ctx context.Context, idx *index.MemoryIndex) [10]string {
	topK := e.pipeline.RetrievalTopK
	if topK <= 0 {
		topK = 4
	}

	var answers [10]string
	for i, question := range extractionQuestions {
		answers[i] = answerNotAvailable

		queryVectors, err := e.embedder.EmbedStrings(ctx, []string{question})
		if err != nil || len(queryVectors) == 0 {
			e.logger.Warn().Err(err).Int("question", i).Msg("问题嵌入失败，使用占位答案")
			continue
		}

		scored, err := idx.Search(queryVectors[0], topK)
		if err != nil || len(scored) == 0 {
			e.logger.Warn().Err(err).Int("question", i).Msg("检索结果为空，使用占位答案")
			continue
		}

		contextChunks := make([]string, len(scored))
		for j, sc := range scored {
			contextChunks[j] = sc.Chunk.Content
		}

		answer, err := e.answerer.Answer(ctx, question, contextChunks)
		if err != nil {
			e.logger.Warn().Err(err).Int("question", i).Msg("模型回答失败，使用占位答案")
			continue
		}
		if trimmed := strings.TrimSpace(answer); trimmed != "" {
			answers[i] = trimmed
		}
	}
	return answers
}

// parseExtractedSkills 把逗号分隔的答案解析为技能列表。
// 条目标题化后过滤长度不足或含排除短语的项，集合语义去重并排序保证可复现，最多limit条。
func parseExtractedSkills(answer string, limit int) []string {
	answer = strings.TrimSpace(answer)
	if answer == "" || answer == answerNotAvailable || strings.ToLower(answer) == "none" {
		return []string{}
	}
	if limit <= 0 {
		limit = 20
	}

	caser := cases.Title(language.English)
	seen := make(map[string]struct{})
	for _, raw := range strings.Split(answer, ",") {
		skill := caser.String(strings.TrimSpace(raw))
		if utf8.RuneCountInString(skill) <= 2 {
			continue
		}
		if containsAnyFold(skill, skillDisqualifiers) {
			continue
		}
		seen[skill] = struct{}{}
	}

	skills := make([]string, 0, len(seen))
	for skill := range seen {
		skills = append(skills, skill)
	}
	sort.Strings(skills)
	if len(skills) > limit {
		skills = skills[:limit]
	}
	return skills
}

func containsAnyFold(s string, phrases []string) bool {
	lower := strings.ToLower(s)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// composeProfileSummary 按固定小节拼装综合摘要
func composeProfileSummary(p *types.SkillProfile) string {
	return strings.TrimSpace(fmt.Sprintf(`## Professional Summary
Career Level: %s
Industries: %s

## Technical Expertise
• Technical Skills: %s
• Programming Languages: %s
• Frameworks & Tools: %s

## Work Experience
%s

## Education
%s

## Projects
%s

## Certifications
%s

## Soft Skills
• %s`,
		p.CareerLevel,
		p.Industries,
		joinOrNotSpecified(p.TechnicalSkills),
		joinOrNotSpecified(p.ProgrammingLanguages),
		joinOrNotSpecified(p.FrameworksTools),
		p.ExperienceSummary,
		p.EducationSummary,
		p.Projects,
		p.Certifications,
		joinOrNotSpecified(p.SoftSkills),
	))
}

func joinOrNotSpecified(items []string) string {
	if len(items) == 0 {
		return "Not specified"
	}
	return strings.Join(items, ", ")
}
