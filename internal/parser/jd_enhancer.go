package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"job-match-go/internal/logger"
	"job-match-go/internal/types"
)

// JDEnhancer 将岗位描述文档与表单上下文送入LLM，产出结构化的增强结果
type JDEnhancer struct {
	llmModel         model.ToolCallingChatModel
	contentCharLimit int // 送入提示词的文档内容上限（字符）
	logger           zerolog.Logger
}

// JDEnhancerOption 是JD增强器的配置选项
type JDEnhancerOption func(*JDEnhancer)

// WithContentCharLimit 设置送入提示词的文档内容长度上限
func WithContentCharLimit(limit int) JDEnhancerOption {
	return func(e *JDEnhancer) {
		if limit > 0 {
			e.contentCharLimit = limit
		}
	}
}

// NewJDEnhancer 创建一个新的JD增强器实例
func NewJDEnhancer(llmModel model.ToolCallingChatModel, options ...JDEnhancerOption) *JDEnhancer {
	enhancer := &JDEnhancer{
		llmModel:         llmModel,
		contentCharLimit: 4000,
		logger:           logger.Logger.With().Str("component", "jd_enhancer").Logger(),
	}

	// 应用选项
	for _, opt := range options {
		opt(enhancer)
	}

	return enhancer
}

const jdEnhancePromptTemplate = `Analyze this information and provide:
1. An enhanced description that combines the form data with relevant content
2. Key requirements extracted
3. Key responsibilities extracted
4. Preferred qualifications mentioned
5. Any salary/compensation information if mentioned
6. Any other relevant details

Context:
%s

Content:
%s

Format your response as a JSON object with:
{
    "enhanced_description": "Enhanced description",
    "key_requirements": ["requirement1", "requirement2"],
    "key_responsibilities": ["responsibility1", "responsibility2"],
    "preferred_qualifications": ["qualification1", "qualification2"],
    "compensation_info": "Any compensation details",
    "additional_details": "Any other relevant information",
    "summary": "Brief summary of the content"
}`

// Enhance 执行岗位文档的结构化增强
// 结构化解析失败时不报错，把原始回复放进 EnhancedDescription 作为降级结果
func (e *JDEnhancer) Enhance(ctx context.Context, chunks []string, jobCtx types.JobContext) (*types.EnhancedJob, error) {
	if e.llmModel == nil {
		return nil, fmt.Errorf("JDEnhancer: llmModel is not initialized")
	}

	// 1. 拼接分块并截断到字符上限
	fullText := strings.Join(chunks, "\n")
	runes := []rune(fullText)
	if len(runes) > e.contentCharLimit {
		fullText = string(runes[:e.contentCharLimit])
	}

	ctxJSON, err := json.MarshalIndent(jobCtx, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("JDEnhancer: failed to marshal job context: %w", err)
	}

	// 2. 构建消息并调用LLM
	messages := []*einoschema.Message{
		einoschema.SystemMessage("You are an expert assistant that helps create comprehensive documents."),
		einoschema.UserMessage(fmt.Sprintf(jdEnhancePromptTemplate, string(ctxJSON), fullText)),
	}

	e.logger.Debug().
		Str("title", jobCtx.Title).
		Int("chunks", len(chunks)).
		Int("content_chars", len([]rune(fullText))).
		Msg("调用LLM增强岗位描述")

	response, err := e.llmModel.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("JDEnhancer: LLM call failed: %w", err)
	}
	if response == nil || response.Content == "" {
		return nil, fmt.Errorf("JDEnhancer: LLM returned empty response")
	}

	// 3. 解析LLM响应，失败时降级
	processedContent := strings.TrimPrefix(response.Content, "\uFEFF")

	jsonStr := extractJSONFromResponse(processedContent)
	if jsonStr == "" {
		e.logger.Warn().Msg("响应中未找到JSON对象，降级为原始文本")
		return fallbackEnhancedJob(processedContent), nil
	}

	// Ensure jsonStr is valid UTF-8, replacing invalid sequences with an empty string.
	if !utf8.ValidString(jsonStr) {
		jsonStr = strings.ToValidUTF8(jsonStr, "")
	}

	var result types.EnhancedJob
	// ① 正常解析
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		// ② 解析失败 -> 自动修复再试一次
		fixedJSONStr := sanitizeJSON(jsonStr)
		if jsonErr := json.Unmarshal([]byte(fixedJSONStr), &result); jsonErr != nil {
			e.logger.Warn().Err(jsonErr).Msg("JSON修复后仍无法解析，降级为原始文本")
			return fallbackEnhancedJob(processedContent), nil
		}
	}

	return &result, nil
}

// fallbackEnhancedJob 结构化解析失败时的降级结果
func fallbackEnhancedJob(rawContent string) *types.EnhancedJob {
	return &types.EnhancedJob{
		EnhancedDescription:     rawContent,
		KeyRequirements:         []string{},
		KeyResponsibilities:     []string{},
		PreferredQualifications: []string{},
		CompensationInfo:        "",
		AdditionalDetails:       "",
		Summary:                 "Content processed but structured parsing failed",
	}
}

// extractJSONFromResponse 从文本中提取第一个配平的JSON对象
func extractJSONFromResponse(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	for i := start; i < len(text); i++ {
		if text[i] == '{' {
			level++
		} else if text[i] == '}' {
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// sanitizeJSON 会遍历 src，将任何位于字符串字面量内部但并非"真正结束"的双引号写成 \,
// 以保证整个 JSON 在 Go 端能够正常反序列化。
// 它通过检查下一个非空白字符是否为 :, ], }, 或 , 来判断该 " 是否为字符串的结束。
// 反斜杠转义逻辑则正常处理 \\ 和 \"。
func sanitizeJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		if c == '"' && !escaped {
			if !inStr {
				// 遇到非转义的 "，并且当前不在字符串里 -> 开始一个新字符串
				inStr = true
				b.WriteByte(c)
			} else {
				// 当前在字符串里，检查这是不是字符串的真正结束
				j := i + 1
				// 跳过所有空白字符
				for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
					j++
				}
				// 如果下一个非空白字符是 JSON 语法里的 :, ], }, 或 ,，说明这才是真正的 string-end
				if j < len(src) && (src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}') {
					inStr = false
					b.WriteByte(c)
				} else {
					// 否则认为这是字符串内部的 "，需要改成 \"
					b.WriteString("\\\"")
				}
			}
			escaped = false

		} else if c == '\\' && !escaped {
			// 遇到第一个反斜杠，标记 escaped，然后把它写进去
			escaped = true
			b.WriteByte(c)

		} else {
			// 普通字符，或者是被转义的字符
			b.WriteByte(c)
			escaped = false
		}
	}

	return b.String()
}
