package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-match-go/internal/types"
)

func TestJDEnhancerParsesStructuredResponse(t *testing.T) {
	mock := &MockLLMModel{mockResponse: `{
		"enhanced_description": "全栈工程师，负责核心交易系统",
		"key_requirements": ["Go", "MySQL"],
		"key_responsibilities": ["开发后端服务"],
		"preferred_qualifications": ["Kubernetes"],
		"compensation_info": "25k-40k",
		"additional_details": "偶尔出差",
		"summary": "后端岗位"
	}`}
	enhancer := NewJDEnhancer(mock)

	result, err := enhancer.Enhance(context.Background(),
		[]string{"岗位文档正文"},
		types.JobContext{Title: "后端工程师", Company: "ACME", Location: "上海", Description: "开发"})

	require.NoError(t, err)
	assert.Equal(t, "全栈工程师，负责核心交易系统", result.EnhancedDescription)
	assert.Equal(t, []string{"Go", "MySQL"}, result.KeyRequirements)
	assert.Equal(t, []string{"Kubernetes"}, result.PreferredQualifications)
	assert.Equal(t, "25k-40k", result.CompensationInfo)
}

// 模型输出夹杂说明文字时，应提取其中配平的JSON对象
func TestJDEnhancerExtractsEmbeddedJSON(t *testing.T) {
	mock := &MockLLMModel{mockResponse: "Here is the result:\n{\"enhanced_description\": \"desc\", \"summary\": \"s\"}\nDone."}
	enhancer := NewJDEnhancer(mock)

	result, err := enhancer.Enhance(context.Background(), []string{"text"}, types.JobContext{})
	require.NoError(t, err)
	assert.Equal(t, "desc", result.EnhancedDescription)
	assert.Equal(t, "s", result.Summary)
}

// JSON解析失败时降级：原始回复作为增强描述，不返回错误
func TestJDEnhancerFallbackOnUnparseable(t *testing.T) {
	raw := "This position requires strong Go skills but no JSON here."
	mock := &MockLLMModel{mockResponse: raw}
	enhancer := NewJDEnhancer(mock)

	result, err := enhancer.Enhance(context.Background(), []string{"text"}, types.JobContext{})
	require.NoError(t, err)
	assert.Equal(t, raw, result.EnhancedDescription)
	assert.Empty(t, result.KeyRequirements)
	assert.Equal(t, "Content processed but structured parsing failed", result.Summary)
}

// 文档内容超过上限时要截断后再送入提示词
func TestJDEnhancerTruncatesContent(t *testing.T) {
	mock := &MockLLMModel{mockResponse: `{"enhanced_description": "d", "summary": "s"}`}
	enhancer := NewJDEnhancer(mock, WithContentCharLimit(100))

	long := strings.Repeat("a", 500)
	_, err := enhancer.Enhance(context.Background(), []string{long}, types.JobContext{})
	require.NoError(t, err)

	require.Len(t, mock.lastMessages, 2)
	userMsg := mock.lastMessages[1].Content
	assert.NotContains(t, userMsg, strings.Repeat("a", 101), "内容应被截断到100字符")
	assert.Contains(t, userMsg, strings.Repeat("a", 100))
}

func TestSanitizeJSONRepairsInnerQuotes(t *testing.T) {
	broken := `{"summary": "requires "hands-on" experience"}`
	fixed := sanitizeJSON(broken)
	assert.Equal(t, `{"summary": "requires \"hands-on\" experience"}`, fixed)
}

func TestExtractJSONFromResponse(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, extractJSONFromResponse(`noise {"a": 1} trailing`))
	assert.Equal(t, "", extractJSONFromResponse("no json at all"))
	assert.Equal(t, "", extractJSONFromResponse("{unbalanced"))
}
