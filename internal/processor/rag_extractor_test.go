package processor

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-match-go/internal/config"
	"job-match-go/internal/types"
)

// stubEmbedder 返回固定向量，embedErr非空时全部失败
type stubEmbedder struct {
	embedErr error
}

func (s *stubEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	vectors := make([][]float64, len(texts))
	for i := range texts {
		vectors[i] = []float64{1, 0, 0, 0}
	}
	return vectors, nil
}

func (s *stubEmbedder) GetDimensions() int { return 4 }

// stubAnswerer 按问题原文返回预置答案
type stubAnswerer struct {
	answers   map[string]string
	answerErr error
}

func (s *stubAnswerer) Answer(ctx context.Context, question string, contextChunks []string) (string, error) {
	if s.answerErr != nil {
		return "", s.answerErr
	}
	if answer, ok := s.answers[question]; ok {
		return answer, nil
	}
	return answerNotAvailable, nil
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		ChunkSize:     1000,
		ChunkOverlap:  200,
		RetrievalTopK: 4,
		SkillCap:      20,
	}
}

func TestNewRAGExtractor_RequiresDependencies(t *testing.T) {
	_, err := NewRAGExtractor(nil, &stubAnswerer{}, testPipelineConfig())
	assert.Error(t, err)

	_, err = NewRAGExtractor(&stubEmbedder{}, nil, testPipelineConfig())
	assert.Error(t, err)
}

func TestRAGExtractor_Extract_EmptyText(t *testing.T) {
	extractor, err := NewRAGExtractor(&stubEmbedder{}, &stubAnswerer{}, testPipelineConfig())
	require.NoError(t, err)

	_, err = extractor.Extract(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestRAGExtractor_Extract_EmbedderUnavailable(t *testing.T) {
	extractor, err := NewRAGExtractor(&stubEmbedder{embedErr: fmt.Errorf("connection refused")}, &stubAnswerer{}, testPipelineConfig())
	require.NoError(t, err)

	_, err = extractor.Extract(context.Background(), "senior golang engineer with mysql experience")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestRAGExtractor_Extract_Success(t *testing.T) {
	answers := map[string]string{
		extractionQuestions[0]: "Python, Docker, Kubernetes",
		extractionQuestions[1]: "Communication, Teamwork",
		extractionQuestions[2]: "Python, Java",
		extractionQuestions[3]: "Django, React",
		extractionQuestions[4]: "AWS Certified Solutions Architect",
		extractionQuestions[5]: "Led a backend team for five years.",
		extractionQuestions[6]: "Bachelor of Computer Science.",
		extractionQuestions[7]: "Built a payment gateway.",
		extractionQuestions[8]: "Fintech, E-commerce",
		extractionQuestions[9]: "Senior level",
	}

	extractor, err := NewRAGExtractor(&stubEmbedder{}, &stubAnswerer{answers: answers}, testPipelineConfig())
	require.NoError(t, err)

	profile, err := extractor.Extract(context.Background(), "resume text mentioning python docker kubernetes and five years of backend work")
	require.NoError(t, err)
	require.NotNil(t, profile)

	// 列表类答案标题化后按字典序排序
	assert.Equal(t, []string{"Docker", "Kubernetes", "Python"}, profile.TechnicalSkills)
	assert.Equal(t, []string{"Communication", "Teamwork"}, profile.SoftSkills)
	assert.Equal(t, []string{"Java", "Python"}, profile.ProgrammingLanguages)
	assert.Equal(t, []string{"Django", "React"}, profile.FrameworksTools)

	// 叙述类答案原样保留
	assert.Equal(t, "AWS Certified Solutions Architect", profile.Certifications)
	assert.Equal(t, "Led a backend team for five years.", profile.ExperienceSummary)
	assert.Equal(t, "Senior level", profile.CareerLevel)
	assert.Equal(t, types.ExtractionMethodRAG, profile.Method)

	assert.Contains(t, profile.Summary, "## Professional Summary")
	assert.Contains(t, profile.Summary, "Career Level: Senior level")
	assert.Contains(t, profile.Summary, "• Technical Skills: Docker, Kubernetes, Python")
}

func TestRAGExtractor_Extract_AnswererDegradesToPlaceholders(t *testing.T) {
	extractor, err := NewRAGExtractor(&stubEmbedder{}, &stubAnswerer{answerErr: fmt.Errorf("model timeout")}, testPipelineConfig())
	require.NoError(t, err)

	profile, err := extractor.Extract(context.Background(), "resume text with some content")
	require.NoError(t, err)

	assert.Empty(t, profile.TechnicalSkills)
	assert.Empty(t, profile.ProgrammingLanguages)
	assert.Equal(t, answerNotAvailable, profile.Certifications)
	assert.Equal(t, answerNotAvailable, profile.ExperienceSummary)
	assert.Equal(t, answerNotAvailable, profile.CareerLevel)
}

func TestParseExtractedSkills(t *testing.T) {
	t.Run("空答案和占位答案返回空列表", func(t *testing.T) {
		assert.Empty(t, parseExtractedSkills("", 20))
		assert.Empty(t, parseExtractedSkills("Not available", 20))
		assert.Empty(t, parseExtractedSkills("NONE", 20))
	})

	t.Run("标题化去重并排序", func(t *testing.T) {
		skills := parseExtractedSkills("python, PYTHON, docker, Python", 20)
		assert.Equal(t, []string{"Docker", "Python"}, skills)
	})

	t.Run("过滤短条目和排除短语", func(t *testing.T) {
		skills := parseExtractedSkills("Go, C, Python, not mentioned here, None Found", 20)
		assert.Equal(t, []string{"Python"}, skills)
	})

	t.Run("数量上限", func(t *testing.T) {
		var items []string
		for i := 0; i < 30; i++ {
			items = append(items, fmt.Sprintf("Skill%02d", i))
		}
		skills := parseExtractedSkills(strings.Join(items, ", "), 20)
		assert.Len(t, skills, 20)
	})
}

func TestComposeProfileSummary_EmptyListsBecomeNotSpecified(t *testing.T) {
	profile := &types.SkillProfile{
		CareerLevel: "Entry level",
		Industries:  "Software",
	}
	summary := composeProfileSummary(profile)

	assert.Contains(t, summary, "• Technical Skills: Not specified")
	assert.Contains(t, summary, "• Programming Languages: Not specified")
	assert.Contains(t, summary, "• Not specified")
	assert.True(t, strings.HasPrefix(summary, "## Professional Summary"))
}
