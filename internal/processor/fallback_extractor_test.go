package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-match-go/internal/config"
	"job-match-go/internal/types"
)

func TestFallbackExtractor_EmptyText(t *testing.T) {
	extractor := NewFallbackExtractor(config.PipelineConfig{})

	profile, err := extractor.Extract(context.Background(), "")
	require.NoError(t, err)

	assert.Empty(t, profile.TechnicalSkills)
	assert.Equal(t, "Unable to generate summary due to processing error.", profile.Summary)
	assert.Equal(t, "Not available", profile.ExperienceSummary)
	assert.Equal(t, "Not available", profile.CareerLevel)
	assert.Equal(t, types.ExtractionMethodFallback, profile.Method)
}

func TestFallbackExtractor_ContextPhrases(t *testing.T) {
	extractor := NewFallbackExtractor(config.PipelineConfig{FallbackCap: 10})

	profile, err := extractor.Extract(context.Background(), "Skills: Python, Docker, Kubernetes. Proficient in MySQL; Redis. Experience with Linux.")
	require.NoError(t, err)

	assert.Equal(t, []string{"Python", "Docker", "Kubernetes", "Mysql", "Redis", "Linux"}, profile.TechnicalSkills)
	assert.Equal(t, "## Skills Extracted\n• Found Skills: Python, Docker, Kubernetes, Mysql, Redis, Linux", profile.Summary)
	assert.Equal(t, "Experience details extracted using pattern matching.", profile.ExperienceSummary)
	assert.Equal(t, "Projects not identified", profile.Projects)
	assert.Equal(t, types.ExtractionMethodFallback, profile.Method)
}

func TestFallbackExtractor_NoSkillPhrases(t *testing.T) {
	extractor := NewFallbackExtractor(config.PipelineConfig{})

	profile, err := extractor.Extract(context.Background(), "An ordinary paragraph about nothing in particular.")
	require.NoError(t, err)

	assert.Empty(t, profile.TechnicalSkills)
	assert.Equal(t, "## Skills Extracted\n• Found Skills: No specific skills identified in standard format", profile.Summary)
}

func TestFallbackExtractor_DedupAndCap(t *testing.T) {
	extractor := NewFallbackExtractor(config.PipelineConfig{FallbackCap: 3})

	// 同一技能被多个短语命中只保留首次出现
	profile, err := extractor.Extract(context.Background(), "Skills: Python, Java, Golang, Rust, Scala. Proficient in Python.")
	require.NoError(t, err)

	assert.Equal(t, []string{"Python", "Java", "Golang"}, profile.TechnicalSkills)
	// 摘要列出的技能不受技术技能上限约束
	assert.Contains(t, profile.Summary, "Python, Java, Golang, Rust, Scala")
}

func TestFallbackExtractor_Deterministic(t *testing.T) {
	extractor := NewFallbackExtractor(config.PipelineConfig{})
	text := "Technologies: Go routines, Kafka, gRPC. Familiar with Terraform."

	first, err := extractor.Extract(context.Background(), text)
	require.NoError(t, err)
	second, err := extractor.Extract(context.Background(), text)
	require.NoError(t, err)

	assert.Equal(t, first.TechnicalSkills, second.TechnicalSkills)
	assert.Equal(t, first.Summary, second.Summary)
}
