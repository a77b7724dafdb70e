package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-match-go/internal/types"
)

func matcherProfile() *types.SkillProfile {
	return &types.SkillProfile{
		TechnicalSkills:      []string{"Python", "Docker", "Kubernetes"},
		ProgrammingLanguages: []string{"Python", "Java"},
	}
}

func TestMatcher_ScoreAndOrder(t *testing.T) {
	matcher := NewMatcher(0.3)

	jobs := []types.JobForMatching{
		{
			JobID:           "job-1",
			Title:           "后端工程师",
			Company:         "Acme",
			KeyRequirements: []string{"Python", "Docker", "Terraform", "Ansible"},
		},
		{
			JobID:           "job-2",
			Title:           "平台工程师",
			Company:         "Globex",
			KeyRequirements: []string{"Python", "Java"},
		},
		{
			JobID:           "job-3",
			Title:           "前端工程师",
			Company:         "Initech",
			KeyRequirements: []string{"Typescript", "Css"},
		},
	}

	results := matcher.Match(matcherProfile(), jobs)
	require.Len(t, results, 2)

	// job-2 全部命中得分100，排在job-1(2/4=50)之前; job-3无交集被过滤
	assert.Equal(t, "job-2", results[0].JobID)
	assert.Equal(t, 100.0, results[0].MatchScore)
	assert.Equal(t, []string{"Python", "Java"}, results[0].MatchingSkills)

	assert.Equal(t, "job-1", results[1].JobID)
	assert.Equal(t, 50.0, results[1].MatchScore)
	assert.Equal(t, []string{"Python", "Docker"}, results[1].MatchingSkills)
}

func TestMatcher_ThresholdFiltersLowScores(t *testing.T) {
	matcher := NewMatcher(0.3)

	jobs := []types.JobForMatching{
		{
			JobID:           "job-low",
			KeyRequirements: []string{"Python", "Rust", "Scala", "Haskell", "Erlang"},
		},
	}

	// 1/5 = 0.2 低于阈值
	results := matcher.Match(matcherProfile(), jobs)
	assert.Empty(t, results)
}

func TestMatcher_PreferredQualificationsCountTowardScore(t *testing.T) {
	matcher := NewMatcher(0.3)

	jobs := []types.JobForMatching{
		{
			JobID:                   "job-1",
			KeyRequirements:         []string{"Python"},
			PreferredQualifications: []string{"Docker", "Terraform"},
		},
	}

	results := matcher.Match(matcherProfile(), jobs)
	require.Len(t, results, 1)
	// 交集{Python, Docker}，分母为3项要求
	assert.Equal(t, 66.7, results[0].MatchScore)
	assert.Equal(t, []string{"Python", "Docker"}, results[0].MatchingSkills)
}

func TestMatcher_EmptyRequirementsSkipped(t *testing.T) {
	matcher := NewMatcher(0.3)

	jobs := []types.JobForMatching{
		{JobID: "job-empty"},
		{JobID: "job-real", KeyRequirements: []string{"Python"}},
	}

	results := matcher.Match(matcherProfile(), jobs)
	require.Len(t, results, 1)
	assert.Equal(t, "job-real", results[0].JobID)
}

func TestMatcher_StableOrderOnTies(t *testing.T) {
	matcher := NewMatcher(0.3)

	jobs := []types.JobForMatching{
		{JobID: "job-a", KeyRequirements: []string{"Python", "Rust"}},
		{JobID: "job-b", KeyRequirements: []string{"Java", "Scala"}},
		{JobID: "job-c", KeyRequirements: []string{"Docker", "Terraform"}},
	}

	// 三个职位都是1/2=50分，结果保持传入顺序
	results := matcher.Match(matcherProfile(), jobs)
	require.Len(t, results, 3)
	assert.Equal(t, "job-a", results[0].JobID)
	assert.Equal(t, "job-b", results[1].JobID)
	assert.Equal(t, "job-c", results[2].JobID)
}

func TestMatcher_NilProfile(t *testing.T) {
	matcher := NewMatcher(0.3)
	assert.Nil(t, matcher.Match(nil, []types.JobForMatching{{JobID: "job-1", KeyRequirements: []string{"Python"}}}))
}

func TestMatcher_DuplicateRequirementsCountedOnce(t *testing.T) {
	matcher := NewMatcher(0.3)

	jobs := []types.JobForMatching{
		{
			JobID:                   "job-1",
			KeyRequirements:         []string{"Python", "Python"},
			PreferredQualifications: []string{"Python"},
		},
	}

	results := matcher.Match(matcherProfile(), jobs)
	require.Len(t, results, 1)
	assert.Equal(t, 100.0, results[0].MatchScore)
	assert.Equal(t, []string{"Python"}, results[0].MatchingSkills)
}
