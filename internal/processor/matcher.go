package processor

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"job-match-go/internal/logger"
	"job-match-go/internal/types"
)

// Matcher 按技能重合度为候选人匹配职位。
// 得分以职位要求数量为分母: |候选技能 ∩ 职位要求| / |职位要求|。
type Matcher struct {
	threshold float64
	logger    zerolog.Logger
}

// NewMatcher 创建匹配器，threshold非正数时使用0.3
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = 0.3
	}
	return &Matcher{
		threshold: threshold,
		logger:    logger.Logger.With().Str("component", "matcher").Logger(),
	}
}

// Match 对一组职位计算匹配得分，返回达到阈值的职位并按得分降序排列。
// 候选集合 = 技术技能 ∪ 编程语言; 职位集合 = 关键要求 ∪ 优先资格。
// 职位要求为空时得分为0而非错误; 得分相同时保持传入的职位顺序。
func (m *Matcher) Match(profile *types.SkillProfile, jobs []types.JobForMatching) []types.MatchResult {
	if profile == nil {
		return nil
	}

	userSkills := make(map[string]struct{})
	for _, s := range profile.TechnicalSkills {
		userSkills[s] = struct{}{}
	}
	for _, s := range profile.ProgrammingLanguages {
		userSkills[s] = struct{}{}
	}

	var results []types.MatchResult
	for _, job := range jobs {
		jobSkills := make(map[string]struct{})
		for _, s := range job.KeyRequirements {
			jobSkills[s] = struct{}{}
		}
		for _, s := range job.PreferredQualifications {
			jobSkills[s] = struct{}{}
		}
		if len(jobSkills) == 0 {
			continue // 无要求的职位得分为0，不会达到阈值
		}

		// 按职位要求的声明顺序收集交集，保证结果可复现
		var common []string
		commonSeen := make(map[string]struct{})
		for _, s := range append(append([]string{}, job.KeyRequirements...), job.PreferredQualifications...) {
			if _, dup := commonSeen[s]; dup {
				continue
			}
			if _, ok := userSkills[s]; ok {
				commonSeen[s] = struct{}{}
				common = append(common, s)
			}
		}

		score := float64(len(common)) / float64(len(jobSkills))
		if score < m.threshold {
			continue
		}

		results = append(results, types.MatchResult{
			JobID:          job.JobID,
			Title:          job.Title,
			Company:        job.Company,
			MatchScore:     math.Round(score*1000) / 10, // 百分制，保留一位小数
			MatchingSkills: common,
		})
	}

	// 稳定排序: 相同得分保持职位的枚举顺序
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].MatchScore > results[b].MatchScore
	})

	m.logger.Debug().Int("jobs", len(jobs)).Int("matched", len(results)).Msg("职位匹配完成")
	return results
}
