package entity

import "time"

// 技能熟练度等级
const (
	SkillStrong     = "strong"
	SkillCompetent  = "competent"
	SkillDeveloping = "developing"
)

// Skill 按领域累计的能力观测, Score 是滚动均值
type Skill struct {
	ID           int64     `json:"id"`
	Domain       string    `json:"domain"`
	Score        float64   `json:"score"`
	Observations int       `json:"observations"`
	Level        string    `json:"level"`
	LastObserved time.Time `json:"last_observed"`
}

// SkillLevelFor 滚动均值到等级的固定映射
func SkillLevelFor(score float64) string {
	switch {
	case score >= 0.75:
		return SkillStrong
	case score >= 0.55:
		return SkillCompetent
	default:
		return SkillDeveloping
	}
}

// Observe 并入一次置信度观测并重算等级
func (s *Skill) Observe(confidence float64, now time.Time) {
	s.Score = (s.Score*float64(s.Observations) + confidence) / float64(s.Observations+1)
	s.Observations++
	s.Level = SkillLevelFor(s.Score)
	s.LastObserved = now
}
