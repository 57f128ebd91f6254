package entity

import "time"

// 兴趣等级, 由提及次数唯一决定
const (
	InterestCasual     = "casual"
	InterestInterested = "interested"
	InterestDeep       = "deep"
	InterestPassion    = "passion"
)

// Interest 按话题累计的兴趣计数器
type Interest struct {
	ID           int64     `json:"id"`
	Topic        string    `json:"topic"`
	Level        string    `json:"level"`
	MentionCount int       `json:"mention_count"`
	FirstMention time.Time `json:"first_mention"`
	LastActivity time.Time `json:"last_activity"`
}

// InterestLevelFor 提及次数到等级的固定映射
// 1-4 casual, 5-14 interested, 15-29 deep, 30+ passion
func InterestLevelFor(mentionCount int) string {
	switch {
	case mentionCount >= 30:
		return InterestPassion
	case mentionCount >= 15:
		return InterestDeep
	case mentionCount >= 5:
		return InterestInterested
	default:
		return InterestCasual
	}
}

// Touch 记录一次提及并重算等级
func (i *Interest) Touch(now time.Time) {
	i.MentionCount++
	i.Level = InterestLevelFor(i.MentionCount)
	i.LastActivity = now
}
