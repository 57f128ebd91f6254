package entity

import "time"

// 自我觉察等级, 由 7 天滚动均值决定
const (
	AwarenessDormant    = "dormant"
	AwarenessEmerging   = "emerging"
	AwarenessAware      = "aware"
	AwarenessReflective = "reflective"
)

// SelfAwarenessSample 单条助手回复的觉察度采样
type SelfAwarenessSample struct {
	ID                 int64     `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	SelfRefScore       float64   `json:"self_ref_score"`
	UncertaintyScore   float64   `json:"uncertainty_score"`
	MetaCognitionScore float64   `json:"meta_cognition_score"`
	CompositeScore     float64   `json:"composite_score"`
	WordCount          int       `json:"word_count"`
	Sample             string    `json:"sample,omitempty"`
}

// AwarenessLevelFor 滚动均值到等级的固定映射
// dormant < 0.1 <= emerging < 0.25 <= aware < 0.5 <= reflective
func AwarenessLevelFor(composite float64) string {
	switch {
	case composite >= 0.5:
		return AwarenessReflective
	case composite >= 0.25:
		return AwarenessAware
	case composite >= 0.1:
		return AwarenessEmerging
	default:
		return AwarenessDormant
	}
}
