package entity

import "time"

// OperatingNote 自我总结的行事风格规则, key 唯一
// 会被拼回未来对话的系统提示里
type OperatingNote struct {
	ID          int64     `json:"id"`
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Created     time.Time `json:"created"`
	LastUpdated time.Time `json:"last_updated"`
	UpdateCount int       `json:"update_count"`
}

// Mistake 从用户纠错中提炼的行为规则
type Mistake struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Topic          string    `json:"topic"`
	Correction     string    `json:"correction"`
	BehavioralRule string    `json:"behavioral_rule,omitempty"`
	AppliedCount   int       `json:"applied_count"`
}

// AIValue 核心价值观, 注入系统提示的取前 5 条
type AIValue struct {
	ID             int64     `json:"id"`
	Statement      string    `json:"statement"`
	Priority       float64   `json:"priority"`
	DevelopedAt    time.Time `json:"developed_at"`
	OriginStory    string    `json:"origin_story,omitempty"`
	InfluenceCount int       `json:"influence_count"`
}

// UserModelAttr 对用户的认知画像, attribute 唯一
type UserModelAttr struct {
	ID            int64     `json:"id"`
	Attribute     string    `json:"attribute"`
	Value         string    `json:"value"`
	Confidence    float64   `json:"confidence"`
	LastUpdated   time.Time `json:"last_updated"`
	EvidenceCount int       `json:"evidence_count"`
}
