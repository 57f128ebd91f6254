package entity

import "time"

// KnowledgeFact 长期知识条目, topic 为去重键
type KnowledgeFact struct {
	ID                int64     `json:"id"`
	Topic             string    `json:"topic"`
	Content           string    `json:"content"`
	Source            string    `json:"source"`
	Confidence        float64   `json:"confidence"`
	LearnedAt         time.Time `json:"learned_at"`
	LastAccessed      time.Time `json:"last_accessed"`
	ConfirmationCount int       `json:"confirmation_count"`
	SourceWeeks       []int     `json:"source_weeks,omitempty"`
}

// EpisodeSummary 一段连续消息区间的剧情摘要
// [RangeStart, RangeEnd] 是它覆盖的消息 ID 闭区间
type EpisodeSummary struct {
	ID         int64     `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	WeekNumber int       `json:"week_number"`
	RangeStart int64     `json:"message_range_start"`
	RangeEnd   int64     `json:"message_range_end"`
	Summary    string    `json:"summary"`
	Topics     []string  `json:"topics,omitempty"`
	Importance float64   `json:"importance"`
	Committed  bool      `json:"committed"`
	Archived   bool      `json:"archived"`
}

// WeeklySynthesis 每 ISO 周最多一次的剧情归纳
type WeeklySynthesis struct {
	ID                  int64     `json:"id"`
	ISOWeek             string    `json:"iso_week"` // "2025-W33"
	WeekStart           time.Time `json:"week_start"`
	WeekEnd             time.Time `json:"week_end"`
	Synthesis           string    `json:"synthesis"`
	ConfirmedTopics     []string  `json:"confirmed_topics,omitempty"`
	TentativeTopics     []string  `json:"tentative_topics,omitempty"`
	Corrections         string    `json:"corrections,omitempty"`
	KnowledgeItemsAdded int       `json:"knowledge_items_added"`
	CreatedAt           time.Time `json:"created_at"`
}
