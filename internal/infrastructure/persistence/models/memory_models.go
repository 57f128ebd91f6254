package models

import "time"

// KnowledgeFactModel 长期知识模型
type KnowledgeFactModel struct {
	ID                int64   `gorm:"primaryKey;autoIncrement"`
	Topic             string  `gorm:"uniqueIndex;size:255;not null"`
	Content           string  `gorm:"type:text;not null"`
	Source            string  `gorm:"size:64"`
	Confidence        float64 `gorm:"not null"`
	LearnedAt         time.Time
	LastAccessed      time.Time
	ConfirmationCount int    `gorm:"not null;default:1"`
	SourceWeeks       string `gorm:"type:text"` // JSON encoded list
}

// TableName 指定表名
func (KnowledgeFactModel) TableName() string {
	return "knowledge_base"
}

// EpisodeModel 剧情摘要模型
type EpisodeModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	CreatedAt  time.Time `gorm:"index"`
	WeekNumber int
	RangeStart int64  `gorm:"not null"`
	RangeEnd   int64  `gorm:"index;not null"`
	Summary    string `gorm:"type:text;not null"`
	Topics     string `gorm:"type:text"` // JSON encoded list
	Importance float64
	Committed  bool `gorm:"index;not null;default:false"`
	Archived   bool `gorm:"not null;default:false"`
}

// TableName 指定表名
func (EpisodeModel) TableName() string {
	return "episode_summaries"
}

// WeeklySynthesisModel 周归纳模型
type WeeklySynthesisModel struct {
	ID                  int64  `gorm:"primaryKey;autoIncrement"`
	ISOWeek             string `gorm:"uniqueIndex;size:16;not null"`
	WeekStart           time.Time
	WeekEnd             time.Time
	Synthesis           string `gorm:"type:text"`
	ConfirmedTopics     string `gorm:"type:text"` // JSON encoded list
	TentativeTopics     string `gorm:"type:text"` // JSON encoded list
	Corrections         string `gorm:"type:text"`
	KnowledgeItemsAdded int
	CreatedAt           time.Time
}

// TableName 指定表名
func (WeeklySynthesisModel) TableName() string {
	return "weekly_syntheses"
}
