package models

import "time"

// JournalModel 日记模型, Content 存密文
type JournalModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"index;not null"`
	Type      string    `gorm:"index;size:32;not null"`
	Title     string    `gorm:"size:255"`
	Content   string    `gorm:"type:text;not null"`
	Mood      string    `gorm:"size:64"`
	Topics    string    `gorm:"type:text"` // JSON encoded list
	WordCount int
}

// TableName 指定表名
func (JournalModel) TableName() string {
	return "journal_entries"
}

// AwarenessModel 自我觉察采样模型
type AwarenessModel struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement"`
	Timestamp          time.Time `gorm:"index;not null"`
	SelfRefScore       float64
	UncertaintyScore   float64
	MetaCognitionScore float64
	CompositeScore     float64 `gorm:"not null"`
	WordCount          int
	Sample             string `gorm:"type:text"`
}

// TableName 指定表名
func (AwarenessModel) TableName() string {
	return "self_awareness_samples"
}

// OperatingNoteModel 行事规则模型
type OperatingNoteModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Key         string `gorm:"uniqueIndex;size:128;not null"`
	Value       string `gorm:"type:text;not null"`
	Created     time.Time
	LastUpdated time.Time
	UpdateCount int `gorm:"not null;default:1"`
}

// TableName 指定表名
func (OperatingNoteModel) TableName() string {
	return "operating_notes"
}

// MistakeModel 纠错记录模型
type MistakeModel struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	Timestamp      time.Time `gorm:"index;not null"`
	Topic          string    `gorm:"size:255;not null"`
	Correction     string    `gorm:"type:text"`
	BehavioralRule string    `gorm:"type:text"`
	AppliedCount   int       `gorm:"not null;default:0"`
}

// TableName 指定表名
func (MistakeModel) TableName() string {
	return "mistakes"
}

// UserAttrModel 用户画像模型
type UserAttrModel struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	Attribute     string `gorm:"uniqueIndex;size:128;not null"`
	Value         string `gorm:"type:text;not null"`
	Confidence    float64
	LastUpdated   time.Time
	EvidenceCount int `gorm:"not null;default:1"`
}

// TableName 指定表名
func (UserAttrModel) TableName() string {
	return "user_model"
}

// AIValueModel 核心价值观模型
type AIValueModel struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	Statement      string `gorm:"type:text;not null"`
	Priority       float64
	DevelopedAt    time.Time
	OriginStory    string `gorm:"type:text"`
	InfluenceCount int    `gorm:"not null;default:0"`
}

// TableName 指定表名
func (AIValueModel) TableName() string {
	return "ai_values"
}

// ConsolidationRunModel 夜间整理记录模型
type ConsolidationRunModel struct {
	ID                 int64  `gorm:"primaryKey;autoIncrement"`
	RunDate            string `gorm:"uniqueIndex;size:16;not null"`
	FactsExtracted     int
	CuriosityProcessed int
	JournalsWritten    int
	SnapshotWritten    bool
	DurationSeconds    float64
	Summary            string `gorm:"type:text"`
	CreatedAt          time.Time
}

// TableName 指定表名
func (ConsolidationRunModel) TableName() string {
	return "consolidation_runs"
}
