package models

import "time"

// CuriosityModel 好奇心条目模型
type CuriosityModel struct {
	ID            int64   `gorm:"primaryKey;autoIncrement"`
	Topic         string  `gorm:"size:255;not null"`
	Priority      float64 `gorm:"not null"`
	AddedAt       time.Time
	Reason        string `gorm:"type:text"`
	Status        string `gorm:"index;size:16;not null"`
	ResearchNotes string `gorm:"type:text"`
	CompletedAt   *time.Time
}

// TableName 指定表名
func (CuriosityModel) TableName() string {
	return "curiosity_queue"
}

// InterestModel 兴趣计数模型
type InterestModel struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Topic        string `gorm:"uniqueIndex;size:128;not null"`
	Level        string `gorm:"size:16;not null"`
	MentionCount int    `gorm:"not null;default:0"`
	FirstMention time.Time
	LastActivity time.Time
}

// TableName 指定表名
func (InterestModel) TableName() string {
	return "interests"
}

// SkillModel 技能观测模型
type SkillModel struct {
	ID           int64   `gorm:"primaryKey;autoIncrement"`
	Domain       string  `gorm:"uniqueIndex;size:64;not null"`
	Score        float64 `gorm:"not null"`
	Observations int     `gorm:"not null;default:0"`
	Level        string  `gorm:"size:16"`
	LastObserved time.Time
}

// TableName 指定表名
func (SkillModel) TableName() string {
	return "skills"
}

// GoalModel 目标模型
type GoalModel struct {
	ID          int64   `gorm:"primaryKey;autoIncrement"`
	Name        string  `gorm:"size:255;not null"`
	Type        string  `gorm:"index;size:32;not null"`
	Current     float64 `gorm:"not null;default:0"`
	Target      float64 `gorm:"not null"`
	Progress    float64 `gorm:"not null;default:0"`
	Status      string  `gorm:"index;size:16;not null"`
	CreatedAt   time.Time
	CompletedAt *time.Time
	AuthoredBy  string `gorm:"size:16"`
	Description string `gorm:"type:text"`
}

// TableName 指定表名
func (GoalModel) TableName() string {
	return "goals"
}
