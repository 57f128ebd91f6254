package models

import "time"

// TraitModel 人格维度模型
type TraitModel struct {
	ID          int64   `gorm:"primaryKey;autoIncrement"`
	Name        string  `gorm:"uniqueIndex;size:64;not null"`
	Value       float64 `gorm:"not null"`
	Type        string  `gorm:"size:32"`
	OriginStory string  `gorm:"type:text"`
	LastUpdated time.Time
	Active      bool `gorm:"not null;default:true"`
}

// TableName 指定表名
func (TraitModel) TableName() string {
	return "personality_traits"
}

// ChangeModel 人格变更历史模型
type ChangeModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"index;not null"`
	Trait     string    `gorm:"size:64;not null"`
	OldValue  float64   `gorm:"not null"`
	NewValue  float64   `gorm:"not null"`
	Reason    string    `gorm:"size:255"`
}

// TableName 指定表名
func (ChangeModel) TableName() string {
	return "personality_changes"
}

// SnapshotModel 人格快照模型
type SnapshotModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Name        string    `gorm:"size:128"`
	Timestamp   time.Time `gorm:"index;not null"`
	Data        string    `gorm:"type:text;not null"` // JSON encoded trait map
	Type        string    `gorm:"size:32"`
	Description string    `gorm:"type:text"`
}

// TableName 指定表名
func (SnapshotModel) TableName() string {
	return "personality_snapshots"
}
