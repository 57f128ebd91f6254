package models

import "time"

// MessageModel 数据库消息模型
type MessageModel struct {
	ID              int64     `gorm:"primaryKey;autoIncrement"`
	Timestamp       time.Time `gorm:"index;not null"`
	Role            string    `gorm:"size:16;not null"`
	Content         string    `gorm:"type:text;not null"`
	Importance      float64   `gorm:"not null;default:0.5"`
	EmotionalWeight float64   `gorm:"not null;default:0.5"`
	ContextTags     string    `gorm:"type:text"` // JSON encoded list
	Platform        string    `gorm:"size:32"`
	Version         int
	UserFeedback    string `gorm:"size:32"`
}

// TableName 指定表名
func (MessageModel) TableName() string {
	return "chat_history"
}

// ThreadModel 话题线索模型
type ThreadModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Name         string    `gorm:"size:255;not null"`
	Keywords     string    `gorm:"type:text"` // JSON encoded list
	MessageCount int       `gorm:"not null;default:0"`
	StartedAt    time.Time
	LastActivity time.Time `gorm:"index"`
}

// TableName 指定表名
func (ThreadModel) TableName() string {
	return "threads"
}

// ThreadMessageModel 线索-消息关联模型
type ThreadMessageModel struct {
	ThreadID  int64 `gorm:"primaryKey"`
	MessageID int64 `gorm:"primaryKey"`
}

// TableName 指定表名
func (ThreadMessageModel) TableName() string {
	return "thread_messages"
}

// StateModel 运行状态键值模型
type StateModel struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName 指定表名
func (StateModel) TableName() string {
	return "runtime_state"
}
