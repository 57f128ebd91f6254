package models

import "time"

// ActivityModel 活动审计模型
type ActivityModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"index;not null"`
	Type      string    `gorm:"index;size:32;not null"`
	Label     string    `gorm:"size:255"`
	Detail    string    `gorm:"type:text"`
	Extra     string    `gorm:"type:text"` // JSON encoded map
}

// TableName 指定表名
func (ActivityModel) TableName() string {
	return "activity_log"
}

// EmailLogModel 出信记录模型
type EmailLogModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"index;not null"`
	Kind      string    `gorm:"index;size:32;not null"`
	Recipient string    `gorm:"size:255"`
	Subject   string    `gorm:"size:255"`
	Status    string    `gorm:"size:16;not null"`
	Error     string    `gorm:"type:text"`
}

// TableName 指定表名
func (EmailLogModel) TableName() string {
	return "email_log"
}

// SearchLogModel 搜索历史模型
type SearchLogModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Timestamp   time.Time `gorm:"index;not null"`
	Query       string    `gorm:"size:512;not null"`
	Source      string    `gorm:"size:32"`
	ResultCount int
	Summary     string `gorm:"type:text"`
}

// TableName 指定表名
func (SearchLogModel) TableName() string {
	return "search_history"
}

// ErrorLogModel 错误记录模型
type ErrorLogModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"index;not null"`
	Level     string    `gorm:"index;size:16;not null"`
	Source    string    `gorm:"size:64;not null"`
	Message   string    `gorm:"size:512;not null"`
	Details   string    `gorm:"type:text"`
	Resolved  bool      `gorm:"index;not null;default:false"`
}

// TableName 指定表名
func (ErrorLogModel) TableName() string {
	return "error_logs"
}

// CreativeWorkModel 创作产物模型
type CreativeWorkModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"index;not null"`
	Mode      string    `gorm:"index;size:16;not null"`
	Language  string    `gorm:"size:32"`
	Prompt    string    `gorm:"type:text"`
	Content   string    `gorm:"type:text;not null"`
	Executed  bool      `gorm:"not null;default:false"`
	Output    string    `gorm:"type:text"`
}

// TableName 指定表名
func (CreativeWorkModel) TableName() string {
	return "creative_works"
}
