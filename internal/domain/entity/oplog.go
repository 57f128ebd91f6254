package entity

import "time"

// 邮件类型
const (
	EmailDailySummary = "daily_summary"
	EmailTest         = "test"
	EmailManual       = "manual"
)

// EmailLogEntry 出信记录
type EmailLogEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Status    string    `json:"status"` // sent, failed
	Error     string    `json:"error,omitempty"`
}

// SearchLogEntry 联网搜索记录
type SearchLogEntry struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Query       string    `json:"query"`
	Source      string    `json:"source"`
	ResultCount int       `json:"result_count"`
	Summary     string    `json:"summary,omitempty"`
}

// 错误级别
const (
	ErrorLevelWarning  = "warning"
	ErrorLevelError    = "error"
	ErrorLevelCritical = "critical"
)

// ErrorEntry 后台任务与副作用的错误记录, 供排障界面查看与标记处理
type ErrorEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Resolved  bool      `json:"resolved"`
}
