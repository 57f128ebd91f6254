package entity

import "time"

// 日记类型
const (
	JournalDailyReflection = "daily_reflection"
	JournalPhilosophical   = "philosophical"
)

// JournalEntry 日记条目, Content 落盘时加密
type JournalEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Mood      string    `json:"mood,omitempty"`
	Topics    []string  `json:"topics,omitempty"`
	WordCount int       `json:"word_count"`
}
