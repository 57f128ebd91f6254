package entity

import "time"

// Thread 按关键词聚出的话题线索
type Thread struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Keywords     []string  `json:"keywords,omitempty"`
	MessageCount int       `json:"message_count"`
	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`
}

// ThreadMessage 线索到消息的归属关系
type ThreadMessage struct {
	ThreadID  int64 `json:"thread_id"`
	MessageID int64 `json:"message_id"`
}
