package entity

import "time"

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// 用户反馈类型
const (
	FeedbackPositive   = "positive"
	FeedbackNegative   = "negative"
	FeedbackCorrection = "correction"
)

// Message 原始对话消息, 只追加不修改
type Message struct {
	ID              int64     `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Role            string    `json:"role"`
	Content         string    `json:"content"`
	Importance      float64   `json:"importance"`
	EmotionalWeight float64   `json:"emotional_weight"`
	ContextTags     []string  `json:"context_tags,omitempty"`
	Platform        string    `json:"platform"`
	Version         int       `json:"version"`
	UserFeedback    string    `json:"user_feedback,omitempty"`
}

// NewMessage 创建新消息
func NewMessage(role, content string) (*Message, error) {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		return nil, ErrInvalidMessageRole
	}
	if content == "" {
		return nil, ErrEmptyMessageContent
	}

	return &Message{
		Timestamp:       time.Now(),
		Role:            role,
		Content:         content,
		Importance:      0.5,
		EmotionalWeight: 0.5,
		Platform:        "web",
	}, nil
}

// IsFromUser 判断是否来自用户
func (m *Message) IsFromUser() bool {
	return m.Role == RoleUser
}

// IsFromAssistant 判断是否来自助手
func (m *Message) IsFromAssistant() bool {
	return m.Role == RoleAssistant
}
