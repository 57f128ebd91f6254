package entity

import "time"

// 好奇心条目状态
const (
	CuriosityPending   = "pending"
	CuriosityCompleted = "completed"
)

// CuriosityItem 待研究的话题, pending 集合构成工作队列
type CuriosityItem struct {
	ID            int64      `json:"id"`
	Topic         string     `json:"topic"`
	Priority      float64    `json:"priority"`
	AddedAt       time.Time  `json:"added_at"`
	Reason        string     `json:"reason"`
	Status        string     `json:"status"`
	ResearchNotes string     `json:"research_notes,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// NewCuriosityItem 创建 pending 状态的条目
func NewCuriosityItem(topic, reason string, priority float64) *CuriosityItem {
	return &CuriosityItem{
		Topic:    topic,
		Priority: priority,
		AddedAt:  time.Now(),
		Reason:   reason,
		Status:   CuriosityPending,
	}
}

// Complete 记录研究结论并标记完成, pending → completed 只发生一次
func (c *CuriosityItem) Complete(notes string) error {
	if c.Status == CuriosityCompleted {
		return ErrAlreadyCompleted
	}
	now := time.Now()
	c.Status = CuriosityCompleted
	c.ResearchNotes = notes
	c.CompletedAt = &now
	return nil
}
