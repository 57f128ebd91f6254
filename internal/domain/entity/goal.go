package entity

import "time"

// 目标类型
const (
	GoalRelationship  = "relationship"
	GoalPersonality   = "personality"
	GoalKnowledge     = "knowledge"
	GoalGrowth        = "growth"
	GoalPhilosophical = "philosophical"
	GoalSelfAuthored  = "self_authored"
	GoalCreative      = "creative"
)

// 目标状态
const (
	GoalActive    = "active"
	GoalCompleted = "completed"
)

// 目标来源
const (
	AuthoredBySystem = "system"
	AuthoredBySelf   = "self"
)

// Goal 可量化的成长目标
// Progress 是 0-100 的百分比, 由 Current/Target 推出
type Goal struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Current     float64    `json:"current"`
	Target      float64    `json:"target"`
	Progress    float64    `json:"progress"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	AuthoredBy  string     `json:"authored_by"`
	Description string     `json:"description,omitempty"`
}

// IsValidGoalType 校验目标类型
func IsValidGoalType(t string) bool {
	switch t {
	case GoalRelationship, GoalPersonality, GoalKnowledge, GoalGrowth,
		GoalPhilosophical, GoalSelfAuthored, GoalCreative:
		return true
	}
	return false
}

// NewGoal 创建 active 状态的目标
func NewGoal(name, goalType string, target float64, description, authoredBy string) (*Goal, error) {
	if !IsValidGoalType(goalType) {
		return nil, ErrInvalidGoalType
	}
	if target <= 0 {
		target = 1.0
	}
	return &Goal{
		Name:        name,
		Type:        goalType,
		Target:      target,
		Status:      GoalActive,
		CreatedAt:   time.Now(),
		AuthoredBy:  authoredBy,
		Description: description,
	}, nil
}

// Advance 推进进度, current 封顶在 target
// 返回本次调用是否把目标推到完成
func (g *Goal) Advance(delta float64) bool {
	if g.Status == GoalCompleted {
		return false
	}
	g.Current = min(g.Current+delta, g.Target)
	g.recomputeProgress()
	return g.checkCompleted()
}

// SetCurrent 直接设置进度值, 只允许前进
func (g *Goal) SetCurrent(value float64) bool {
	if g.Status == GoalCompleted || value <= g.Current {
		return false
	}
	g.Current = min(value, g.Target)
	g.recomputeProgress()
	return g.checkCompleted()
}

func (g *Goal) recomputeProgress() {
	if g.Target > 0 {
		g.Progress = g.Current / g.Target * 100
	}
}

func (g *Goal) checkCompleted() bool {
	if g.Current >= g.Target {
		now := time.Now()
		g.Status = GoalCompleted
		g.CompletedAt = &now
		return true
	}
	return false
}
