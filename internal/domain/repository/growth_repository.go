package repository

import (
	"context"

	"github.com/nexira/nexira/internal/domain/entity"
)

// InterestRepository 兴趣计数仓储接口
type InterestRepository interface {
	// FindByTopic 精确查找, 不存在时返回 NotFound
	FindByTopic(ctx context.Context, topic string) (*entity.Interest, error)

	// Save 保存兴趣 (新建或更新)
	Save(ctx context.Context, interest *entity.Interest) error

	// FindAll 按提及次数降序返回全部兴趣
	FindAll(ctx context.Context) ([]*entity.Interest, error)

	// FindTop 按提及次数降序返回前 n 个
	FindTop(ctx context.Context, n int) ([]*entity.Interest, error)

	// Count 兴趣话题总数
	Count(ctx context.Context) (int64, error)
}

// SkillRepository 技能观测仓储接口
type SkillRepository interface {
	// FindByDomain 精确查找, 不存在时返回 NotFound
	FindByDomain(ctx context.Context, domain string) (*entity.Skill, error)

	// Save 保存技能 (新建或更新)
	Save(ctx context.Context, skill *entity.Skill) error

	// FindAll 按均值降序返回全部技能
	FindAll(ctx context.Context) ([]*entity.Skill, error)
}

// GoalRepository 目标仓储接口
type GoalRepository interface {
	// Save 保存目标 (新建或更新)
	Save(ctx context.Context, goal *entity.Goal) error

	// FindActive 按进度降序返回 active 目标
	FindActive(ctx context.Context) ([]*entity.Goal, error)

	// FindActiveByType 返回某类型的 active 目标
	FindActiveByType(ctx context.Context, goalType string) ([]*entity.Goal, error)

	// FindAll 按创建时间倒序返回全部目标
	FindAll(ctx context.Context, limit int) ([]*entity.Goal, error)

	// CountActive active 目标数, 用于首启播种判断
	CountActive(ctx context.Context) (int64, error)

	// CountCompleted 已完成目标数
	CountCompleted(ctx context.Context) (int64, error)
}
