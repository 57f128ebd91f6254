package repository

import (
	"context"

	"github.com/nexira/nexira/internal/domain/entity"
)

// PersonalityRepository 人格状态仓储接口
type PersonalityRepository interface {
	// FindTraits 返回全部激活维度
	FindTraits(ctx context.Context) ([]*entity.PersonalityTrait, error)

	// SaveTrait 按名称 upsert 维度值
	SaveTrait(ctx context.Context, trait *entity.PersonalityTrait) error

	// CountTraits 维度行数, 用于首启播种判断
	CountTraits(ctx context.Context) (int64, error)

	// ResetTraits 把全部维度重置到指定值
	ResetTraits(ctx context.Context, value float64) error

	// LogChange 追加一条变更历史
	LogChange(ctx context.Context, change *entity.PersonalityChange) error

	// FindChanges 按时间倒序返回变更历史
	FindChanges(ctx context.Context, limit int) ([]*entity.PersonalityChange, error)

	// CountChanges 变更历史总数
	CountChanges(ctx context.Context) (int64, error)

	// SaveSnapshot 写入一份人格快照
	SaveSnapshot(ctx context.Context, snapshot *entity.PersonalitySnapshot) error

	// FindSnapshots 按时间倒序返回快照
	FindSnapshots(ctx context.Context, limit int) ([]*entity.PersonalitySnapshot, error)
}
