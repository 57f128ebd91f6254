package repository

import (
	"context"
	"time"

	"github.com/nexira/nexira/internal/domain/entity"
)

// MessageRepository 消息仓储接口（遵循依赖倒置原则）
// 定义在领域层，实现在基础设施层
type MessageRepository interface {
	// Save 保存消息, 回填自增 ID
	Save(ctx context.Context, message *entity.Message) error

	// FindByID 根据ID查找消息
	FindByID(ctx context.Context, id int64) (*entity.Message, error)

	// FindRecent 按时间正序返回最近 limit 条消息
	FindRecent(ctx context.Context, limit int) ([]*entity.Message, error)

	// FindRange 返回 ID 闭区间 [startID, endID] 内的消息, 时间正序
	FindRange(ctx context.Context, startID, endID int64) ([]*entity.Message, error)

	// FindSince 返回某时刻之后的全部消息, 时间正序
	FindSince(ctx context.Context, since time.Time) ([]*entity.Message, error)

	// FindPage 分页返回消息 (时间正序) 和总条数
	FindPage(ctx context.Context, limit, offset int) ([]*entity.Message, int64, error)

	// FindAll 返回全部消息, 时间正序 (线索重建用)
	FindAll(ctx context.Context) ([]*entity.Message, error)

	// MaxID 当前最大消息 ID, 无消息时为 0
	MaxID(ctx context.Context) (int64, error)

	// Count 消息总数
	Count(ctx context.Context) (int64, error)

	// CountSince 某时刻之后的消息数
	CountSince(ctx context.Context, since time.Time) (int64, error)

	// CountByRole 某角色的消息数 (对话计数用 role=user)
	CountByRole(ctx context.Context, role string) (int64, error)

	// SetFeedback 记录用户对某条消息的反馈
	SetFeedback(ctx context.Context, id int64, feedback string) error
}
