package repository

import (
	"context"

	"github.com/nexira/nexira/internal/domain/entity"
)

// CuriosityRepository 好奇心队列仓储接口
type CuriosityRepository interface {
	// Save 保存条目 (新建或更新)
	Save(ctx context.Context, item *entity.CuriosityItem) error

	// PendingExists 按小写 topic 判断 pending 队列里是否已有同题
	PendingExists(ctx context.Context, topicLower string) (bool, error)

	// FindPending 按优先级降序、加入时间升序返回待研究条目
	FindPending(ctx context.Context, limit int) ([]*entity.CuriosityItem, error)

	// FindRecent 按加入时间倒序返回条目 (含已完成)
	FindRecent(ctx context.Context, limit int) ([]*entity.CuriosityItem, error)

	// CountPending 待研究条目数
	CountPending(ctx context.Context) (int64, error)

	// CountCompleted 已完成条目数
	CountCompleted(ctx context.Context) (int64, error)
}
