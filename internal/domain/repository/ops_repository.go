package repository

import (
	"context"

	"github.com/nexira/nexira/internal/domain/entity"
)

// ActivityRepository 活动审计仓储接口
type ActivityRepository interface {
	// Log 追加一条活动记录
	Log(ctx context.Context, event *entity.ActivityEvent) error

	// FindRecent 按时间倒序返回活动
	FindRecent(ctx context.Context, limit int) ([]*entity.ActivityEvent, error)

	// FindRecentByType 按类型、时间倒序返回活动
	FindRecentByType(ctx context.Context, eventType string, limit int) ([]*entity.ActivityEvent, error)

	// LastOfType 某类型最近一条, 不存在时返回 NotFound
	LastOfType(ctx context.Context, eventType string) (*entity.ActivityEvent, error)
}

// EmailLogRepository 邮件记录仓储接口
type EmailLogRepository interface {
	// Log 追加一条出信记录
	Log(ctx context.Context, entry *entity.EmailLogEntry) error

	// FindRecent 按时间倒序返回记录
	FindRecent(ctx context.Context, limit int) ([]*entity.EmailLogEntry, error)

	// SentOn 某类型邮件在指定日历日是否已成功发出
	SentOn(ctx context.Context, kind, date string) (bool, error)
}

// SearchLogRepository 搜索历史仓储接口
type SearchLogRepository interface {
	// Log 追加一条搜索记录
	Log(ctx context.Context, entry *entity.SearchLogEntry) error

	// FindRecent 按时间倒序返回记录
	FindRecent(ctx context.Context, limit int) ([]*entity.SearchLogEntry, error)
}

// ErrorLogRepository 错误记录仓储接口
type ErrorLogRepository interface {
	// Log 追加一条错误记录
	Log(ctx context.Context, entry *entity.ErrorEntry) error

	// FindRecent 按时间倒序返回记录
	FindRecent(ctx context.Context, limit int) ([]*entity.ErrorEntry, error)

	// Resolve 标记已处理, 不存在时返回 NotFound
	Resolve(ctx context.Context, id int64) error
}

// CreativeRepository 创作产物仓储接口
type CreativeRepository interface {
	// Save 保存产物 (新建或更新)
	Save(ctx context.Context, work *entity.CreativeWork) error

	// FindByID 按 ID 查找
	FindByID(ctx context.Context, id int64) (*entity.CreativeWork, error)

	// FindRecent 按时间倒序返回产物
	FindRecent(ctx context.Context, limit int) ([]*entity.CreativeWork, error)

	// Count 产物总数
	Count(ctx context.Context) (int64, error)
}

// ThreadRepository 话题线索仓储接口
type ThreadRepository interface {
	// Save 保存线索 (新建或更新)
	Save(ctx context.Context, thread *entity.Thread) error

	// FindAll 按活跃时间倒序返回全部线索
	FindAll(ctx context.Context) ([]*entity.Thread, error)

	// FindByID 按 ID 查找
	FindByID(ctx context.Context, id int64) (*entity.Thread, error)

	// AddMessage 记录消息归属
	AddMessage(ctx context.Context, threadID, messageID int64) error

	// FindMessageIDs 返回线索下的消息 ID, 时间正序
	FindMessageIDs(ctx context.Context, threadID int64) ([]int64, error)

	// DeleteAll 清空线索 (重建前调用)
	DeleteAll(ctx context.Context) error
}

// StateRepository 运行状态键值仓储接口
// 存身份名称、命名状态、情绪向量等少量进程级状态
type StateRepository interface {
	// Get 读取键值, 缺失时返回空串
	Get(ctx context.Context, key string) (string, error)

	// Set 写入键值
	Set(ctx context.Context, key, value string) error
}
