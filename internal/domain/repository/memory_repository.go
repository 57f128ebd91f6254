package repository

import (
	"context"
	"time"

	"github.com/nexira/nexira/internal/domain/entity"
)

// KnowledgeRepository 长期知识仓储接口
type KnowledgeRepository interface {
	// Upsert 按 topic 插入或合并知识条目
	// 合并时 confidence 只升不降, confirmation_count 递增, source_weeks 追加
	Upsert(ctx context.Context, fact *entity.KnowledgeFact) (*entity.KnowledgeFact, error)

	// FindByTopic 精确查找
	FindByTopic(ctx context.Context, topic string) (*entity.KnowledgeFact, error)

	// Search 按关键词模糊检索 topic 与 content
	Search(ctx context.Context, query string, limit int) ([]*entity.KnowledgeFact, error)

	// FindRecent 按学习时间倒序
	FindRecent(ctx context.Context, limit int) ([]*entity.KnowledgeFact, error)

	// AllTopics 返回全部 topic (小写), 好奇心去重用
	AllTopics(ctx context.Context) ([]string, error)

	// Count 知识条目总数
	Count(ctx context.Context) (int64, error)
}

// EpisodeRepository 剧情摘要仓储接口
type EpisodeRepository interface {
	// Save 保存摘要
	Save(ctx context.Context, episode *entity.EpisodeSummary) error

	// MaxRangeEnd 已覆盖的最大消息 ID, 无摘要时为 0
	MaxRangeEnd(ctx context.Context) (int64, error)

	// FindRecent 按创建时间倒序返回未归档摘要
	FindRecent(ctx context.Context, limit int) ([]*entity.EpisodeSummary, error)

	// FindUncommittedSince 返回某时刻后未提交未归档的摘要
	FindUncommittedSince(ctx context.Context, since time.Time) ([]*entity.EpisodeSummary, error)

	// Search 在归档摘要里按关键词检索
	Search(ctx context.Context, keyword string, limit int) ([]*entity.EpisodeSummary, error)

	// MarkCommitted 批量置为 committed + archived
	MarkCommitted(ctx context.Context, ids []int64) error

	// Count 摘要总数
	Count(ctx context.Context) (int64, error)
}

// WeeklyRepository 周归纳仓储接口
type WeeklyRepository interface {
	// Save 保存周归纳
	Save(ctx context.Context, synthesis *entity.WeeklySynthesis) error

	// FindByWeek 按 ISO 周键查找, 不存在时返回 NotFound
	FindByWeek(ctx context.Context, isoWeek string) (*entity.WeeklySynthesis, error)

	// FindRecent 按周倒序
	FindRecent(ctx context.Context, limit int) ([]*entity.WeeklySynthesis, error)
}
