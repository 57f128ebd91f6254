package repository

import (
	"context"
	"time"

	"github.com/nexira/nexira/internal/domain/entity"
)

// JournalRepository 日记仓储接口
// 实现层负责内容加解密, 调用方只见明文
type JournalRepository interface {
	// Save 保存日记
	Save(ctx context.Context, entry *entity.JournalEntry) error

	// FindRecent 按时间倒序返回日记
	FindRecent(ctx context.Context, limit int) ([]*entity.JournalEntry, error)

	// FindByType 按类型、时间倒序返回日记
	FindByType(ctx context.Context, entryType string, limit int) ([]*entity.JournalEntry, error)

	// CountByType 某类型日记数
	CountByType(ctx context.Context, entryType string) (int64, error)

	// Count 日记总数
	Count(ctx context.Context) (int64, error)
}

// AwarenessRepository 自我觉察采样仓储接口
type AwarenessRepository interface {
	// Save 保存采样
	Save(ctx context.Context, sample *entity.SelfAwarenessSample) error

	// FindSince 返回某时刻后的采样, 时间正序
	FindSince(ctx context.Context, since time.Time) ([]*entity.SelfAwarenessSample, error)

	// Latest 最近一条采样, 无采样时返回 NotFound
	Latest(ctx context.Context) (*entity.SelfAwarenessSample, error)
}

// SelfModelRepository 自我模型仓储接口 (行事规则/教训/用户画像)
type SelfModelRepository interface {
	// UpsertNote 按 key 写入或更新行事规则
	UpsertNote(ctx context.Context, key, value string) error

	// FindNotes 按更新时间倒序返回行事规则
	FindNotes(ctx context.Context, limit int) ([]*entity.OperatingNote, error)

	// SaveMistake 记录一次纠错
	SaveMistake(ctx context.Context, mistake *entity.Mistake) error

	// FindMistakes 按时间倒序返回纠错记录
	FindMistakes(ctx context.Context, limit int) ([]*entity.Mistake, error)

	// MistakeTopicMatch 判断关键词是否命中任何纠错话题
	MistakeTopicMatch(ctx context.Context, keyword string) (bool, error)

	// UpsertUserAttr 按 attribute 写入或更新用户画像
	UpsertUserAttr(ctx context.Context, attribute, value string, confidence float64) error

	// FindUserAttrs 返回全部用户画像
	FindUserAttrs(ctx context.Context) ([]*entity.UserModelAttr, error)
}

// ValueRepository 核心价值观仓储接口
type ValueRepository interface {
	// Save 保存价值观
	Save(ctx context.Context, value *entity.AIValue) error

	// FindTop 按优先级降序返回前 n 条
	FindTop(ctx context.Context, n int) ([]*entity.AIValue, error)

	// Count 价值观总数, 用于首启播种判断
	Count(ctx context.Context) (int64, error)
}

// ConsolidationRepository 夜间整理记录仓储接口
type ConsolidationRepository interface {
	// FindByDate 按日历日查找, 不存在时返回 NotFound
	FindByDate(ctx context.Context, runDate string) (*entity.ConsolidationRun, error)

	// Save 写入执行记录
	Save(ctx context.Context, run *entity.ConsolidationRun) error

	// Count 历史执行次数
	Count(ctx context.Context) (int64, error)

	// FindRecent 按日期倒序返回执行记录
	FindRecent(ctx context.Context, limit int) ([]*entity.ConsolidationRun, error)
}
