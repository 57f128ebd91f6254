package persistence

import (
	"context"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"github.com/nexira/nexira/internal/infrastructure/persistence/models"
	domainErrors "github.com/nexira/nexira/pkg/errors"
	"gorm.io/gorm"
)

// GormCuriosityRepository GORM 实现的好奇心仓储
type GormCuriosityRepository struct {
	db *gorm.DB
}

// NewGormCuriosityRepository 创建 GORM 好奇心仓储
func NewGormCuriosityRepository(db *gorm.DB) repository.CuriosityRepository {
	return &GormCuriosityRepository{
		db: db,
	}
}

// Save 保存条目
func (r *GormCuriosityRepository) Save(ctx context.Context, item *entity.CuriosityItem) error {
	model := r.toModel(item)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save curiosity item: " + err.Error())
	}
	item.ID = model.ID
	return nil
}

// PendingExists 按小写 topic 判断 pending 队列里是否已有同题
func (r *GormCuriosityRepository) PendingExists(ctx context.Context, topicLower string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CuriosityModel{}).
		Where("status = ? AND LOWER(topic) = ?", entity.CuriosityPending, topicLower).
		Count(&count).Error
	if err != nil {
		return false, domainErrors.NewInternalError("failed to check pending topic: " + err.Error())
	}
	return count > 0, nil
}

// FindPending 按优先级降序、加入时间升序返回待研究条目
func (r *GormCuriosityRepository) FindPending(ctx context.Context, limit int) ([]*entity.CuriosityItem, error) {
	var rows []models.CuriosityModel
	err := r.db.WithContext(ctx).
		Where("status = ?", entity.CuriosityPending).
		Order("priority desc, added_at asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find pending items: " + err.Error())
	}
	return r.toEntities(rows), nil
}

// FindRecent 按加入时间倒序返回条目
func (r *GormCuriosityRepository) FindRecent(ctx context.Context, limit int) ([]*entity.CuriosityItem, error) {
	var rows []models.CuriosityModel
	err := r.db.WithContext(ctx).
		Order("added_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find curiosity items: " + err.Error())
	}
	return r.toEntities(rows), nil
}

// CountPending 待研究条目数
func (r *GormCuriosityRepository) CountPending(ctx context.Context) (int64, error) {
	return r.countByStatus(ctx, entity.CuriosityPending)
}

// CountCompleted 已完成条目数
func (r *GormCuriosityRepository) CountCompleted(ctx context.Context) (int64, error) {
	return r.countByStatus(ctx, entity.CuriosityCompleted)
}

func (r *GormCuriosityRepository) countByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CuriosityModel{}).
		Where("status = ?", status).
		Count(&count).Error
	if err != nil {
		return 0, domainErrors.NewInternalError("failed to count curiosity items: " + err.Error())
	}
	return count, nil
}

func (r *GormCuriosityRepository) toModel(e *entity.CuriosityItem) *models.CuriosityModel {
	return &models.CuriosityModel{
		ID:            e.ID,
		Topic:         e.Topic,
		Priority:      e.Priority,
		AddedAt:       e.AddedAt,
		Reason:        e.Reason,
		Status:        e.Status,
		ResearchNotes: e.ResearchNotes,
		CompletedAt:   e.CompletedAt,
	}
}

func (r *GormCuriosityRepository) toEntities(rows []models.CuriosityModel) []*entity.CuriosityItem {
	out := make([]*entity.CuriosityItem, 0, len(rows))
	for _, m := range rows {
		out = append(out, &entity.CuriosityItem{
			ID:            m.ID,
			Topic:         m.Topic,
			Priority:      m.Priority,
			AddedAt:       m.AddedAt,
			Reason:        m.Reason,
			Status:        m.Status,
			ResearchNotes: m.ResearchNotes,
			CompletedAt:   m.CompletedAt,
		})
	}
	return out
}
