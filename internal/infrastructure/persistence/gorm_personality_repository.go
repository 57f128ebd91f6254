package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"github.com/nexira/nexira/internal/infrastructure/persistence/models"
	domainErrors "github.com/nexira/nexira/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPersonalityRepository GORM 实现的人格仓储
type GormPersonalityRepository struct {
	db *gorm.DB
}

// NewGormPersonalityRepository 创建 GORM 人格仓储
func NewGormPersonalityRepository(db *gorm.DB) repository.PersonalityRepository {
	return &GormPersonalityRepository{
		db: db,
	}
}

// FindTraits 返回全部激活维度
func (r *GormPersonalityRepository) FindTraits(ctx context.Context) ([]*entity.PersonalityTrait, error) {
	var rows []models.TraitModel
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("name asc").
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find traits: " + err.Error())
	}

	out := make([]*entity.PersonalityTrait, 0, len(rows))
	for i := range rows {
		out = append(out, r.toTrait(&rows[i]))
	}
	return out, nil
}

// SaveTrait 按名称 upsert 维度值
func (r *GormPersonalityRepository) SaveTrait(ctx context.Context, trait *entity.PersonalityTrait) error {
	model := &models.TraitModel{
		Name:        trait.Name,
		Value:       trait.Value,
		Type:        trait.Type,
		OriginStory: trait.OriginStory,
		LastUpdated: trait.LastUpdated,
		Active:      trait.Active,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "last_updated", "active"}),
		}).
		Create(model).Error
	if err != nil {
		return domainErrors.NewInternalError("failed to save trait: " + err.Error())
	}
	return nil
}

// CountTraits 维度行数
func (r *GormPersonalityRepository) CountTraits(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.TraitModel{}).Count(&count).Error; err != nil {
		return 0, domainErrors.NewInternalError("failed to count traits: " + err.Error())
	}
	return count, nil
}

// ResetTraits 把全部维度重置到指定值
func (r *GormPersonalityRepository) ResetTraits(ctx context.Context, value float64) error {
	err := r.db.WithContext(ctx).
		Model(&models.TraitModel{}).
		Where("active = ?", true).
		Updates(map[string]any{"value": value, "last_updated": time.Now()}).Error
	if err != nil {
		return domainErrors.NewInternalError("failed to reset traits: " + err.Error())
	}
	return nil
}

// LogChange 追加一条变更历史
func (r *GormPersonalityRepository) LogChange(ctx context.Context, change *entity.PersonalityChange) error {
	model := &models.ChangeModel{
		Timestamp: change.Timestamp,
		Trait:     change.Trait,
		OldValue:  change.OldValue,
		NewValue:  change.NewValue,
		Reason:    change.Reason,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to log personality change: " + err.Error())
	}
	change.ID = model.ID
	return nil
}

// FindChanges 按时间倒序返回变更历史
func (r *GormPersonalityRepository) FindChanges(ctx context.Context, limit int) ([]*entity.PersonalityChange, error) {
	var rows []models.ChangeModel
	err := r.db.WithContext(ctx).
		Order("id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find personality changes: " + err.Error())
	}

	out := make([]*entity.PersonalityChange, 0, len(rows))
	for _, m := range rows {
		out = append(out, &entity.PersonalityChange{
			ID:        m.ID,
			Timestamp: m.Timestamp,
			Trait:     m.Trait,
			OldValue:  m.OldValue,
			NewValue:  m.NewValue,
			Reason:    m.Reason,
		})
	}
	return out, nil
}

// CountChanges 变更历史总数
func (r *GormPersonalityRepository) CountChanges(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ChangeModel{}).Count(&count).Error; err != nil {
		return 0, domainErrors.NewInternalError("failed to count personality changes: " + err.Error())
	}
	return count, nil
}

// SaveSnapshot 写入一份人格快照
func (r *GormPersonalityRepository) SaveSnapshot(ctx context.Context, snapshot *entity.PersonalitySnapshot) error {
	data, err := json.Marshal(snapshot.Data)
	if err != nil {
		return domainErrors.NewInternalError("failed to marshal snapshot: " + err.Error())
	}

	model := &models.SnapshotModel{
		Name:        snapshot.Name,
		Timestamp:   snapshot.Timestamp,
		Data:        string(data),
		Type:        snapshot.Type,
		Description: snapshot.Description,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save snapshot: " + err.Error())
	}
	snapshot.ID = model.ID
	return nil
}

// FindSnapshots 按时间倒序返回快照
func (r *GormPersonalityRepository) FindSnapshots(ctx context.Context, limit int) ([]*entity.PersonalitySnapshot, error) {
	var rows []models.SnapshotModel
	err := r.db.WithContext(ctx).
		Order("id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find snapshots: " + err.Error())
	}

	out := make([]*entity.PersonalitySnapshot, 0, len(rows))
	for _, m := range rows {
		var data map[string]float64
		if m.Data != "" {
			_ = json.Unmarshal([]byte(m.Data), &data)
		}
		out = append(out, &entity.PersonalitySnapshot{
			ID:          m.ID,
			Name:        m.Name,
			Timestamp:   m.Timestamp,
			Data:        data,
			Type:        m.Type,
			Description: m.Description,
		})
	}
	return out, nil
}

func (r *GormPersonalityRepository) toTrait(m *models.TraitModel) *entity.PersonalityTrait {
	return &entity.PersonalityTrait{
		Name:        m.Name,
		Value:       m.Value,
		Type:        m.Type,
		OriginStory: m.OriginStory,
		LastUpdated: m.LastUpdated,
		Active:      m.Active,
	}
}
