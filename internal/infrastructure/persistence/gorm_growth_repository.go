package persistence

import (
	"context"
	"errors"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"github.com/nexira/nexira/internal/infrastructure/persistence/models"
	domainErrors "github.com/nexira/nexira/pkg/errors"
	"gorm.io/gorm"
)

// GormInterestRepository GORM 实现的兴趣仓储
type GormInterestRepository struct {
	db *gorm.DB
}

// NewGormInterestRepository 创建 GORM 兴趣仓储
func NewGormInterestRepository(db *gorm.DB) repository.InterestRepository {
	return &GormInterestRepository{
		db: db,
	}
}

// FindByTopic 精确查找
func (r *GormInterestRepository) FindByTopic(ctx context.Context, topic string) (*entity.Interest, error) {
	var model models.InterestModel
	if err := r.db.WithContext(ctx).First(&model, "topic = ?", topic).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("interest not found")
		}
		return nil, domainErrors.NewInternalError("failed to find interest: " + err.Error())
	}
	return r.toEntity(&model), nil
}

// Save 保存兴趣
func (r *GormInterestRepository) Save(ctx context.Context, interest *entity.Interest) error {
	model := &models.InterestModel{
		ID:           interest.ID,
		Topic:        interest.Topic,
		Level:        interest.Level,
		MentionCount: interest.MentionCount,
		FirstMention: interest.FirstMention,
		LastActivity: interest.LastActivity,
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save interest: " + err.Error())
	}
	interest.ID = model.ID
	return nil
}

// FindAll 按提及次数降序返回全部兴趣
func (r *GormInterestRepository) FindAll(ctx context.Context) ([]*entity.Interest, error) {
	var rows []models.InterestModel
	if err := r.db.WithContext(ctx).Order("mention_count desc").Find(&rows).Error; err != nil {
		return nil, domainErrors.NewInternalError("failed to find interests: " + err.Error())
	}
	return r.toEntities(rows), nil
}

// FindTop 按提及次数降序返回前 n 个
func (r *GormInterestRepository) FindTop(ctx context.Context, n int) ([]*entity.Interest, error) {
	var rows []models.InterestModel
	err := r.db.WithContext(ctx).
		Order("mention_count desc").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find top interests: " + err.Error())
	}
	return r.toEntities(rows), nil
}

// Count 兴趣话题总数
func (r *GormInterestRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.InterestModel{}).Count(&count).Error; err != nil {
		return 0, domainErrors.NewInternalError("failed to count interests: " + err.Error())
	}
	return count, nil
}

func (r *GormInterestRepository) toEntity(m *models.InterestModel) *entity.Interest {
	return &entity.Interest{
		ID:           m.ID,
		Topic:        m.Topic,
		Level:        m.Level,
		MentionCount: m.MentionCount,
		FirstMention: m.FirstMention,
		LastActivity: m.LastActivity,
	}
}

func (r *GormInterestRepository) toEntities(rows []models.InterestModel) []*entity.Interest {
	out := make([]*entity.Interest, 0, len(rows))
	for i := range rows {
		out = append(out, r.toEntity(&rows[i]))
	}
	return out
}

// GormSkillRepository GORM 实现的技能仓储
type GormSkillRepository struct {
	db *gorm.DB
}

// NewGormSkillRepository 创建 GORM 技能仓储
func NewGormSkillRepository(db *gorm.DB) repository.SkillRepository {
	return &GormSkillRepository{
		db: db,
	}
}

// FindByDomain 精确查找
func (r *GormSkillRepository) FindByDomain(ctx context.Context, domain string) (*entity.Skill, error) {
	var model models.SkillModel
	if err := r.db.WithContext(ctx).First(&model, "domain = ?", domain).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("skill not found")
		}
		return nil, domainErrors.NewInternalError("failed to find skill: " + err.Error())
	}
	return r.toEntity(&model), nil
}

// Save 保存技能
func (r *GormSkillRepository) Save(ctx context.Context, skill *entity.Skill) error {
	model := &models.SkillModel{
		ID:           skill.ID,
		Domain:       skill.Domain,
		Score:        skill.Score,
		Observations: skill.Observations,
		Level:        skill.Level,
		LastObserved: skill.LastObserved,
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save skill: " + err.Error())
	}
	skill.ID = model.ID
	return nil
}

// FindAll 按均值降序返回全部技能
func (r *GormSkillRepository) FindAll(ctx context.Context) ([]*entity.Skill, error) {
	var rows []models.SkillModel
	if err := r.db.WithContext(ctx).Order("score desc").Find(&rows).Error; err != nil {
		return nil, domainErrors.NewInternalError("failed to find skills: " + err.Error())
	}

	out := make([]*entity.Skill, 0, len(rows))
	for i := range rows {
		out = append(out, r.toEntity(&rows[i]))
	}
	return out, nil
}

func (r *GormSkillRepository) toEntity(m *models.SkillModel) *entity.Skill {
	return &entity.Skill{
		ID:           m.ID,
		Domain:       m.Domain,
		Score:        m.Score,
		Observations: m.Observations,
		Level:        m.Level,
		LastObserved: m.LastObserved,
	}
}

// GormGoalRepository GORM 实现的目标仓储
type GormGoalRepository struct {
	db *gorm.DB
}

// NewGormGoalRepository 创建 GORM 目标仓储
func NewGormGoalRepository(db *gorm.DB) repository.GoalRepository {
	return &GormGoalRepository{
		db: db,
	}
}

// Save 保存目标
func (r *GormGoalRepository) Save(ctx context.Context, goal *entity.Goal) error {
	model := r.toModel(goal)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save goal: " + err.Error())
	}
	goal.ID = model.ID
	return nil
}

// FindActive 按进度降序返回 active 目标
func (r *GormGoalRepository) FindActive(ctx context.Context) ([]*entity.Goal, error) {
	var rows []models.GoalModel
	err := r.db.WithContext(ctx).
		Where("status = ?", entity.GoalActive).
		Order("progress desc").
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find active goals: " + err.Error())
	}
	return r.toEntities(rows), nil
}

// FindActiveByType 返回某类型的 active 目标
func (r *GormGoalRepository) FindActiveByType(ctx context.Context, goalType string) ([]*entity.Goal, error) {
	var rows []models.GoalModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND type = ?", entity.GoalActive, goalType).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find goals by type: " + err.Error())
	}
	return r.toEntities(rows), nil
}

// FindAll 按创建时间倒序返回全部目标
func (r *GormGoalRepository) FindAll(ctx context.Context, limit int) ([]*entity.Goal, error) {
	var rows []models.GoalModel
	err := r.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find goals: " + err.Error())
	}
	return r.toEntities(rows), nil
}

// CountActive active 目标数
func (r *GormGoalRepository) CountActive(ctx context.Context) (int64, error) {
	return r.countByStatus(ctx, entity.GoalActive)
}

// CountCompleted 已完成目标数
func (r *GormGoalRepository) CountCompleted(ctx context.Context) (int64, error) {
	return r.countByStatus(ctx, entity.GoalCompleted)
}

func (r *GormGoalRepository) countByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.GoalModel{}).
		Where("status = ?", status).
		Count(&count).Error
	if err != nil {
		return 0, domainErrors.NewInternalError("failed to count goals: " + err.Error())
	}
	return count, nil
}

func (r *GormGoalRepository) toModel(e *entity.Goal) *models.GoalModel {
	return &models.GoalModel{
		ID:          e.ID,
		Name:        e.Name,
		Type:        e.Type,
		Current:     e.Current,
		Target:      e.Target,
		Progress:    e.Progress,
		Status:      e.Status,
		CreatedAt:   e.CreatedAt,
		CompletedAt: e.CompletedAt,
		AuthoredBy:  e.AuthoredBy,
		Description: e.Description,
	}
}

func (r *GormGoalRepository) toEntities(rows []models.GoalModel) []*entity.Goal {
	out := make([]*entity.Goal, 0, len(rows))
	for _, m := range rows {
		out = append(out, &entity.Goal{
			ID:          m.ID,
			Name:        m.Name,
			Type:        m.Type,
			Current:     m.Current,
			Target:      m.Target,
			Progress:    m.Progress,
			Status:      m.Status,
			CreatedAt:   m.CreatedAt,
			CompletedAt: m.CompletedAt,
			AuthoredBy:  m.AuthoredBy,
			Description: m.Description,
		})
	}
	return out
}
