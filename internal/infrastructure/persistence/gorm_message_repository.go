package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"github.com/nexira/nexira/internal/infrastructure/persistence/models"
	domainErrors "github.com/nexira/nexira/pkg/errors"
	"gorm.io/gorm"
)

// GormMessageRepository GORM 实现的消息仓储
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建 GORM 消息仓储
func NewGormMessageRepository(db *gorm.DB) repository.MessageRepository {
	return &GormMessageRepository{
		db: db,
	}
}

// Save 保存消息, 回填自增 ID
func (r *GormMessageRepository) Save(ctx context.Context, message *entity.Message) error {
	model := r.toModel(message)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save message: " + err.Error())
	}
	message.ID = model.ID
	return nil
}

// FindByID 根据ID查找消息
func (r *GormMessageRepository) FindByID(ctx context.Context, id int64) (*entity.Message, error) {
	var model models.MessageModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("message not found")
		}
		return nil, domainErrors.NewInternalError("failed to find message: " + err.Error())
	}
	return r.toEntity(&model), nil
}

// FindRecent 按时间正序返回最近 limit 条消息
func (r *GormMessageRepository) FindRecent(ctx context.Context, limit int) ([]*entity.Message, error) {
	var rows []models.MessageModel
	err := r.db.WithContext(ctx).
		Order("id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find messages: " + err.Error())
	}

	// 倒序取出后翻转回时间正序
	out := make([]*entity.Message, len(rows))
	for i, m := range rows {
		out[len(rows)-1-i] = r.toEntity(&m)
	}
	return out, nil
}

// FindRange 返回 ID 闭区间内的消息, 时间正序
func (r *GormMessageRepository) FindRange(ctx context.Context, startID, endID int64) ([]*entity.Message, error) {
	var rows []models.MessageModel
	err := r.db.WithContext(ctx).
		Where("id >= ? AND id <= ?", startID, endID).
		Order("id asc").
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find message range: " + err.Error())
	}
	return r.toEntities(rows), nil
}

// FindSince 返回某时刻之后的全部消息, 时间正序
func (r *GormMessageRepository) FindSince(ctx context.Context, since time.Time) ([]*entity.Message, error) {
	var rows []models.MessageModel
	err := r.db.WithContext(ctx).
		Where("timestamp >= ?", since).
		Order("id asc").
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find messages: " + err.Error())
	}
	return r.toEntities(rows), nil
}

// FindPage 分页返回消息和总条数
func (r *GormMessageRepository) FindPage(ctx context.Context, limit, offset int) ([]*entity.Message, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.MessageModel{}).Count(&total).Error; err != nil {
		return nil, 0, domainErrors.NewInternalError("failed to count messages: " + err.Error())
	}

	var rows []models.MessageModel
	err := r.db.WithContext(ctx).
		Order("id asc").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, domainErrors.NewInternalError("failed to page messages: " + err.Error())
	}
	return r.toEntities(rows), total, nil
}

// FindAll 返回全部消息, 时间正序
func (r *GormMessageRepository) FindAll(ctx context.Context) ([]*entity.Message, error) {
	var rows []models.MessageModel
	if err := r.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, domainErrors.NewInternalError("failed to find messages: " + err.Error())
	}
	return r.toEntities(rows), nil
}

// MaxID 当前最大消息 ID
func (r *GormMessageRepository) MaxID(ctx context.Context) (int64, error) {
	var maxID int64
	err := r.db.WithContext(ctx).
		Model(&models.MessageModel{}).
		Select("COALESCE(MAX(id), 0)").
		Scan(&maxID).Error
	if err != nil {
		return 0, domainErrors.NewInternalError("failed to read max message id: " + err.Error())
	}
	return maxID, nil
}

// Count 消息总数
func (r *GormMessageRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.MessageModel{}).Count(&count).Error; err != nil {
		return 0, domainErrors.NewInternalError("failed to count messages: " + err.Error())
	}
	return count, nil
}

// CountSince 某时刻之后的消息数
func (r *GormMessageRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.MessageModel{}).
		Where("timestamp >= ?", since).
		Count(&count).Error
	if err != nil {
		return 0, domainErrors.NewInternalError("failed to count messages: " + err.Error())
	}
	return count, nil
}

// CountByRole 某角色的消息数
func (r *GormMessageRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.MessageModel{}).
		Where("role = ?", role).
		Count(&count).Error
	if err != nil {
		return 0, domainErrors.NewInternalError("failed to count messages: " + err.Error())
	}
	return count, nil
}

// SetFeedback 记录用户反馈
func (r *GormMessageRepository) SetFeedback(ctx context.Context, id int64, feedback string) error {
	result := r.db.WithContext(ctx).
		Model(&models.MessageModel{}).
		Where("id = ?", id).
		Update("user_feedback", feedback)
	if result.Error != nil {
		return domainErrors.NewInternalError("failed to set feedback: " + result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError("message not found")
	}
	return nil
}

// 转换方法

func (r *GormMessageRepository) toModel(e *entity.Message) *models.MessageModel {
	tags := ""
	if len(e.ContextTags) > 0 {
		if data, err := json.Marshal(e.ContextTags); err == nil {
			tags = string(data)
		}
	}
	return &models.MessageModel{
		ID:              e.ID,
		Timestamp:       e.Timestamp,
		Role:            e.Role,
		Content:         e.Content,
		Importance:      e.Importance,
		EmotionalWeight: e.EmotionalWeight,
		ContextTags:     tags,
		Platform:        e.Platform,
		Version:         e.Version,
		UserFeedback:    e.UserFeedback,
	}
}

func (r *GormMessageRepository) toEntity(m *models.MessageModel) *entity.Message {
	var tags []string
	if m.ContextTags != "" {
		// 解析失败按无标签处理
		_ = json.Unmarshal([]byte(m.ContextTags), &tags)
	}
	return &entity.Message{
		ID:              m.ID,
		Timestamp:       m.Timestamp,
		Role:            m.Role,
		Content:         m.Content,
		Importance:      m.Importance,
		EmotionalWeight: m.EmotionalWeight,
		ContextTags:     tags,
		Platform:        m.Platform,
		Version:         m.Version,
		UserFeedback:    m.UserFeedback,
	}
}

func (r *GormMessageRepository) toEntities(rows []models.MessageModel) []*entity.Message {
	out := make([]*entity.Message, 0, len(rows))
	for i := range rows {
		out = append(out, r.toEntity(&rows[i]))
	}
	return out
}
