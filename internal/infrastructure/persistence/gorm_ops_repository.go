package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"github.com/nexira/nexira/internal/infrastructure/persistence/models"
	domainErrors "github.com/nexira/nexira/pkg/errors"
	"gorm.io/gorm"
)

// === 活动审计 ===

// GormActivityRepository GORM 实现的活动审计仓储
type GormActivityRepository struct {
	db *gorm.DB
}

// NewGormActivityRepository 创建 GORM 活动审计仓储
func NewGormActivityRepository(db *gorm.DB) repository.ActivityRepository {
	return &GormActivityRepository{
		db: db,
	}
}

// Log 追加一条活动记录
func (r *GormActivityRepository) Log(ctx context.Context, event *entity.ActivityEvent) error {
	model := r.toModel(event)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to log activity: " + err.Error())
	}
	event.ID = model.ID
	return nil
}

// FindRecent 按时间倒序返回活动
func (r *GormActivityRepository) FindRecent(ctx context.Context, limit int) ([]*entity.ActivityEvent, error) {
	var rows []models.ActivityModel
	err := r.db.WithContext(ctx).
		Order("timestamp desc, id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find activities: " + err.Error())
	}
	return r.toEntities(rows), nil
}

// FindRecentByType 按类型、时间倒序返回活动
func (r *GormActivityRepository) FindRecentByType(ctx context.Context, eventType string, limit int) ([]*entity.ActivityEvent, error) {
	var rows []models.ActivityModel
	err := r.db.WithContext(ctx).
		Where("type = ?", eventType).
		Order("timestamp desc, id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find activities: " + err.Error())
	}
	return r.toEntities(rows), nil
}

// LastOfType 某类型最近一条, 不存在时返回 NotFound
func (r *GormActivityRepository) LastOfType(ctx context.Context, eventType string) (*entity.ActivityEvent, error) {
	var model models.ActivityModel
	err := r.db.WithContext(ctx).
		Where("type = ?", eventType).
		Order("timestamp desc, id desc").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("no activity of type " + eventType)
		}
		return nil, domainErrors.NewInternalError("failed to find activity: " + err.Error())
	}
	return r.toEntity(&model), nil
}

func (r *GormActivityRepository) toModel(e *entity.ActivityEvent) *models.ActivityModel {
	extra := ""
	if len(e.Extra) > 0 {
		if data, err := json.Marshal(e.Extra); err == nil {
			extra = string(data)
		}
	}
	return &models.ActivityModel{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Type:      e.Type,
		Label:     e.Label,
		Detail:    e.Detail,
		Extra:     extra,
	}
}

func (r *GormActivityRepository) toEntity(m *models.ActivityModel) *entity.ActivityEvent {
	var extra map[string]any
	if m.Extra != "" {
		_ = json.Unmarshal([]byte(m.Extra), &extra)
	}
	return &entity.ActivityEvent{
		ID:        m.ID,
		Timestamp: m.Timestamp,
		Type:      m.Type,
		Label:     m.Label,
		Detail:    m.Detail,
		Extra:     extra,
	}
}

func (r *GormActivityRepository) toEntities(rows []models.ActivityModel) []*entity.ActivityEvent {
	out := make([]*entity.ActivityEvent, 0, len(rows))
	for i := range rows {
		out = append(out, r.toEntity(&rows[i]))
	}
	return out
}

// === 错误记录 ===

// GormErrorLogRepository GORM 实现的错误记录仓储
type GormErrorLogRepository struct {
	db *gorm.DB
}

// NewGormErrorLogRepository 创建 GORM 错误记录仓储
func NewGormErrorLogRepository(db *gorm.DB) repository.ErrorLogRepository {
	return &GormErrorLogRepository{
		db: db,
	}
}

// Log 追加一条错误记录
func (r *GormErrorLogRepository) Log(ctx context.Context, entry *entity.ErrorEntry) error {
	model := &models.ErrorLogModel{
		ID:        entry.ID,
		Timestamp: entry.Timestamp,
		Level:     entry.Level,
		Source:    entry.Source,
		Message:   entry.Message,
		Details:   entry.Details,
		Resolved:  entry.Resolved,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to log error entry: " + err.Error())
	}
	entry.ID = model.ID
	return nil
}

// FindRecent 按时间倒序返回记录
func (r *GormErrorLogRepository) FindRecent(ctx context.Context, limit int) ([]*entity.ErrorEntry, error) {
	var rows []models.ErrorLogModel
	err := r.db.WithContext(ctx).
		Order("timestamp desc, id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find error entries: " + err.Error())
	}

	out := make([]*entity.ErrorEntry, 0, len(rows))
	for i := range rows {
		m := &rows[i]
		out = append(out, &entity.ErrorEntry{
			ID:        m.ID,
			Timestamp: m.Timestamp,
			Level:     m.Level,
			Source:    m.Source,
			Message:   m.Message,
			Details:   m.Details,
			Resolved:  m.Resolved,
		})
	}
	return out, nil
}

// Resolve 标记已处理
func (r *GormErrorLogRepository) Resolve(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.ErrorLogModel{}).
		Where("id = ?", id).
		Update("resolved", true)
	if result.Error != nil {
		return domainErrors.NewInternalError("failed to resolve error entry: " + result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError("error entry not found")
	}
	return nil
}

// === 邮件记录 ===

// GormEmailLogRepository GORM 实现的邮件记录仓储
type GormEmailLogRepository struct {
	db *gorm.DB
}

// NewGormEmailLogRepository 创建 GORM 邮件记录仓储
func NewGormEmailLogRepository(db *gorm.DB) repository.EmailLogRepository {
	return &GormEmailLogRepository{
		db: db,
	}
}

// Log 追加一条出信记录
func (r *GormEmailLogRepository) Log(ctx context.Context, entry *entity.EmailLogEntry) error {
	model := &models.EmailLogModel{
		ID:        entry.ID,
		Timestamp: entry.Timestamp,
		Kind:      entry.Kind,
		Recipient: entry.Recipient,
		Subject:   entry.Subject,
		Status:    entry.Status,
		Error:     entry.Error,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to log email: " + err.Error())
	}
	entry.ID = model.ID
	return nil
}

// FindRecent 按时间倒序返回记录
func (r *GormEmailLogRepository) FindRecent(ctx context.Context, limit int) ([]*entity.EmailLogEntry, error) {
	var rows []models.EmailLogModel
	err := r.db.WithContext(ctx).
		Order("timestamp desc, id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find email log: " + err.Error())
	}

	out := make([]*entity.EmailLogEntry, 0, len(rows))
	for _, m := range rows {
		out = append(out, &entity.EmailLogEntry{
			ID:        m.ID,
			Timestamp: m.Timestamp,
			Kind:      m.Kind,
			Recipient: m.Recipient,
			Subject:   m.Subject,
			Status:    m.Status,
			Error:     m.Error,
		})
	}
	return out, nil
}

// SentOn 某类型邮件在指定日历日是否已成功发出
// date 形如 "2026-02-14", 按 UTC 存储的时间戳比较
func (r *GormEmailLogRepository) SentOn(ctx context.Context, kind, date string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.EmailLogModel{}).
		Where("kind = ? AND status = ? AND DATE(timestamp) = ?", kind, "sent", date).
		Count(&count).Error
	if err != nil {
		return false, domainErrors.NewInternalError("failed to check email log: " + err.Error())
	}
	return count > 0, nil
}

// === 搜索历史 ===

// GormSearchLogRepository GORM 实现的搜索历史仓储
type GormSearchLogRepository struct {
	db *gorm.DB
}

// NewGormSearchLogRepository 创建 GORM 搜索历史仓储
func NewGormSearchLogRepository(db *gorm.DB) repository.SearchLogRepository {
	return &GormSearchLogRepository{
		db: db,
	}
}

// Log 追加一条搜索记录
func (r *GormSearchLogRepository) Log(ctx context.Context, entry *entity.SearchLogEntry) error {
	model := &models.SearchLogModel{
		ID:          entry.ID,
		Timestamp:   entry.Timestamp,
		Query:       entry.Query,
		Source:      entry.Source,
		ResultCount: entry.ResultCount,
		Summary:     entry.Summary,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to log search: " + err.Error())
	}
	entry.ID = model.ID
	return nil
}

// FindRecent 按时间倒序返回记录
func (r *GormSearchLogRepository) FindRecent(ctx context.Context, limit int) ([]*entity.SearchLogEntry, error) {
	var rows []models.SearchLogModel
	err := r.db.WithContext(ctx).
		Order("timestamp desc, id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find search history: " + err.Error())
	}

	out := make([]*entity.SearchLogEntry, 0, len(rows))
	for _, m := range rows {
		out = append(out, &entity.SearchLogEntry{
			ID:          m.ID,
			Timestamp:   m.Timestamp,
			Query:       m.Query,
			Source:      m.Source,
			ResultCount: m.ResultCount,
			Summary:     m.Summary,
		})
	}
	return out, nil
}

// === 创作产物 ===

// GormCreativeRepository GORM 实现的创作产物仓储
type GormCreativeRepository struct {
	db *gorm.DB
}

// NewGormCreativeRepository 创建 GORM 创作产物仓储
func NewGormCreativeRepository(db *gorm.DB) repository.CreativeRepository {
	return &GormCreativeRepository{
		db: db,
	}
}

// Save 保存产物, 回填自增 ID
func (r *GormCreativeRepository) Save(ctx context.Context, work *entity.CreativeWork) error {
	model := &models.CreativeWorkModel{
		ID:        work.ID,
		Timestamp: work.Timestamp,
		Mode:      work.Mode,
		Language:  work.Language,
		Prompt:    work.Prompt,
		Content:   work.Content,
		Executed:  work.Executed,
		Output:    work.Output,
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save creative work: " + err.Error())
	}
	work.ID = model.ID
	return nil
}

// FindByID 按 ID 查找
func (r *GormCreativeRepository) FindByID(ctx context.Context, id int64) (*entity.CreativeWork, error) {
	var model models.CreativeWorkModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("creative work not found")
		}
		return nil, domainErrors.NewInternalError("failed to find creative work: " + err.Error())
	}
	return r.toEntity(&model), nil
}

// FindRecent 按时间倒序返回产物
func (r *GormCreativeRepository) FindRecent(ctx context.Context, limit int) ([]*entity.CreativeWork, error) {
	var rows []models.CreativeWorkModel
	err := r.db.WithContext(ctx).
		Order("timestamp desc, id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find creative works: " + err.Error())
	}

	out := make([]*entity.CreativeWork, 0, len(rows))
	for i := range rows {
		out = append(out, r.toEntity(&rows[i]))
	}
	return out, nil
}

// Count 产物总数
func (r *GormCreativeRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CreativeWorkModel{}).Count(&count).Error; err != nil {
		return 0, domainErrors.NewInternalError("failed to count creative works: " + err.Error())
	}
	return count, nil
}

func (r *GormCreativeRepository) toEntity(m *models.CreativeWorkModel) *entity.CreativeWork {
	return &entity.CreativeWork{
		ID:        m.ID,
		Timestamp: m.Timestamp,
		Mode:      m.Mode,
		Language:  m.Language,
		Prompt:    m.Prompt,
		Content:   m.Content,
		Executed:  m.Executed,
		Output:    m.Output,
	}
}

// === 话题线索 ===

// GormThreadRepository GORM 实现的话题线索仓储
type GormThreadRepository struct {
	db *gorm.DB
}

// NewGormThreadRepository 创建 GORM 话题线索仓储
func NewGormThreadRepository(db *gorm.DB) repository.ThreadRepository {
	return &GormThreadRepository{
		db: db,
	}
}

// Save 保存线索, 回填自增 ID
func (r *GormThreadRepository) Save(ctx context.Context, thread *entity.Thread) error {
	model := r.toModel(thread)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save thread: " + err.Error())
	}
	thread.ID = model.ID
	return nil
}

// FindAll 按活跃时间倒序返回全部线索
func (r *GormThreadRepository) FindAll(ctx context.Context) ([]*entity.Thread, error) {
	var rows []models.ThreadModel
	err := r.db.WithContext(ctx).
		Order("last_activity desc").
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find threads: " + err.Error())
	}

	out := make([]*entity.Thread, 0, len(rows))
	for i := range rows {
		out = append(out, r.toEntity(&rows[i]))
	}
	return out, nil
}

// FindByID 按 ID 查找
func (r *GormThreadRepository) FindByID(ctx context.Context, id int64) (*entity.Thread, error) {
	var model models.ThreadModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("thread not found")
		}
		return nil, domainErrors.NewInternalError("failed to find thread: " + err.Error())
	}
	return r.toEntity(&model), nil
}

// AddMessage 记录消息归属, 重复写入视为成功
func (r *GormThreadRepository) AddMessage(ctx context.Context, threadID, messageID int64) error {
	model := &models.ThreadMessageModel{ThreadID: threadID, MessageID: messageID}
	err := r.db.WithContext(ctx).Save(model).Error
	if err != nil {
		return domainErrors.NewInternalError("failed to link message to thread: " + err.Error())
	}
	return nil
}

// FindMessageIDs 返回线索下的消息 ID, 时间正序
func (r *GormThreadRepository) FindMessageIDs(ctx context.Context, threadID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&models.ThreadMessageModel{}).
		Where("thread_id = ?", threadID).
		Order("message_id asc").
		Pluck("message_id", &ids).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find thread messages: " + err.Error())
	}
	return ids, nil
}

// DeleteAll 清空线索与归属关系, 重建前调用
func (r *GormThreadRepository) DeleteAll(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.ThreadMessageModel{}).Error; err != nil {
		return domainErrors.NewInternalError("failed to clear thread messages: " + err.Error())
	}
	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.ThreadModel{}).Error; err != nil {
		return domainErrors.NewInternalError("failed to clear threads: " + err.Error())
	}
	return nil
}

func (r *GormThreadRepository) toModel(e *entity.Thread) *models.ThreadModel {
	keywords := ""
	if len(e.Keywords) > 0 {
		if data, err := json.Marshal(e.Keywords); err == nil {
			keywords = string(data)
		}
	}
	return &models.ThreadModel{
		ID:           e.ID,
		Name:         e.Name,
		Keywords:     keywords,
		MessageCount: e.MessageCount,
		StartedAt:    e.StartedAt,
		LastActivity: e.LastActivity,
	}
}

func (r *GormThreadRepository) toEntity(m *models.ThreadModel) *entity.Thread {
	var keywords []string
	if m.Keywords != "" {
		_ = json.Unmarshal([]byte(m.Keywords), &keywords)
	}
	return &entity.Thread{
		ID:           m.ID,
		Name:         m.Name,
		Keywords:     keywords,
		MessageCount: m.MessageCount,
		StartedAt:    m.StartedAt,
		LastActivity: m.LastActivity,
	}
}

// === 运行状态键值 ===

// GormStateRepository GORM 实现的运行状态仓储
type GormStateRepository struct {
	db *gorm.DB
}

// NewGormStateRepository 创建 GORM 运行状态仓储
func NewGormStateRepository(db *gorm.DB) repository.StateRepository {
	return &GormStateRepository{
		db: db,
	}
}

// Get 读取键值, 缺失时返回空串
func (r *GormStateRepository) Get(ctx context.Context, key string) (string, error) {
	var model models.StateModel
	err := r.db.WithContext(ctx).First(&model, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", domainErrors.NewInternalError("failed to read state: " + err.Error())
	}
	return model.Value, nil
}

// Set 写入键值
func (r *GormStateRepository) Set(ctx context.Context, key, value string) error {
	model := &models.StateModel{Key: key, Value: value}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to write state: " + err.Error())
	}
	return nil
}
