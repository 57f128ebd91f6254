package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"github.com/nexira/nexira/internal/infrastructure/persistence/models"
	"github.com/nexira/nexira/internal/infrastructure/secret"
	domainErrors "github.com/nexira/nexira/pkg/errors"
	"gorm.io/gorm"
)

// GormJournalRepository GORM 实现的日记仓储
// 内容落盘前用密钥盒加密, 读出时解密, 调用方只见明文
type GormJournalRepository struct {
	db  *gorm.DB
	box *secret.Box
}

// NewGormJournalRepository 创建 GORM 日记仓储
func NewGormJournalRepository(db *gorm.DB, box *secret.Box) repository.JournalRepository {
	return &GormJournalRepository{
		db:  db,
		box: box,
	}
}

// Save 保存日记
func (r *GormJournalRepository) Save(ctx context.Context, entry *entity.JournalEntry) error {
	topics := ""
	if len(entry.Topics) > 0 {
		if data, err := json.Marshal(entry.Topics); err == nil {
			topics = string(data)
		}
	}

	model := &models.JournalModel{
		ID:        entry.ID,
		Timestamp: entry.Timestamp,
		Type:      entry.Type,
		Title:     entry.Title,
		Content:   r.box.Encrypt(entry.Content),
		Mood:      entry.Mood,
		Topics:    topics,
		WordCount: entry.WordCount,
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save journal entry: " + err.Error())
	}
	entry.ID = model.ID
	return nil
}

// FindRecent 按时间倒序返回日记
func (r *GormJournalRepository) FindRecent(ctx context.Context, limit int) ([]*entity.JournalEntry, error) {
	var rows []models.JournalModel
	err := r.db.WithContext(ctx).
		Order("id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find journal entries: " + err.Error())
	}
	return r.toEntities(rows), nil
}

// FindByType 按类型、时间倒序返回日记
func (r *GormJournalRepository) FindByType(ctx context.Context, entryType string, limit int) ([]*entity.JournalEntry, error) {
	var rows []models.JournalModel
	err := r.db.WithContext(ctx).
		Where("type = ?", entryType).
		Order("id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find journal entries: " + err.Error())
	}
	return r.toEntities(rows), nil
}

// CountByType 某类型日记数
func (r *GormJournalRepository) CountByType(ctx context.Context, entryType string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.JournalModel{}).
		Where("type = ?", entryType).
		Count(&count).Error
	if err != nil {
		return 0, domainErrors.NewInternalError("failed to count journal entries: " + err.Error())
	}
	return count, nil
}

// Count 日记总数
func (r *GormJournalRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.JournalModel{}).Count(&count).Error; err != nil {
		return 0, domainErrors.NewInternalError("failed to count journal entries: " + err.Error())
	}
	return count, nil
}

func (r *GormJournalRepository) toEntities(rows []models.JournalModel) []*entity.JournalEntry {
	out := make([]*entity.JournalEntry, 0, len(rows))
	for _, m := range rows {
		var topics []string
		if m.Topics != "" {
			_ = json.Unmarshal([]byte(m.Topics), &topics)
		}
		out = append(out, &entity.JournalEntry{
			ID:        m.ID,
			Timestamp: m.Timestamp,
			Type:      m.Type,
			Title:     m.Title,
			Content:   r.box.Decrypt(m.Content),
			Mood:      m.Mood,
			Topics:    topics,
			WordCount: m.WordCount,
		})
	}
	return out
}

// GormAwarenessRepository GORM 实现的自我觉察仓储
type GormAwarenessRepository struct {
	db *gorm.DB
}

// NewGormAwarenessRepository 创建 GORM 自我觉察仓储
func NewGormAwarenessRepository(db *gorm.DB) repository.AwarenessRepository {
	return &GormAwarenessRepository{
		db: db,
	}
}

// Save 保存采样
func (r *GormAwarenessRepository) Save(ctx context.Context, sample *entity.SelfAwarenessSample) error {
	model := &models.AwarenessModel{
		Timestamp:          sample.Timestamp,
		SelfRefScore:       sample.SelfRefScore,
		UncertaintyScore:   sample.UncertaintyScore,
		MetaCognitionScore: sample.MetaCognitionScore,
		CompositeScore:     sample.CompositeScore,
		WordCount:          sample.WordCount,
		Sample:             sample.Sample,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save awareness sample: " + err.Error())
	}
	sample.ID = model.ID
	return nil
}

// FindSince 返回某时刻后的采样, 时间正序
func (r *GormAwarenessRepository) FindSince(ctx context.Context, since time.Time) ([]*entity.SelfAwarenessSample, error) {
	var rows []models.AwarenessModel
	err := r.db.WithContext(ctx).
		Where("timestamp >= ?", since).
		Order("id asc").
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find awareness samples: " + err.Error())
	}

	out := make([]*entity.SelfAwarenessSample, 0, len(rows))
	for i := range rows {
		out = append(out, r.toEntity(&rows[i]))
	}
	return out, nil
}

// Latest 最近一条采样
func (r *GormAwarenessRepository) Latest(ctx context.Context) (*entity.SelfAwarenessSample, error) {
	var model models.AwarenessModel
	if err := r.db.WithContext(ctx).Order("id desc").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("no awareness samples")
		}
		return nil, domainErrors.NewInternalError("failed to find latest sample: " + err.Error())
	}
	return r.toEntity(&model), nil
}

func (r *GormAwarenessRepository) toEntity(m *models.AwarenessModel) *entity.SelfAwarenessSample {
	return &entity.SelfAwarenessSample{
		ID:                 m.ID,
		Timestamp:          m.Timestamp,
		SelfRefScore:       m.SelfRefScore,
		UncertaintyScore:   m.UncertaintyScore,
		MetaCognitionScore: m.MetaCognitionScore,
		CompositeScore:     m.CompositeScore,
		WordCount:          m.WordCount,
		Sample:             m.Sample,
	}
}

// GormSelfModelRepository GORM 实现的自我模型仓储
type GormSelfModelRepository struct {
	db *gorm.DB
}

// NewGormSelfModelRepository 创建 GORM 自我模型仓储
func NewGormSelfModelRepository(db *gorm.DB) repository.SelfModelRepository {
	return &GormSelfModelRepository{
		db: db,
	}
}

// UpsertNote 按 key 写入或更新行事规则
func (r *GormSelfModelRepository) UpsertNote(ctx context.Context, key, value string) error {
	var existing models.OperatingNoteModel
	err := r.db.WithContext(ctx).First(&existing, "key = ?", key).Error
	now := time.Now()

	if errors.Is(err, gorm.ErrRecordNotFound) {
		model := &models.OperatingNoteModel{
			Key:         key,
			Value:       value,
			Created:     now,
			LastUpdated: now,
			UpdateCount: 1,
		}
		if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
			return domainErrors.NewInternalError("failed to create operating note: " + err.Error())
		}
		return nil
	}
	if err != nil {
		return domainErrors.NewInternalError("failed to look up operating note: " + err.Error())
	}

	existing.Value = value
	existing.LastUpdated = now
	existing.UpdateCount++
	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return domainErrors.NewInternalError("failed to update operating note: " + err.Error())
	}
	return nil
}

// FindNotes 按更新时间倒序返回行事规则
func (r *GormSelfModelRepository) FindNotes(ctx context.Context, limit int) ([]*entity.OperatingNote, error) {
	var rows []models.OperatingNoteModel
	err := r.db.WithContext(ctx).
		Order("last_updated desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find operating notes: " + err.Error())
	}

	out := make([]*entity.OperatingNote, 0, len(rows))
	for _, m := range rows {
		out = append(out, &entity.OperatingNote{
			ID:          m.ID,
			Key:         m.Key,
			Value:       m.Value,
			Created:     m.Created,
			LastUpdated: m.LastUpdated,
			UpdateCount: m.UpdateCount,
		})
	}
	return out, nil
}

// SaveMistake 记录一次纠错
func (r *GormSelfModelRepository) SaveMistake(ctx context.Context, mistake *entity.Mistake) error {
	model := &models.MistakeModel{
		Timestamp:      mistake.Timestamp,
		Topic:          mistake.Topic,
		Correction:     mistake.Correction,
		BehavioralRule: mistake.BehavioralRule,
		AppliedCount:   mistake.AppliedCount,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save mistake: " + err.Error())
	}
	mistake.ID = model.ID
	return nil
}

// FindMistakes 按时间倒序返回纠错记录
func (r *GormSelfModelRepository) FindMistakes(ctx context.Context, limit int) ([]*entity.Mistake, error) {
	var rows []models.MistakeModel
	err := r.db.WithContext(ctx).
		Order("id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find mistakes: " + err.Error())
	}

	out := make([]*entity.Mistake, 0, len(rows))
	for _, m := range rows {
		out = append(out, &entity.Mistake{
			ID:             m.ID,
			Timestamp:      m.Timestamp,
			Topic:          m.Topic,
			Correction:     m.Correction,
			BehavioralRule: m.BehavioralRule,
			AppliedCount:   m.AppliedCount,
		})
	}
	return out, nil
}

// MistakeTopicMatch 判断关键词是否命中任何纠错话题
func (r *GormSelfModelRepository) MistakeTopicMatch(ctx context.Context, keyword string) (bool, error) {
	pattern := "%" + strings.ToLower(keyword) + "%"
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.MistakeModel{}).
		Where("LOWER(topic) LIKE ?", pattern).
		Count(&count).Error
	if err != nil {
		return false, domainErrors.NewInternalError("failed to match mistake topics: " + err.Error())
	}
	return count > 0, nil
}

// UpsertUserAttr 按 attribute 写入或更新用户画像
func (r *GormSelfModelRepository) UpsertUserAttr(ctx context.Context, attribute, value string, confidence float64) error {
	var existing models.UserAttrModel
	err := r.db.WithContext(ctx).First(&existing, "attribute = ?", attribute).Error
	now := time.Now()

	if errors.Is(err, gorm.ErrRecordNotFound) {
		model := &models.UserAttrModel{
			Attribute:     attribute,
			Value:         value,
			Confidence:    confidence,
			LastUpdated:   now,
			EvidenceCount: 1,
		}
		if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
			return domainErrors.NewInternalError("failed to create user attr: " + err.Error())
		}
		return nil
	}
	if err != nil {
		return domainErrors.NewInternalError("failed to look up user attr: " + err.Error())
	}

	existing.Value = value
	if confidence > existing.Confidence {
		existing.Confidence = confidence
	}
	existing.LastUpdated = now
	existing.EvidenceCount++
	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return domainErrors.NewInternalError("failed to update user attr: " + err.Error())
	}
	return nil
}

// FindUserAttrs 返回全部用户画像
func (r *GormSelfModelRepository) FindUserAttrs(ctx context.Context) ([]*entity.UserModelAttr, error) {
	var rows []models.UserAttrModel
	if err := r.db.WithContext(ctx).Order("evidence_count desc").Find(&rows).Error; err != nil {
		return nil, domainErrors.NewInternalError("failed to find user attrs: " + err.Error())
	}

	out := make([]*entity.UserModelAttr, 0, len(rows))
	for _, m := range rows {
		out = append(out, &entity.UserModelAttr{
			ID:            m.ID,
			Attribute:     m.Attribute,
			Value:         m.Value,
			Confidence:    m.Confidence,
			LastUpdated:   m.LastUpdated,
			EvidenceCount: m.EvidenceCount,
		})
	}
	return out, nil
}

// GormConsolidationRepository GORM 实现的夜间整理记录仓储
type GormConsolidationRepository struct {
	db *gorm.DB
}

// NewGormConsolidationRepository 创建 GORM 夜间整理记录仓储
func NewGormConsolidationRepository(db *gorm.DB) repository.ConsolidationRepository {
	return &GormConsolidationRepository{
		db: db,
	}
}

// FindByDate 按日历日查找
func (r *GormConsolidationRepository) FindByDate(ctx context.Context, runDate string) (*entity.ConsolidationRun, error) {
	var model models.ConsolidationRunModel
	if err := r.db.WithContext(ctx).First(&model, "run_date = ?", runDate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("consolidation run not found")
		}
		return nil, domainErrors.NewInternalError("failed to find consolidation run: " + err.Error())
	}
	return r.toEntity(&model), nil
}

// Save 写入执行记录
func (r *GormConsolidationRepository) Save(ctx context.Context, run *entity.ConsolidationRun) error {
	model := &models.ConsolidationRunModel{
		ID:                 run.ID,
		RunDate:            run.RunDate,
		FactsExtracted:     run.FactsExtracted,
		CuriosityProcessed: run.CuriosityProcessed,
		JournalsWritten:    run.JournalsWritten,
		SnapshotWritten:    run.SnapshotWritten,
		DurationSeconds:    run.DurationSeconds,
		Summary:            run.Summary,
		CreatedAt:          run.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save consolidation run: " + err.Error())
	}
	run.ID = model.ID
	return nil
}

// Count 历史执行次数
func (r *GormConsolidationRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ConsolidationRunModel{}).Count(&count).Error; err != nil {
		return 0, domainErrors.NewInternalError("failed to count consolidation runs: " + err.Error())
	}
	return count, nil
}

// FindRecent 按日期倒序返回执行记录
func (r *GormConsolidationRepository) FindRecent(ctx context.Context, limit int) ([]*entity.ConsolidationRun, error) {
	var rows []models.ConsolidationRunModel
	err := r.db.WithContext(ctx).
		Order("run_date desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find consolidation runs: " + err.Error())
	}

	out := make([]*entity.ConsolidationRun, 0, len(rows))
	for i := range rows {
		out = append(out, r.toEntity(&rows[i]))
	}
	return out, nil
}

func (r *GormConsolidationRepository) toEntity(m *models.ConsolidationRunModel) *entity.ConsolidationRun {
	return &entity.ConsolidationRun{
		ID:                 m.ID,
		RunDate:            m.RunDate,
		FactsExtracted:     m.FactsExtracted,
		CuriosityProcessed: m.CuriosityProcessed,
		JournalsWritten:    m.JournalsWritten,
		SnapshotWritten:    m.SnapshotWritten,
		DurationSeconds:    m.DurationSeconds,
		Summary:            m.Summary,
		CreatedAt:          m.CreatedAt,
	}
}

// GormValueRepository GORM 实现的价值观仓储
type GormValueRepository struct {
	db *gorm.DB
}

// NewGormValueRepository 创建 GORM 价值观仓储
func NewGormValueRepository(db *gorm.DB) repository.ValueRepository {
	return &GormValueRepository{
		db: db,
	}
}

// Save 保存价值观
func (r *GormValueRepository) Save(ctx context.Context, value *entity.AIValue) error {
	model := &models.AIValueModel{
		ID:             value.ID,
		Statement:      value.Statement,
		Priority:       value.Priority,
		DevelopedAt:    value.DevelopedAt,
		OriginStory:    value.OriginStory,
		InfluenceCount: value.InfluenceCount,
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save value: " + err.Error())
	}
	value.ID = model.ID
	return nil
}

// FindTop 按优先级降序返回前 n 条
func (r *GormValueRepository) FindTop(ctx context.Context, n int) ([]*entity.AIValue, error) {
	var rows []models.AIValueModel
	err := r.db.WithContext(ctx).
		Order("priority desc").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find values: " + err.Error())
	}

	out := make([]*entity.AIValue, 0, len(rows))
	for i := range rows {
		m := &rows[i]
		out = append(out, &entity.AIValue{
			ID:             m.ID,
			Statement:      m.Statement,
			Priority:       m.Priority,
			DevelopedAt:    m.DevelopedAt,
			OriginStory:    m.OriginStory,
			InfluenceCount: m.InfluenceCount,
		})
	}
	return out, nil
}

// Count 价值观总数
func (r *GormValueRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.AIValueModel{}).Count(&count).Error; err != nil {
		return 0, domainErrors.NewInternalError("failed to count values: " + err.Error())
	}
	return count, nil
}
