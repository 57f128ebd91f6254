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
	domainErrors "github.com/nexira/nexira/pkg/errors"
	"gorm.io/gorm"
)

// GormKnowledgeRepository GORM 实现的知识仓储
type GormKnowledgeRepository struct {
	db *gorm.DB
}

// NewGormKnowledgeRepository 创建 GORM 知识仓储
func NewGormKnowledgeRepository(db *gorm.DB) repository.KnowledgeRepository {
	return &GormKnowledgeRepository{
		db: db,
	}
}

// Upsert 按 topic 插入或合并知识条目
// 置信度只升不降, confirmation_count 递增, source_weeks 追加
func (r *GormKnowledgeRepository) Upsert(ctx context.Context, fact *entity.KnowledgeFact) (*entity.KnowledgeFact, error) {
	var existing models.KnowledgeFactModel
	err := r.db.WithContext(ctx).First(&existing, "topic = ?", fact.Topic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		model := r.toModel(fact)
		if model.ConfirmationCount < 1 {
			model.ConfirmationCount = 1
		}
		if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
			return nil, domainErrors.NewInternalError("failed to insert fact: " + err.Error())
		}
		return r.toEntity(model), nil
	}
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to look up fact: " + err.Error())
	}

	// 合并: 新内容覆盖, 置信度取大, 确认数加一
	if fact.Confidence > existing.Confidence {
		existing.Confidence = fact.Confidence
	}
	if fact.Content != "" {
		existing.Content = fact.Content
	}
	existing.ConfirmationCount++
	existing.LastAccessed = time.Now()
	existing.SourceWeeks = mergeSourceWeeks(existing.SourceWeeks, fact.SourceWeeks)

	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return nil, domainErrors.NewInternalError("failed to merge fact: " + err.Error())
	}
	return r.toEntity(&existing), nil
}

// FindByTopic 精确查找
func (r *GormKnowledgeRepository) FindByTopic(ctx context.Context, topic string) (*entity.KnowledgeFact, error) {
	var model models.KnowledgeFactModel
	if err := r.db.WithContext(ctx).First(&model, "topic = ?", topic).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("fact not found")
		}
		return nil, domainErrors.NewInternalError("failed to find fact: " + err.Error())
	}
	return r.toEntity(&model), nil
}

// Search 按关键词模糊检索 topic 与 content
func (r *GormKnowledgeRepository) Search(ctx context.Context, query string, limit int) ([]*entity.KnowledgeFact, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	var rows []models.KnowledgeFactModel
	err := r.db.WithContext(ctx).
		Where("LOWER(topic) LIKE ? OR LOWER(content) LIKE ?", pattern, pattern).
		Order("confidence desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to search facts: " + err.Error())
	}
	return r.toEntities(rows), nil
}

// FindRecent 按学习时间倒序
func (r *GormKnowledgeRepository) FindRecent(ctx context.Context, limit int) ([]*entity.KnowledgeFact, error) {
	var rows []models.KnowledgeFactModel
	err := r.db.WithContext(ctx).
		Order("learned_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find facts: " + err.Error())
	}
	return r.toEntities(rows), nil
}

// AllTopics 返回全部 topic 的小写形式
func (r *GormKnowledgeRepository) AllTopics(ctx context.Context) ([]string, error) {
	var topics []string
	err := r.db.WithContext(ctx).
		Model(&models.KnowledgeFactModel{}).
		Pluck("LOWER(topic)", &topics).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to list topics: " + err.Error())
	}
	return topics, nil
}

// Count 知识条目总数
func (r *GormKnowledgeRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.KnowledgeFactModel{}).Count(&count).Error; err != nil {
		return 0, domainErrors.NewInternalError("failed to count facts: " + err.Error())
	}
	return count, nil
}

func (r *GormKnowledgeRepository) toModel(e *entity.KnowledgeFact) *models.KnowledgeFactModel {
	weeks := ""
	if len(e.SourceWeeks) > 0 {
		if data, err := json.Marshal(e.SourceWeeks); err == nil {
			weeks = string(data)
		}
	}
	return &models.KnowledgeFactModel{
		ID:                e.ID,
		Topic:             e.Topic,
		Content:           e.Content,
		Source:            e.Source,
		Confidence:        e.Confidence,
		LearnedAt:         e.LearnedAt,
		LastAccessed:      e.LastAccessed,
		ConfirmationCount: e.ConfirmationCount,
		SourceWeeks:       weeks,
	}
}

func (r *GormKnowledgeRepository) toEntity(m *models.KnowledgeFactModel) *entity.KnowledgeFact {
	var weeks []int
	if m.SourceWeeks != "" {
		_ = json.Unmarshal([]byte(m.SourceWeeks), &weeks)
	}
	return &entity.KnowledgeFact{
		ID:                m.ID,
		Topic:             m.Topic,
		Content:           m.Content,
		Source:            m.Source,
		Confidence:        m.Confidence,
		LearnedAt:         m.LearnedAt,
		LastAccessed:      m.LastAccessed,
		ConfirmationCount: m.ConfirmationCount,
		SourceWeeks:       weeks,
	}
}

func (r *GormKnowledgeRepository) toEntities(rows []models.KnowledgeFactModel) []*entity.KnowledgeFact {
	out := make([]*entity.KnowledgeFact, 0, len(rows))
	for i := range rows {
		out = append(out, r.toEntity(&rows[i]))
	}
	return out
}

// mergeSourceWeeks 合并两份周序号列表, 去重保序
func mergeSourceWeeks(existing string, add []int) string {
	var weeks []int
	if existing != "" {
		_ = json.Unmarshal([]byte(existing), &weeks)
	}
	seen := make(map[int]bool, len(weeks))
	for _, w := range weeks {
		seen[w] = true
	}
	for _, w := range add {
		if !seen[w] {
			weeks = append(weeks, w)
			seen[w] = true
		}
	}
	if len(weeks) == 0 {
		return existing
	}
	data, err := json.Marshal(weeks)
	if err != nil {
		return existing
	}
	return string(data)
}

// GormEpisodeRepository GORM 实现的剧情摘要仓储
type GormEpisodeRepository struct {
	db *gorm.DB
}

// NewGormEpisodeRepository 创建 GORM 剧情摘要仓储
func NewGormEpisodeRepository(db *gorm.DB) repository.EpisodeRepository {
	return &GormEpisodeRepository{
		db: db,
	}
}

// Save 保存摘要
func (r *GormEpisodeRepository) Save(ctx context.Context, episode *entity.EpisodeSummary) error {
	model := r.toModel(episode)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save episode: " + err.Error())
	}
	episode.ID = model.ID
	return nil
}

// MaxRangeEnd 已覆盖的最大消息 ID
func (r *GormEpisodeRepository) MaxRangeEnd(ctx context.Context) (int64, error) {
	var maxEnd int64
	err := r.db.WithContext(ctx).
		Model(&models.EpisodeModel{}).
		Select("COALESCE(MAX(range_end), 0)").
		Scan(&maxEnd).Error
	if err != nil {
		return 0, domainErrors.NewInternalError("failed to read max range end: " + err.Error())
	}
	return maxEnd, nil
}

// FindRecent 按创建时间倒序返回未归档摘要
func (r *GormEpisodeRepository) FindRecent(ctx context.Context, limit int) ([]*entity.EpisodeSummary, error) {
	var rows []models.EpisodeModel
	err := r.db.WithContext(ctx).
		Where("archived = ?", false).
		Order("id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find episodes: " + err.Error())
	}
	return r.toEntities(rows), nil
}

// FindUncommittedSince 返回某时刻后未提交未归档的摘要
func (r *GormEpisodeRepository) FindUncommittedSince(ctx context.Context, since time.Time) ([]*entity.EpisodeSummary, error) {
	var rows []models.EpisodeModel
	err := r.db.WithContext(ctx).
		Where("committed = ? AND archived = ? AND created_at >= ?", false, false, since).
		Order("id asc").
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find uncommitted episodes: " + err.Error())
	}
	return r.toEntities(rows), nil
}

// Search 在归档摘要里按关键词检索
func (r *GormEpisodeRepository) Search(ctx context.Context, keyword string, limit int) ([]*entity.EpisodeSummary, error) {
	pattern := "%" + strings.ToLower(keyword) + "%"
	var rows []models.EpisodeModel
	err := r.db.WithContext(ctx).
		Where("LOWER(summary) LIKE ? OR LOWER(topics) LIKE ?", pattern, pattern).
		Order("id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to search episodes: " + err.Error())
	}
	return r.toEntities(rows), nil
}

// MarkCommitted 批量置为 committed + archived
func (r *GormEpisodeRepository) MarkCommitted(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.EpisodeModel{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"committed": true, "archived": true}).Error
	if err != nil {
		return domainErrors.NewInternalError("failed to commit episodes: " + err.Error())
	}
	return nil
}

// Count 摘要总数
func (r *GormEpisodeRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.EpisodeModel{}).Count(&count).Error; err != nil {
		return 0, domainErrors.NewInternalError("failed to count episodes: " + err.Error())
	}
	return count, nil
}

func (r *GormEpisodeRepository) toModel(e *entity.EpisodeSummary) *models.EpisodeModel {
	topics := ""
	if len(e.Topics) > 0 {
		if data, err := json.Marshal(e.Topics); err == nil {
			topics = string(data)
		}
	}
	return &models.EpisodeModel{
		ID:         e.ID,
		CreatedAt:  e.CreatedAt,
		WeekNumber: e.WeekNumber,
		RangeStart: e.RangeStart,
		RangeEnd:   e.RangeEnd,
		Summary:    e.Summary,
		Topics:     topics,
		Importance: e.Importance,
		Committed:  e.Committed,
		Archived:   e.Archived,
	}
}

func (r *GormEpisodeRepository) toEntity(m *models.EpisodeModel) *entity.EpisodeSummary {
	var topics []string
	if m.Topics != "" {
		_ = json.Unmarshal([]byte(m.Topics), &topics)
	}
	return &entity.EpisodeSummary{
		ID:         m.ID,
		CreatedAt:  m.CreatedAt,
		WeekNumber: m.WeekNumber,
		RangeStart: m.RangeStart,
		RangeEnd:   m.RangeEnd,
		Summary:    m.Summary,
		Topics:     topics,
		Importance: m.Importance,
		Committed:  m.Committed,
		Archived:   m.Archived,
	}
}

func (r *GormEpisodeRepository) toEntities(rows []models.EpisodeModel) []*entity.EpisodeSummary {
	out := make([]*entity.EpisodeSummary, 0, len(rows))
	for i := range rows {
		out = append(out, r.toEntity(&rows[i]))
	}
	return out
}

// GormWeeklyRepository GORM 实现的周归纳仓储
type GormWeeklyRepository struct {
	db *gorm.DB
}

// NewGormWeeklyRepository 创建 GORM 周归纳仓储
func NewGormWeeklyRepository(db *gorm.DB) repository.WeeklyRepository {
	return &GormWeeklyRepository{
		db: db,
	}
}

// Save 保存周归纳
func (r *GormWeeklyRepository) Save(ctx context.Context, synthesis *entity.WeeklySynthesis) error {
	confirmed, _ := json.Marshal(synthesis.ConfirmedTopics)
	tentative, _ := json.Marshal(synthesis.TentativeTopics)

	model := &models.WeeklySynthesisModel{
		ID:                  synthesis.ID,
		ISOWeek:             synthesis.ISOWeek,
		WeekStart:           synthesis.WeekStart,
		WeekEnd:             synthesis.WeekEnd,
		Synthesis:           synthesis.Synthesis,
		ConfirmedTopics:     string(confirmed),
		TentativeTopics:     string(tentative),
		Corrections:         synthesis.Corrections,
		KnowledgeItemsAdded: synthesis.KnowledgeItemsAdded,
		CreatedAt:           synthesis.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save weekly synthesis: " + err.Error())
	}
	synthesis.ID = model.ID
	return nil
}

// FindByWeek 按 ISO 周键查找
func (r *GormWeeklyRepository) FindByWeek(ctx context.Context, isoWeek string) (*entity.WeeklySynthesis, error) {
	var model models.WeeklySynthesisModel
	if err := r.db.WithContext(ctx).First(&model, "iso_week = ?", isoWeek).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("weekly synthesis not found")
		}
		return nil, domainErrors.NewInternalError("failed to find weekly synthesis: " + err.Error())
	}
	return r.toEntity(&model), nil
}

// FindRecent 按周倒序
func (r *GormWeeklyRepository) FindRecent(ctx context.Context, limit int) ([]*entity.WeeklySynthesis, error) {
	var rows []models.WeeklySynthesisModel
	err := r.db.WithContext(ctx).
		Order("iso_week desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find weekly syntheses: " + err.Error())
	}

	out := make([]*entity.WeeklySynthesis, 0, len(rows))
	for i := range rows {
		out = append(out, r.toEntity(&rows[i]))
	}
	return out, nil
}

func (r *GormWeeklyRepository) toEntity(m *models.WeeklySynthesisModel) *entity.WeeklySynthesis {
	var confirmed, tentative []string
	if m.ConfirmedTopics != "" {
		_ = json.Unmarshal([]byte(m.ConfirmedTopics), &confirmed)
	}
	if m.TentativeTopics != "" {
		_ = json.Unmarshal([]byte(m.TentativeTopics), &tentative)
	}
	return &entity.WeeklySynthesis{
		ID:                  m.ID,
		ISOWeek:             m.ISOWeek,
		WeekStart:           m.WeekStart,
		WeekEnd:             m.WeekEnd,
		Synthesis:           m.Synthesis,
		ConfirmedTopics:     confirmed,
		TentativeTopics:     tentative,
		Corrections:         m.Corrections,
		KnowledgeItemsAdded: m.KnowledgeItemsAdded,
		CreatedAt:           m.CreatedAt,
	}
}
