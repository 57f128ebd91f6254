package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"github.com/nexira/nexira/internal/domain/service"
	"github.com/nexira/nexira/pkg/errors"
)

// MindRepos 心智侧只读仓储
type MindRepos struct {
	Messages      repository.MessageRepository
	Knowledge     repository.KnowledgeRepository
	Episodes      repository.EpisodeRepository
	Personality   repository.PersonalityRepository
	Goals         repository.GoalRepository
	Interests     repository.InterestRepository
	Curiosity     repository.CuriosityRepository
	Journal       repository.JournalRepository
	Consolidation repository.ConsolidationRepository
}

// MindHandler 人格 / 成长 / 记忆的观察面
type MindHandler struct {
	identity    *service.IdentityService
	personality *service.PersonalityEngine
	selfModel   *service.SelfModel
	awareness   *service.AwarenessMeter
	interests   *service.InterestTracker
	skills      *service.SkillTracker
	curiosity   *service.CuriosityEngine
	threading   *service.ThreadingEngine
	repos       MindRepos
	startedAt   time.Time
	logger      *zap.Logger
}

func NewMindHandler(
	identity *service.IdentityService,
	personality *service.PersonalityEngine,
	selfModel *service.SelfModel,
	awareness *service.AwarenessMeter,
	interests *service.InterestTracker,
	skills *service.SkillTracker,
	curiosity *service.CuriosityEngine,
	threading *service.ThreadingEngine,
	repos MindRepos,
	logger *zap.Logger,
) *MindHandler {
	return &MindHandler{
		identity:    identity,
		personality: personality,
		selfModel:   selfModel,
		awareness:   awareness,
		interests:   interests,
		skills:      skills,
		curiosity:   curiosity,
		threading:   threading,
		repos:       repos,
		startedAt:   time.Now(),
		logger:      logger,
	}
}

// Personality GET /api/personality
func (h *MindHandler) Personality(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ai_name":            h.identity.Name(),
		"awaiting_name":      h.identity.AwaitingName(),
		"age_days":           h.identity.AgeDays(),
		"relationship_stage": h.identity.RelationshipStage(),
		"traits":             h.personality.Traits(),
		"drift":              h.personality.Drift(),
		"emotions":           h.selfModel.Emotions(),
	})
}

// PersonalityHistory GET /api/personality/history
func (h *MindHandler) PersonalityHistory(c *gin.Context) {
	changes, err := h.repos.Personality.FindChanges(c.Request.Context(), queryInt(c, "limit", 50))
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": changes})
}

// PersonalityReset POST /api/personality/reset
func (h *MindHandler) PersonalityReset(c *gin.Context) {
	if err := h.personality.Reset(c.Request.Context()); err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset", "traits": h.personality.Traits()})
}

// ForceEvolve POST /api/personality/force-evolve
// 对最近一次交换重跑一轮演化
func (h *MindHandler) ForceEvolve(c *gin.Context) {
	ctx := c.Request.Context()
	recent, err := h.repos.Messages.FindRecent(ctx, 10)
	if err != nil || len(recent) == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "no conversation to evolve from"})
		return
	}

	var lastUser, lastAssistant string
	for i := len(recent) - 1; i >= 0; i-- {
		switch recent[i].Role {
		case entity.RoleUser:
			if lastUser == "" {
				lastUser = recent[i].Content
			}
		case entity.RoleAssistant:
			if lastAssistant == "" {
				lastAssistant = recent[i].Content
			}
		}
	}
	count, _ := h.repos.Messages.CountByRole(ctx, entity.RoleUser)

	changes, err := h.personality.Evolve(ctx, lastUser, lastAssistant, count)
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"changes": changes, "traits": h.personality.Traits()})
}

// Stats GET /api/stats
func (h *MindHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	messageCount, _ := h.repos.Messages.Count(ctx)
	conversationCount, _ := h.repos.Messages.CountByRole(ctx, entity.RoleUser)
	knowledgeCount, _ := h.repos.Knowledge.Count(ctx)
	episodeCount, _ := h.repos.Episodes.Count(ctx)
	activeGoals, _ := h.repos.Goals.CountActive(ctx)
	completedGoals, _ := h.repos.Goals.CountCompleted(ctx)
	interestCount, _ := h.repos.Interests.Count(ctx)
	journalCount, _ := h.repos.Journal.Count(ctx)
	traitChanges, _ := h.repos.Personality.CountChanges(ctx)
	pending, completed := h.curiosity.QueueSummary(ctx)

	c.JSON(http.StatusOK, gin.H{
		"ai_name":             h.identity.Name(),
		"age_days":            h.identity.AgeDays(),
		"relationship_stage":  h.identity.RelationshipStage(),
		"uptime_seconds":      int(time.Since(h.startedAt).Seconds()),
		"messages":            messageCount,
		"conversations":       conversationCount,
		"knowledge_facts":     knowledgeCount,
		"episodes":            episodeCount,
		"goals_active":        activeGoals,
		"goals_completed":     completedGoals,
		"interests":           interestCount,
		"journal_entries":     journalCount,
		"personality_changes": traitChanges,
		"curiosity_pending":   pending,
		"curiosity_completed": completed,
		"personality_drift":   h.personality.Drift(),
	})
}

// Journal GET /api/journal
func (h *MindHandler) Journal(c *gin.Context) {
	entries, err := h.repos.Journal.FindRecent(c.Request.Context(), queryInt(c, "limit", 20))
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// Goals GET /api/goals
func (h *MindHandler) Goals(c *gin.Context) {
	goals, err := h.repos.Goals.FindAll(c.Request.Context(), queryInt(c, "limit", 50))
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"goals": goals})
}

// Interests GET /api/interests
func (h *MindHandler) Interests(c *gin.Context) {
	interests, err := h.interests.Top(c.Request.Context(), queryInt(c, "limit", 20), "")
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"interests":  interests,
		"strengths":  h.skills.DescribeStrengths(c.Request.Context()),
		"competency": h.skills.CompetencyMap(c.Request.Context()),
	})
}

// Curiosity GET /api/curiosity
func (h *MindHandler) Curiosity(c *gin.Context) {
	ctx := c.Request.Context()
	pendingItems, err := h.repos.Curiosity.FindPending(ctx, queryInt(c, "limit", 20))
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	recent, _ := h.repos.Curiosity.FindRecent(ctx, 10)
	pending, completed := h.curiosity.QueueSummary(ctx)

	c.JSON(http.StatusOK, gin.H{
		"pending":         pendingItems,
		"recent":          recent,
		"pending_count":   pending,
		"completed_count": completed,
	})
}

// SelfAwareness GET /api/self-awareness
func (h *MindHandler) SelfAwareness(c *gin.Context) {
	ctx := c.Request.Context()
	level, err := h.awareness.Level(ctx)
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	trend, err := h.awareness.Trend(ctx, queryInt(c, "days", 14))
	if err != nil {
		h.logger.Warn("Awareness trend unavailable", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"current": level, "trend": trend})
}

// Threads GET /api/threads
func (h *MindHandler) Threads(c *gin.Context) {
	threads, err := h.threading.Threads(c.Request.Context(), queryInt(c, "limit", 50))
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

// Thread GET /api/threads/:id
func (h *MindHandler) Thread(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return
	}
	messages, err := h.threading.ThreadMessages(c.Request.Context(), id)
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// RebuildThreads POST /api/threads-rebuild
func (h *MindHandler) RebuildThreads(c *gin.Context) {
	if err := h.threading.Rebuild(c.Request.Context()); err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	threads, _ := h.threading.Threads(c.Request.Context(), 50)
	c.JSON(http.StatusOK, gin.H{"status": "rebuilt", "threads": len(threads)})
}
