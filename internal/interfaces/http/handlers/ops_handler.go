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
	"github.com/nexira/nexira/internal/infrastructure/backup"
	"github.com/nexira/nexira/internal/infrastructure/config"
	"github.com/nexira/nexira/internal/infrastructure/email"
	"github.com/nexira/nexira/internal/infrastructure/imagegen"
	"github.com/nexira/nexira/internal/infrastructure/moltbook"
	"github.com/nexira/nexira/internal/infrastructure/secret"
	"github.com/nexira/nexira/pkg/errors"
)

// OpsHandler 运维与协作方: 配置 / 邮件 / 整理 / 备份 / 社区 / 搜索 / 创作 / 图片 / 活动流
type OpsHandler struct {
	cfgPath      string
	box          *secret.Box
	identity     *service.IdentityService
	mailer       *email.Mailer
	summary      *email.DailySummary
	consolidator *service.Consolidator
	backups      *backup.Service
	social       *moltbook.Client
	searcher     service.Searcher
	creative     *service.CreativeStudio
	images       *imagegen.Generator

	emailLog      repository.EmailLogRepository
	searchLog     repository.SearchLogRepository
	activity      repository.ActivityRepository
	errlog        repository.ErrorLogRepository
	consolidation repository.ConsolidationRepository

	logger *zap.Logger
}

// OpsDeps OpsHandler 的装配参数
type OpsDeps struct {
	ConfigPath    string
	Box           *secret.Box
	Identity      *service.IdentityService
	Mailer        *email.Mailer
	Summary       *email.DailySummary
	Consolidator  *service.Consolidator
	Backups       *backup.Service
	Social        *moltbook.Client
	Searcher      service.Searcher
	Creative      *service.CreativeStudio
	Images        *imagegen.Generator
	EmailLog      repository.EmailLogRepository
	SearchLog     repository.SearchLogRepository
	Activity      repository.ActivityRepository
	Errors        repository.ErrorLogRepository
	Consolidation repository.ConsolidationRepository
}

func NewOpsHandler(deps OpsDeps, logger *zap.Logger) *OpsHandler {
	return &OpsHandler{
		cfgPath:       deps.ConfigPath,
		box:           deps.Box,
		identity:      deps.Identity,
		mailer:        deps.Mailer,
		summary:       deps.Summary,
		consolidator:  deps.Consolidator,
		backups:       deps.Backups,
		social:        deps.Social,
		searcher:      deps.Searcher,
		creative:      deps.Creative,
		images:        deps.Images,
		emailLog:      deps.EmailLog,
		searchLog:     deps.SearchLog,
		activity:      deps.Activity,
		errlog:        deps.Errors,
		consolidation: deps.Consolidation,
		logger:        logger,
	}
}

// ─── Config ───

// GetConfig GET /api/config, 密钥字段打码
func (h *OpsHandler) GetConfig(c *gin.Context) {
	settings, err := config.Settings(h.cfgPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, config.MaskSecrets(settings))
}

// SaveConfig POST /api/config, 深合并补丁
// 密钥字段落盘前加密; 打码值视为 "未修改" 丢弃
func (h *OpsHandler) SaveConfig(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.sealSecrets(patch)
	if err := config.SavePatch(h.cfgPath, patch); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// 热加载由 fsnotify 监听触发, 这里只确认写入
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

// sealSecrets 就地处理补丁里的敏感字段
func (h *OpsHandler) sealSecrets(patch map[string]any) {
	for section, key := range map[string]string{
		"email":    "password",
		"moltbook": "api_key",
		"telegram": "bot_token",
	} {
		sec, ok := patch[section].(map[string]any)
		if !ok {
			continue
		}
		raw, ok := sec[key].(string)
		if !ok {
			continue
		}
		if raw == "" || raw == "********" {
			delete(sec, key)
			continue
		}
		sec[key] = h.box.Encrypt(raw)
	}
}

// ─── Email ───

// EmailConfig POST /api/email/config, 只收 email/daily_email 两段
func (h *OpsHandler) EmailConfig(c *gin.Context) {
	var body struct {
		Email      map[string]any `json:"email"`
		DailyEmail map[string]any `json:"daily_email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patch := map[string]any{}
	if body.Email != nil {
		patch["email"] = body.Email
	}
	if body.DailyEmail != nil {
		patch["daily_email"] = body.DailyEmail
	}
	h.sealSecrets(patch)
	if err := config.SavePatch(h.cfgPath, patch); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

// EmailTest POST /api/email/test
func (h *OpsHandler) EmailTest(c *gin.Context) {
	if err := h.mailer.SendTest(c.Request.Context(), h.identity.Name()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// EmailSendSummary POST /api/email/send-summary
func (h *OpsHandler) EmailSendSummary(c *gin.Context) {
	if err := h.summary.Send(c.Request.Context(), h.identity.Name()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// EmailPreview GET /api/email/preview
func (h *OpsHandler) EmailPreview(c *gin.Context) {
	subject, body := h.summary.Preview(c.Request.Context(), h.identity.Name())
	c.JSON(http.StatusOK, gin.H{"subject": subject, "body": body})
}

// EmailLog GET /api/email/log
func (h *OpsHandler) EmailLog(c *gin.Context) {
	entries, err := h.emailLog.FindRecent(c.Request.Context(), queryInt(c, "limit", 30))
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"log": entries})
}

// ─── Consolidation ───

// RunConsolidation POST /api/consolidation/run
func (h *OpsHandler) RunConsolidation(c *gin.Context) {
	run, err := h.consolidator.Run(c.Request.Context(), h.identity.Name())
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

// ConsolidationHistory GET /api/consolidation/history
func (h *OpsHandler) ConsolidationHistory(c *gin.Context) {
	runs, err := h.consolidation.FindRecent(c.Request.Context(), queryInt(c, "limit", 14))
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// ─── Backups ───

// ListBackups GET /api/backups
func (h *OpsHandler) ListBackups(c *gin.Context) {
	backups, err := h.backups.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"backups": backups})
}

// RunBackup POST /api/backups/run
func (h *OpsHandler) RunBackup(c *gin.Context) {
	path, err := h.backups.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "created", "path": path})
}

// ─── Moltbook ───

// MoltbookStatus GET /api/moltbook/status
func (h *OpsHandler) MoltbookStatus(c *gin.Context) {
	if !h.social.Enabled() {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}
	status, err := h.social.ClaimStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"enabled": true, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true, "status": status})
}

// MoltbookRegister POST /api/moltbook/register {name, description}
func (h *OpsHandler) MoltbookRegister(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name == "" {
		req.Name = h.identity.Name()
	}

	result, err := h.social.Register(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	// API key 直接进配置文件, 加密落盘
	patch := map[string]any{"moltbook": map[string]any{
		"api_key":    h.box.Encrypt(result.APIKey),
		"agent_name": req.Name,
		"claim_url":  result.ClaimURL,
	}}
	if err := config.SavePatch(h.cfgPath, patch); err != nil {
		h.logger.Error("Failed to persist moltbook credentials", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"claim_url": result.ClaimURL})
}

// MoltbookPost POST /api/moltbook/post {title, content}
func (h *OpsHandler) MoltbookPost(c *gin.Context) {
	var req struct {
		Title   string `json:"title" binding:"required"`
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	postID, err := h.social.CreatePost(c.Request.Context(), req.Title, req.Content)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"post_id": postID})
}

// MoltbookFeed GET /api/moltbook/feed?sort=&limit=
func (h *OpsHandler) MoltbookFeed(c *gin.Context) {
	if cached := h.social.CachedFeed(); cached != nil && c.Query("refresh") == "" {
		c.JSON(http.StatusOK, gin.H{"posts": cached, "cached": true})
		return
	}
	posts, err := h.social.Feed(c.Request.Context(), c.Query("sort"), queryInt(c, "limit", 10))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// ─── Search ───

// Search POST /api/search {query, max_results}
func (h *OpsHandler) Search(c *gin.Context) {
	var req struct {
		Query      string `json:"query" binding:"required"`
		MaxResults int    `json:"max_results"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.searcher.Search(c.Request.Context(), req.Query, req.MaxResults)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": req.Query, "results": results})
}

// SearchHistory GET /api/search/history
func (h *OpsHandler) SearchHistory(c *gin.Context) {
	entries, err := h.searchLog.FindRecent(c.Request.Context(), queryInt(c, "limit", 30))
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// ─── Creative ───

// CreativeGenerate POST /api/creative/generate {prompt, mode, language?}
func (h *OpsHandler) CreativeGenerate(c *gin.Context) {
	var req struct {
		Prompt   string `json:"prompt" binding:"required"`
		Mode     string `json:"mode" binding:"required"`
		Language string `json:"language"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	work, err := h.creative.Generate(c.Request.Context(), req.Prompt, req.Mode, req.Language)
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"work": work})
}

// CreativeRefine POST /api/creative/refine {id, instruction}
func (h *OpsHandler) CreativeRefine(c *gin.Context) {
	var req struct {
		ID          int64  `json:"id" binding:"required"`
		Instruction string `json:"instruction" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	work, err := h.creative.Refine(c.Request.Context(), req.ID, req.Instruction)
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"work": work})
}

// CreativeExecute POST /api/creative/execute {id}
func (h *OpsHandler) CreativeExecute(c *gin.Context) {
	var req struct {
		ID int64 `json:"id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	work, err := h.creative.Execute(c.Request.Context(), req.ID)
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"work": work})
}

// CreativeHistory GET /api/creative/history
func (h *OpsHandler) CreativeHistory(c *gin.Context) {
	works, err := h.creative.History(c.Request.Context(), queryInt(c, "limit", 20))
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"works": works})
}

// ─── Images ───

// ListImages GET /api/images
func (h *OpsHandler) ListImages(c *gin.Context) {
	images, err := h.images.List(queryInt(c, "limit", 20))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": images})
}

// GenerateImage POST /api/images/generate {prompt}
func (h *OpsHandler) GenerateImage(c *gin.Context) {
	var req struct {
		Prompt string `json:"prompt" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	path, err := h.images.Generate(c.Request.Context(), req.Prompt)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

// ImageFile GET /api/images/file/*path
func (h *OpsHandler) ImageFile(c *gin.Context) {
	full, err := h.images.Open(c.Param("path"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	c.File(full)
}

// ─── Activity ───

// ActivityLog GET /api/activity/log
func (h *OpsHandler) ActivityLog(c *gin.Context) {
	var (
		events []*entity.ActivityEvent
		err    error
	)
	if t := c.Query("type"); t != "" {
		events, err = h.activity.FindRecentByType(c.Request.Context(), t, queryInt(c, "limit", 50))
	} else {
		events, err = h.activity.FindRecent(c.Request.Context(), queryInt(c, "limit", 50))
	}
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// ─── Errors ───

// ErrorLog GET /api/errors
func (h *OpsHandler) ErrorLog(c *gin.Context) {
	entries, err := h.errlog.FindRecent(c.Request.Context(), queryInt(c, "limit", 50))
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"errors": entries})
}

// ResolveError POST /api/errors/:id/resolve
func (h *OpsHandler) ResolveError(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.errlog.Resolve(c.Request.Context(), id); err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}

// AddActivityNote POST /api/activity/log {label, detail}
func (h *OpsHandler) AddActivityNote(c *gin.Context) {
	var req struct {
		Label  string `json:"label" binding:"required"`
		Detail string `json:"detail"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event := &entity.ActivityEvent{
		Timestamp: time.Now(),
		Type:      entity.ActivitySystem,
		Label:     req.Label,
		Detail:    req.Detail,
	}
	if err := h.activity.Log(c.Request.Context(), event); err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}
