package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/interfaces/http/handlers"
	"github.com/nexira/nexira/internal/interfaces/websocket"
)

// Server HTTP服务器
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// Config HTTP服务器配置
type Config struct {
	Host string
	Port int
	Mode string // debug, production
}

// NewServer 创建HTTP服务器并注册全部路由
func NewServer(
	cfg Config,
	chat *handlers.ChatHandler,
	mind *handlers.MindHandler,
	ops *handlers.OpsHandler,
	hub *websocket.Hub,
	logger *zap.Logger,
) *Server {
	// 设置Gin模式
	if cfg.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger))

	setupRoutes(router, chat, mind, ops, hub)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	return &Server{
		server: server,
		logger: logger,
	}
}

// Start 启动服务器
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", zap.String("address", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop 停止服务器
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// setupRoutes 设置路由
func setupRoutes(router *gin.Engine, chat *handlers.ChatHandler, mind *handlers.MindHandler, ops *handlers.OpsHandler, hub *websocket.Hub) {
	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	// WebSocket 实时对话
	if hub != nil {
		router.GET("/ws", func(c *gin.Context) {
			hub.ServeWS(c.Writer, c.Request)
		})
	}

	api := router.Group("/api")
	{
		// 对话
		api.POST("/chat", chat.Chat)
		api.GET("/chat/history", chat.History)
		api.POST("/feedback", chat.Feedback)
		api.POST("/upload", chat.Upload)
		api.GET("/uploads", chat.Uploads)

		// 人格与成长
		api.GET("/personality", mind.Personality)
		api.GET("/personality/history", mind.PersonalityHistory)
		api.POST("/personality/reset", mind.PersonalityReset)
		api.POST("/personality/force-evolve", mind.ForceEvolve)
		api.GET("/stats", mind.Stats)
		api.GET("/journal", mind.Journal)
		api.GET("/goals", mind.Goals)
		api.GET("/interests", mind.Interests)
		api.GET("/curiosity", mind.Curiosity)
		api.GET("/self-awareness", mind.SelfAwareness)

		// 会话线索
		api.GET("/threads", mind.Threads)
		api.GET("/threads/:id", mind.Thread)
		api.POST("/threads-rebuild", mind.RebuildThreads)

		// 配置
		api.GET("/config", ops.GetConfig)
		api.POST("/config", ops.SaveConfig)

		// 邮件
		api.POST("/email/config", ops.EmailConfig)
		api.POST("/email/test", ops.EmailTest)
		api.POST("/email/send-summary", ops.EmailSendSummary)
		api.GET("/email/preview", ops.EmailPreview)
		api.GET("/email/log", ops.EmailLog)

		// 夜间整理
		api.POST("/consolidation/run", ops.RunConsolidation)
		api.GET("/consolidation/history", ops.ConsolidationHistory)

		// 备份
		api.GET("/backups", ops.ListBackups)
		api.POST("/backups/run", ops.RunBackup)

		// Moltbook 社区
		api.GET("/moltbook/status", ops.MoltbookStatus)
		api.POST("/moltbook/register", ops.MoltbookRegister)
		api.POST("/moltbook/post", ops.MoltbookPost)
		api.GET("/moltbook/feed", ops.MoltbookFeed)

		// 搜索
		api.POST("/search", ops.Search)
		api.GET("/search/history", ops.SearchHistory)

		// 创作
		api.POST("/creative/generate", ops.CreativeGenerate)
		api.POST("/creative/refine", ops.CreativeRefine)
		api.POST("/creative/execute", ops.CreativeExecute)
		api.GET("/creative/history", ops.CreativeHistory)

		// 图片
		api.GET("/images", ops.ListImages)
		api.POST("/images/generate", ops.GenerateImage)
		api.GET("/images/file/*path", ops.ImageFile)

		// 活动流
		api.GET("/activity/log", ops.ActivityLog)
		api.POST("/activity/log", ops.AddActivityNote)

		// 错误记录
		api.GET("/errors", ops.ErrorLog)
		api.POST("/errors/:id/resolve", ops.ResolveError)
	}
}

// ginLogger Gin日志中间件
func ginLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", statusCode),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
