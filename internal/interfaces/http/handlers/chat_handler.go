package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/application/usecase"
	"github.com/nexira/nexira/internal/domain/repository"
	"github.com/nexira/nexira/internal/domain/service"
	"github.com/nexira/nexira/internal/infrastructure/upload"
	"github.com/nexira/nexira/pkg/errors"
)

// 单个上传文件的大小上限
const maxUploadBytes = 10 << 20

// ChatHandler 对话与聊天记录
type ChatHandler struct {
	chat      *usecase.ChatUseCase
	messages  repository.MessageRepository
	selfModel *service.SelfModel
	uploads   *upload.Handler
	logger    *zap.Logger
}

func NewChatHandler(chat *usecase.ChatUseCase, messages repository.MessageRepository, selfModel *service.SelfModel, uploads *upload.Handler, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:      chat,
		messages:  messages,
		selfModel: selfModel,
		uploads:   uploads,
		logger:    logger,
	}
}

type chatRequest struct {
	Message     string `json:"message" binding:"required"`
	FileContext string `json:"file_context"`
	Platform    string `json:"platform"`
}

// Chat POST /api/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.chat.Execute(c.Request.Context(), usecase.ChatRequest{
		Message:     req.Message,
		FileContext: req.FileContext,
		Platform:    req.Platform,
	})
	if err != nil {
		h.logger.Error("Chat failed", zap.Error(err))
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"response":   result.Response,
		"confidence": result.Confidence,
		"ai_name":    result.AIName,
		"message_id": result.MessageID,
		"actions":    result.Actions,
	})
}

// History GET /api/chat/history?limit=&offset=
func (h *ChatHandler) History(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	messages, total, err := h.messages.FindPage(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "total": total})
}

type feedbackRequest struct {
	Type      string `json:"type" binding:"required"` // positive, negative, correction
	MessageID int64  `json:"message_id"`
	Detail    string `json:"detail"`
}

// Feedback POST /api/feedback
func (h *ChatHandler) Feedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch req.Type {
	case "positive", "negative", "correction":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be positive, negative or correction"})
		return
	}

	if req.MessageID > 0 {
		if err := h.messages.SetFeedback(c.Request.Context(), req.MessageID, req.Type); err != nil {
			c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
			return
		}
	}
	h.selfModel.ApplyFeedback(c.Request.Context(), req.Type)

	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

// Upload POST /api/upload (multipart)
func (h *ChatHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file exceeds 10MB limit"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	path, err := h.uploads.Save(data, fileHeader.Filename)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	doc, err := h.uploads.Process(path)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"document":     doc,
		"file_context": doc.FormatForContext(),
	})
}

// Uploads GET /api/uploads
func (h *ChatHandler) Uploads(c *gin.Context) {
	files, err := h.uploads.Recent(queryInt(c, "limit", 10))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploads": files})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
