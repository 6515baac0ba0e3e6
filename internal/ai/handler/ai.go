package handler

import (
	"net/http"

	"salespilot/internal/ai/processor"
	"salespilot/internal/apierrors"
	authhandler "salespilot/internal/auth/handler"
	"salespilot/internal/observability"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	aiProcessor processor.AIProcessor
	model       string
	logger      *observability.Logger
}

func New(aiProcessor processor.AIProcessor, model string, logger *observability.Logger) Handler {
	return Handler{aiProcessor: aiProcessor, model: model, logger: logger}
}

type LeoChatRequest struct {
	Message string              `json:"message" binding:"required"`
	History []processor.LeoTurn `json:"history"`
}

// HandleLeoChat answers a business-assistant question.
func (h *Handler) HandleLeoChat(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}

	var req LeoChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error(ctx, "failed to bind request", err)
		apierrors.BadRequest(c, "INVALID_BODY", err.Error())
		return
	}

	reply, err := h.aiProcessor.LeoReply(ctx, userID, req.Message, req.History)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// HandleStatus reports whether the user's global AI is trained.
func (h *Handler) HandleStatus(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}

	status, err := h.aiProcessor.GetStatus(ctx, userID, h.model)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// HandleRetrain rebuilds the knowledge base from current business data.
func (h *Handler) HandleRetrain(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}

	if err := h.aiProcessor.Train(ctx, userID); err != nil {
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "AI retrained successfully"})
}
