package handler

import (
	"errors"
	"net/http"
	"strconv"

	"salespilot/internal/apierrors"
	authhandler "salespilot/internal/auth/handler"
	"salespilot/internal/chat/processor"
	"salespilot/internal/observability"
	"salespilot/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	chatProcessor processor.ChatProcessor
	logger        *observability.Logger
}

func New(chatProcessor processor.ChatProcessor, logger *observability.Logger) Handler {
	return Handler{chatProcessor: chatProcessor, logger: logger}
}

func (h *Handler) HandleList(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}

	filter := store.ChatFilter{
		Status:   store.ChatStatus(c.Query("status")),
		Platform: store.Platform(c.Query("platform")),
	}
	if campaignID := c.Query("campaign_id"); campaignID != "" {
		id, err := uuid.Parse(campaignID)
		if err != nil {
			apierrors.BadRequest(c, "INVALID_CAMPAIGN_ID", "campaign_id must be a UUID")
			return
		}
		filter.CampaignID = id
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	chats, err := h.chatProcessor.ListChats(ctx, userID, filter)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *Handler) HandleGet(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "INVALID_CHAT_ID", "chat id must be a UUID")
		return
	}

	chat, err := h.chatProcessor.GetChat(ctx, chatID, userID)
	if err != nil {
		if errors.Is(err, processor.ErrNotFound) {
			apierrors.NotFound(c, "Chat not found")
			return
		}
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (h *Handler) HandleMessages(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "INVALID_CHAT_ID", "chat id must be a UUID")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.chatProcessor.ListMessages(ctx, chatID, userID, limit, offset)
	if err != nil {
		if errors.Is(err, processor.ErrNotFound) {
			apierrors.NotFound(c, "Chat not found")
			return
		}
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// HandleSendMessage lets the business reply manually in a thread. The
// message is stored even when platform delivery fails; that failure is
// reported as a 502 so the operator can retry the send.
func (h *Handler) HandleSendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "INVALID_CHAT_ID", "chat id must be a UUID")
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "INVALID_BODY", err.Error())
		return
	}

	message, err := h.chatProcessor.SendBusinessMessage(ctx, chatID, userID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, processor.ErrNotFound):
			apierrors.NotFound(c, "Chat not found")
		case errors.Is(err, processor.ErrSendFailed):
			apierrors.BadGateway(c, "SEND_FAILED", "Message saved but platform delivery failed", err)
		default:
			apierrors.InternalError(c, err)
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": message})
}

type StatusRequest struct {
	Status store.ChatStatus `json:"status" binding:"required"`
}

func (h *Handler) HandleStatus(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "INVALID_CHAT_ID", "chat id must be a UUID")
		return
	}

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "INVALID_BODY", err.Error())
		return
	}

	chat, err := h.chatProcessor.SetStatus(ctx, chatID, userID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, processor.ErrNotFound):
			apierrors.NotFound(c, "Chat not found")
		case errors.Is(err, processor.ErrInvalidTransition):
			apierrors.Conflict(c, "INVALID_TRANSITION", err.Error())
		default:
			apierrors.InternalError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": chat})
}

type ConversionRequest struct {
	OrderValue   float64     `json:"order_value" binding:"required,gt=0"`
	OrderDetails store.JSONB `json:"order_details"`
}

func (h *Handler) HandleConversion(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "INVALID_CHAT_ID", "chat id must be a UUID")
		return
	}

	var req ConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "INVALID_BODY", err.Error())
		return
	}

	chat, err := h.chatProcessor.Convert(ctx, chatID, userID, req.OrderValue, req.OrderDetails)
	if err != nil {
		switch {
		case errors.Is(err, processor.ErrNotFound):
			apierrors.NotFound(c, "Chat not found")
		case errors.Is(err, processor.ErrAlreadyConverted):
			apierrors.Conflict(c, "ALREADY_CONVERTED", "Chat has already been converted")
		default:
			apierrors.InternalError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (h *Handler) HandleStatsOverview(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}

	stats, err := h.chatProcessor.StatsOverview(ctx, userID)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
