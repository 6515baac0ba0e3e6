package handler

import (
	"errors"
	"net/http"

	"salespilot/internal/apierrors"
	authhandler "salespilot/internal/auth/handler"
	"salespilot/internal/campaign/processor"
	"salespilot/internal/observability"
	"salespilot/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	campaignProcessor processor.CampaignProcessor
	logger            *observability.Logger
}

func New(campaignProcessor processor.CampaignProcessor, logger *observability.Logger) Handler {
	return Handler{campaignProcessor: campaignProcessor, logger: logger}
}

type CampaignRequest struct {
	Name            string               `json:"name" binding:"required"`
	Product         store.Product        `json:"product" binding:"required"`
	TargetPlatform  store.Platform       `json:"target_platform" binding:"required"`
	ChatFlow        store.ChatFlow       `json:"chat_flow"`
	TargetAudience  store.TargetAudience `json:"target_audience"`
	OutreachMessage string               `json:"outreach_message"`
}

func (r *CampaignRequest) toInput() processor.CampaignInput {
	return processor.CampaignInput{
		Name:            r.Name,
		Product:         r.Product,
		TargetPlatform:  r.TargetPlatform,
		ChatFlow:        r.ChatFlow,
		TargetAudience:  r.TargetAudience,
		OutreachMessage: r.OutreachMessage,
	}
}

func (h *Handler) HandleCreate(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}

	var req CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error(ctx, "failed to bind request", err)
		apierrors.BadRequest(c, "INVALID_BODY", err.Error())
		return
	}

	campaign, err := h.campaignProcessor.Create(ctx, userID, req.toInput())
	if err != nil {
		if errors.Is(err, processor.ErrInvalidPlatform) {
			apierrors.BadRequest(c, "INVALID_PLATFORM", "target_platform must be facebook, instagram, whatsapp or all")
			return
		}
		apierrors.BadRequest(c, "INVALID_CAMPAIGN", err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"campaign": campaign})
}

func (h *Handler) HandleList(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}

	campaigns, err := h.campaignProcessor.List(ctx, userID)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": campaigns})
}

func (h *Handler) HandleGet(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "INVALID_CAMPAIGN_ID", "campaign id must be a UUID")
		return
	}

	campaign, err := h.campaignProcessor.Get(ctx, campaignID, userID)
	if err != nil {
		if errors.Is(err, processor.ErrNotFound) {
			apierrors.NotFound(c, "Campaign not found")
			return
		}
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaign": campaign})
}

func (h *Handler) HandleUpdate(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "INVALID_CAMPAIGN_ID", "campaign id must be a UUID")
		return
	}

	var req CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error(ctx, "failed to bind request", err)
		apierrors.BadRequest(c, "INVALID_BODY", err.Error())
		return
	}

	campaign, err := h.campaignProcessor.Update(ctx, campaignID, userID, req.toInput())
	if err != nil {
		switch {
		case errors.Is(err, processor.ErrNotFound):
			apierrors.NotFound(c, "Campaign not found")
		case errors.Is(err, processor.ErrInvalidPlatform):
			apierrors.BadRequest(c, "INVALID_PLATFORM", "target_platform must be facebook, instagram, whatsapp or all")
		default:
			apierrors.BadRequest(c, "INVALID_CAMPAIGN", err.Error())
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaign": campaign})
}

func (h *Handler) HandleDelete(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "INVALID_CAMPAIGN_ID", "campaign id must be a UUID")
		return
	}

	if err := h.campaignProcessor.Delete(ctx, campaignID, userID); err != nil {
		if errors.Is(err, processor.ErrNotFound) {
			apierrors.NotFound(c, "Campaign not found")
			return
		}
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Campaign deleted"})
}

func (h *Handler) HandleStats(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "INVALID_CAMPAIGN_ID", "campaign id must be a UUID")
		return
	}

	stats, err := h.campaignProcessor.Stats(ctx, campaignID, userID)
	if err != nil {
		if errors.Is(err, processor.ErrNotFound) {
			apierrors.NotFound(c, "Campaign not found")
			return
		}
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

type StatusRequest struct {
	Status store.CampaignStatus `json:"status" binding:"required"`
}

func (h *Handler) HandleStatus(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "INVALID_CAMPAIGN_ID", "campaign id must be a UUID")
		return
	}

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "INVALID_BODY", err.Error())
		return
	}

	campaign, err := h.campaignProcessor.SetStatus(ctx, campaignID, userID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, processor.ErrNotFound):
			apierrors.NotFound(c, "Campaign not found")
		case errors.Is(err, processor.ErrInvalidTransition):
			apierrors.Conflict(c, "INVALID_TRANSITION", err.Error())
		default:
			apierrors.InternalError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaign": campaign})
}
