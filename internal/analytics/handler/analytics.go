package handler

import (
	"net/http"
	"strconv"
	"time"

	"salespilot/internal/analytics/processor"
	"salespilot/internal/apierrors"
	authhandler "salespilot/internal/auth/handler"
	"salespilot/internal/observability"
	"salespilot/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	analyticsProcessor processor.AnalyticsProcessor
	logger             *observability.Logger
}

func New(analyticsProcessor processor.AnalyticsProcessor, logger *observability.Logger) Handler {
	return Handler{analyticsProcessor: analyticsProcessor, logger: logger}
}

func (h *Handler) HandleDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	platform := store.Platform(c.DefaultQuery("platform", "all"))

	dashboard, err := h.analyticsProcessor.GetDashboard(ctx, userID, days, platform)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// HandleCampaigns reports lifetime counters for every campaign.
func (h *Handler) HandleCampaigns(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}

	summaries, err := h.analyticsProcessor.GetCampaignSummaries(ctx, userID)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": summaries})
}

// HandleCampaign reports the per-day time series for one campaign.
func (h *Handler) HandleCampaign(c *gin.Context) {
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
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	dashboard, err := h.analyticsProcessor.GetCampaignAnalytics(ctx, userID, campaignID, days)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (h *Handler) HandleRealTime(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}

	realTime, err := h.analyticsProcessor.GetRealTime(ctx, userID)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, realTime)
}

func (h *Handler) HandleHourly(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}

	day := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			apierrors.BadRequest(c, "INVALID_DATE", "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	hourly, err := h.analyticsProcessor.GetHourly(ctx, userID, day)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": day.Format("2006-01-02"), "hourly": hourly})
}
