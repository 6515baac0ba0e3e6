package handler

import (
	"errors"
	"net/http"
	"net/url"

	"salespilot/internal/apierrors"
	authhandler "salespilot/internal/auth/handler"
	"salespilot/internal/integration/processor"
	"salespilot/internal/observability"
	"salespilot/internal/store"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	integrationProcessor processor.IntegrationProcessor
	frontendURL          string
	logger               *observability.Logger
}

func New(integrationProcessor processor.IntegrationProcessor, frontendURL string, logger *observability.Logger) Handler {
	return Handler{integrationProcessor: integrationProcessor, frontendURL: frontendURL, logger: logger}
}

func (h *Handler) HandleList(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}

	integrations, err := h.integrationProcessor.List(ctx, userID)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"integrations": integrations})
}

type ConnectRequest struct {
	PageID          string `json:"page_id" binding:"required"`
	PageAccessToken string `json:"page_access_token" binding:"required"`
}

func (h *Handler) HandleFacebookConnect(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}

	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "INVALID_BODY", err.Error())
		return
	}

	integration, err := h.integrationProcessor.ConnectFacebook(ctx, userID, req.PageID, req.PageAccessToken)
	if err != nil {
		if errors.Is(err, processor.ErrPageRejected) {
			apierrors.BadRequest(c, "PAGE_REJECTED", "Facebook rejected the page credentials")
			return
		}
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"integration": integration})
}

func (h *Handler) HandleFacebookDisconnect(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}

	if err := h.integrationProcessor.Disconnect(ctx, userID, store.PlatformFacebook); err != nil {
		if errors.Is(err, processor.ErrNotConnected) {
			apierrors.NotFound(c, "Integration not found")
			return
		}
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Integration disconnected"})
}

func (h *Handler) HandleFacebookAuthURL(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}

	authURL, err := h.integrationProcessor.AuthURL(ctx, userID)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"auth_url": authURL})
}

// HandleFacebookCallback lands the OAuth redirect. The user ends up back
// on the frontend either way; the query parameter tells it what happened.
func (h *Handler) HandleFacebookCallback(c *gin.Context) {
	ctx := c.Request.Context()

	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		c.Redirect(http.StatusFound, h.frontendRedirect("error", "missing_parameters"))
		return
	}

	if _, err := h.integrationProcessor.CompleteOAuth(ctx, state, code); err != nil {
		h.logger.Error(ctx, "oauth callback failed", err)
		reason := "connection_failed"
		if errors.Is(err, processor.ErrNoPages) {
			reason = "no_pages"
		}
		c.Redirect(http.StatusFound, h.frontendRedirect("error", reason))
		return
	}
	c.Redirect(http.StatusFound, h.frontendRedirect("success", ""))
}

func (h *Handler) HandleStatus(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}
	platform := store.Platform(c.Param("platform"))
	if !store.ValidPlatform(platform) {
		apierrors.BadRequest(c, "INVALID_PLATFORM", "platform must be facebook, instagram or whatsapp")
		return
	}

	integration, connected, err := h.integrationProcessor.Status(ctx, userID, platform)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}
	if !connected {
		c.JSON(http.StatusOK, gin.H{"connected": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": true, "integration": integration})
}

func (h *Handler) frontendRedirect(status, reason string) string {
	redirect, err := url.Parse(h.frontendURL + "/integrations")
	if err != nil {
		return h.frontendURL
	}
	query := redirect.Query()
	query.Set("integration", status)
	if reason != "" {
		query.Set("reason", reason)
	}
	redirect.RawQuery = query.Encode()
	return redirect.String()
}
