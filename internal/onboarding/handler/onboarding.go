package handler

import (
	"context"
	"net/http"

	"salespilot/internal/apierrors"
	authhandler "salespilot/internal/auth/handler"
	"salespilot/internal/observability"
	"salespilot/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Store is the subset of the store onboarding needs.
type Store interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error)
	UpdateBusinessInfo(ctx context.Context, id uuid.UUID, businessInfo store.JSONB, onboardingCompleted bool) (store.User, error)
}

// Trainer builds the knowledge base once the profile is in.
type Trainer interface {
	Train(ctx context.Context, userID uuid.UUID) error
}

type Handler struct {
	store   Store
	trainer Trainer
	logger  *observability.Logger
}

func New(store Store, trainer Trainer, logger *observability.Logger) Handler {
	return Handler{store: store, trainer: trainer, logger: logger}
}

type CompleteRequest struct {
	BusinessName string `json:"business_name" binding:"required"`
	OwnerName    string `json:"owner_name"`
	Industry     string `json:"industry"`
	Description  string `json:"description"`
	Website      string `json:"website"`
	Phone        string `json:"phone"`
}

// HandleComplete stores the business profile and kicks off the first
// knowledge-base training run.
func (h *Handler) HandleComplete(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}

	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "INVALID_BODY", err.Error())
		return
	}

	businessInfo := store.JSONB{
		"name":        req.BusinessName,
		"owner":       req.OwnerName,
		"industry":    req.Industry,
		"description": req.Description,
		"website":     req.Website,
		"phone":       req.Phone,
	}
	user, err := h.store.UpdateBusinessInfo(ctx, userID, businessInfo, true)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}

	// First training run is best effort; the profile is already saved.
	if err := h.trainer.Train(ctx, userID); err != nil {
		h.logger.Error(ctx, "initial knowledge base training failed", err)
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) HandleStatus(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}

	user, err := h.store.GetUserByID(ctx, userID)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"completed":     user.OnboardingCompleted,
		"business_info": user.BusinessInfo,
	})
}
