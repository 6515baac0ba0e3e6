package handler

import (
	"errors"
	"net/http"
	"strconv"

	"salespilot/internal/admin/processor"
	"salespilot/internal/apierrors"
	authhandler "salespilot/internal/auth/handler"
	"salespilot/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	adminProcessor processor.AdminProcessor
	logger         *observability.Logger
}

func New(adminProcessor processor.AdminProcessor, logger *observability.Logger) Handler {
	return Handler{adminProcessor: adminProcessor, logger: logger}
}

func (h *Handler) HandleStats(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}

	counts, global, err := h.adminProcessor.Stats(ctx, userID)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts, "global": global})
}

func (h *Handler) HandleBrowse(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	rows, err := h.adminProcessor.Browse(ctx, userID, c.Param("collection"), limit)
	if err != nil {
		if errors.Is(err, processor.ErrUnknownCollection) {
			apierrors.BadRequest(c, "UNKNOWN_COLLECTION", "No such collection")
			return
		}
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

func (h *Handler) HandleGetRow(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}
	rowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "INVALID_ID", "id must be a UUID")
		return
	}

	row, err := h.adminProcessor.GetRow(ctx, userID, c.Param("collection"), rowID)
	if err != nil {
		switch {
		case errors.Is(err, processor.ErrUnknownCollection):
			apierrors.BadRequest(c, "UNKNOWN_COLLECTION", "No such collection")
		case errors.Is(err, processor.ErrNotFound):
			apierrors.NotFound(c, "Row not found")
		default:
			apierrors.InternalError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"row": row})
}

func (h *Handler) HandleWipe(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := authhandler.UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}

	if err := h.adminProcessor.Wipe(ctx, userID); err != nil {
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All user data wiped"})
}
