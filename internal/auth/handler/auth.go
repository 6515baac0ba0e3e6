package handler

import (
	"errors"
	"net/http"
	"strings"

	"salespilot/internal/apierrors"
	"salespilot/internal/auth/processor"
	"salespilot/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	authProcessor processor.AuthProcessor
	logger        *observability.Logger
}

func New(authProcessor processor.AuthProcessor, logger *observability.Logger) Handler {
	return Handler{authProcessor: authProcessor, logger: logger}
}

type SignupRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	BusinessName string `json:"business_name"`
	Industry     string `json:"industry"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) HandleSignup(c *gin.Context) {
	var req SignupRequest
	ctx := c.Request.Context()
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error(ctx, "failed to bind request", err)
		apierrors.BadRequest(c, "INVALID_BODY", err.Error())
		return
	}
	authenticated, err := h.authProcessor.Signup(ctx, req.Email, req.Password, req.BusinessName, req.Industry)
	if err != nil {
		if errors.Is(err, processor.ErrEmailExists) {
			apierrors.Conflict(c, "EMAIL_EXISTS", "An account with this email already exists")
			return
		}
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, authenticated)
}

func (h *Handler) HandleLogin(c *gin.Context) {
	var req LoginRequest
	ctx := c.Request.Context()
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error(ctx, "failed to bind request", err)
		apierrors.BadRequest(c, "INVALID_BODY", err.Error())
		return
	}
	authenticated, err := h.authProcessor.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, processor.ErrInvalidCredentials) {
			apierrors.Unauthorized(c, "Invalid email or password")
			return
		}
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, authenticated)
}

func (h *Handler) HandleMe(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := UserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}
	user, err := h.authProcessor.GetUser(ctx, userID)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// HandleJWTMiddleware authenticates the request and stores the user ID in
// the gin context under "User-ID".
func (h *Handler) HandleJWTMiddleware(c *gin.Context) {
	ctx := c.Request.Context()
	tokenHeader := c.GetHeader("Authorization")

	if tokenHeader == "" || !strings.HasPrefix(tokenHeader, "Bearer ") {
		apierrors.Unauthorized(c, "Authorization token is missing or invalid")
		c.Abort()
		return
	}
	tokenString := strings.TrimPrefix(tokenHeader, "Bearer ")

	userID, err := h.authProcessor.ValidateJWTToken(ctx, tokenString)
	if err != nil {
		apierrors.Unauthorized(c, err.Error())
		c.Abort()
		return
	}
	c.Set("User-ID", userID.String())
	c.Next()
}

// UserID extracts the authenticated user ID set by the JWT middleware.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	raw, ok := c.Get("User-ID")
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw.(string))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
