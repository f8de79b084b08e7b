package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ibkr-relay/internal/service"
	"github.com/ibkr-relay/pkg/response"
)

// AuthHandler issues dashboard API tokens
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterRoutes registers auth routes
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/token", h.IssueToken)
	}
}

// IssueToken exchanges the dashboard secret for a bearer token
// POST /api/v1/auth/token
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req struct {
		Secret string `json:"secret" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	token, err := h.authService.IssueToken(req.Secret)
	if err != nil {
		response.Unauthorized(c, "invalid dashboard secret")
		return
	}

	response.Success(c, token)
}
