package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ibkr-relay/internal/service"
	"github.com/ibkr-relay/pkg/response"
)

// AuthMiddleware guards the dashboard API with bearer tokens issued by the
// AuthService.
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			response.Unauthorized(c, "invalid authorization header format")
			c.Abort()
			return
		}

		if err := authService.ValidateToken(parts[1]); err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Next()
	}
}
