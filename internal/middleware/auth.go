package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/pkg/jwt"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/pkg/response"
)

const (
	// ContextKeyUserID is the gin context key holding the authenticated user id.
	ContextKeyUserID = "user_id"
)

// Auth returns a middleware that enforces JWT authentication. Session
// issuance lives in the platform's auth layer; this service only verifies.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := jwt.Parse(extractToken(c))
		if err != nil || claims.UserID == "" {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyUserID, claims.UserID)
		c.Next()
	}
}

// UserID returns the authenticated user id from the gin context.
func UserID(c *gin.Context) string {
	v, _ := c.Get(ContextKeyUserID)
	id, _ := v.(string)
	return id
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return strings.TrimSpace(header)
}
