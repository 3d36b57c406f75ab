package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mhp-app/backend/internal/auth"
	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
)

// JWT validates the bearer token, loads the user it names and rejects
// deactivated accounts. The loaded user is available through Actor.
func JWT(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		u, err := svc.Authenticate(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(auth.ActorKey, u)
		c.Set(ContextUserID, u.ID)
		c.Set(ContextUserRole, u.Role)
		c.Next()
	}
}

// Actor returns the authenticated user. Only valid behind JWT.
func Actor(c *gin.Context) *models.User {
	u, _ := auth.Actor(c)
	return u
}
