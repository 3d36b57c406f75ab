package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/mhp-app/backend/internal/auth"
	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/pkg/response"
)

// RequireRole returns a middleware that allows only the given roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		u, ok := auth.Actor(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if _, ok := allowed[u.Role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin allows admins only.
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin)
}

// RequireElevated allows team leads and admins.
func RequireElevated() gin.HandlerFunc {
	return RequireRole(models.RoleTeamLead, models.RoleAdmin)
}
