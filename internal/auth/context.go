package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/mhp-app/backend/internal/models"
)

// ActorKey is the gin context key holding the authenticated *models.User.
const ActorKey = "actor"

// Actor returns the authenticated user stored on the request, if any.
func Actor(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ActorKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}
