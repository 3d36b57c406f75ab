// Package users is the admin surface over user accounts.
package users

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mhp-app/backend/internal/auth"
	"github.com/mhp-app/backend/internal/middleware"
	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/internal/store"
	"github.com/mhp-app/backend/pkg/response"
)

// Notifier is told when a change to a user can move every headcount.
type Notifier interface {
	NotifyAll()
}

// CreateRequest is the body for POST /api/users.
type CreateRequest struct {
	Name     string      `json:"name" binding:"required"`
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required,min=6"`
	Role     models.Role `json:"role"`
	Team     string      `json:"team"`
}

// UpdateRequest is the body for PATCH /api/users/:id. Nil fields are left unchanged.
type UpdateRequest struct {
	Name     *string      `json:"name"`
	Role     *models.Role `json:"role"`
	Team     *string      `json:"team"`
	IsActive *bool        `json:"is_active"`
}

// Handler serves user management endpoints.
type Handler struct {
	users    store.UserStore
	auth     *auth.Service
	notifier Notifier
	logger   *zap.Logger
}

// NewHandler creates a users handler. notifier may be nil.
func NewHandler(users store.UserStore, authSvc *auth.Service, notifier Notifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, auth: authSvc, notifier: notifier, logger: logger}
}

func publicList(list []models.User) []models.UserPublic {
	out := make([]models.UserPublic, 0, len(list))
	for i := range list {
		out = append(out, list[i].ToPublic())
	}
	return out
}

// List handles GET /api/users?team=&active= (admin).
func (h *Handler) List(c *gin.Context) {
	f := models.UserFilter{Team: c.Query("team"), ActiveOnly: c.Query("active") == "true"}
	list, err := h.users.ListUsers(c.Request.Context(), f)
	if err != nil {
		response.ServiceUnavailable(c, "failed to list users")
		return
	}
	response.OK(c, gin.H{"users": publicList(list), "total": len(list)})
}

// Team handles GET /api/users/team: the caller's own team members.
func (h *Handler) Team(c *gin.Context) {
	actor := middleware.Actor(c)
	if actor.Team == "" {
		response.BadRequest(c, "you are not assigned to any team")
		return
	}
	list, err := h.users.ListUsers(c.Request.Context(), models.UserFilter{Team: actor.Team})
	if err != nil {
		response.ServiceUnavailable(c, "failed to list users")
		return
	}
	response.OK(c, gin.H{"team": actor.Team, "users": publicList(list), "total": len(list)})
}

// Create handles POST /api/users (admin).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Role == "" {
		req.Role = models.RoleEmployee
	}
	u, err := h.auth.CreateUser(c.Request.Context(), auth.CreateUserInput{
		Name: req.Name, Email: req.Email, Password: req.Password, Role: req.Role, Team: req.Team,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.changed()
	h.logger.Info("user created", zap.String("user_id", u.ID.String()), zap.String("role", string(u.Role)))
	response.Created(c, u.ToPublic())
}

// Update handles PATCH /api/users/:id (admin).
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Role != nil && !req.Role.Valid() {
		response.BadRequest(c, "invalid role")
		return
	}
	h.modify(c, func(u *models.User) {
		if req.Name != nil {
			u.Name = strings.TrimSpace(*req.Name)
		}
		if req.Role != nil {
			u.Role = *req.Role
		}
		if req.Team != nil {
			u.Team = strings.TrimSpace(*req.Team)
		}
		if req.IsActive != nil {
			u.Active = *req.IsActive
		}
	})
}

// Deactivate handles DELETE /api/users/:id (admin). Users are never removed,
// so their history keeps resolving.
func (h *Handler) Deactivate(c *gin.Context) {
	if id, err := uuid.Parse(c.Param("id")); err == nil && id == middleware.Actor(c).ID {
		response.BadRequest(c, "you cannot deactivate yourself")
		return
	}
	h.modify(c, func(u *models.User) { u.Active = false })
}

func (h *Handler) modify(c *gin.Context, apply func(*models.User)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	ctx := c.Request.Context()
	u, err := h.users.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		response.NotFound(c, "user not found")
		return
	}
	if err != nil {
		response.ServiceUnavailable(c, "failed to load user")
		return
	}
	apply(u)
	if err := h.users.UpdateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			response.Conflict(c, "email already in use")
			return
		}
		response.ServiceUnavailable(c, "failed to update user")
		return
	}
	h.changed()
	response.OK(c, u.ToPublic())
}

func (h *Handler) changed() {
	if h.notifier != nil {
		h.notifier.NotifyAll()
	}
}
