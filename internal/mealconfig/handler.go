package mealconfig

import (
	"github.com/gin-gonic/gin"

	"github.com/mhp-app/backend/internal/middleware"
	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/pkg/response"
)

// UpdateRequest is the body for PUT /api/meals/config.
type UpdateRequest struct {
	MealType models.MealType `json:"meal_type" binding:"required"`
	Enabled  *bool           `json:"enabled" binding:"required"`
}

// Handler serves meal configuration endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a meal config handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Get handles GET /api/meals/config.
func (h *Handler) Get(c *gin.Context) {
	cfg, err := h.svc.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, cfg)
}

// Update handles PUT /api/meals/config (admin).
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	cfg, err := h.svc.SetEnabled(c.Request.Context(), middleware.Actor(c), req.MealType, *req.Enabled)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, cfg)
}
