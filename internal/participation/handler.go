package participation

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mhp-app/backend/internal/middleware"
	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/pkg/response"
)

// UpdateRequest is the body for PUT /api/meals/participation.
type UpdateRequest struct {
	Date            string          `json:"date"`
	MealType        models.MealType `json:"meal_type" binding:"required"`
	IsParticipating *bool           `json:"is_participating" binding:"required"`
}

// OverrideRequest is the body for POST /api/meals/participation/admin.
type OverrideRequest struct {
	UserID          uuid.UUID       `json:"user_id" binding:"required"`
	Date            string          `json:"date"`
	MealType        models.MealType `json:"meal_type" binding:"required"`
	IsParticipating *bool           `json:"is_participating" binding:"required"`
	Reason          string          `json:"reason"`
	Force           bool            `json:"force"`
}

// BulkUpdateRequest is the body for POST /api/meals/participation/bulk.
type BulkUpdateRequest struct {
	UserIDs []uuid.UUID              `json:"user_ids" binding:"required,min=1"`
	Date    string                   `json:"date" binding:"required"`
	Meals   map[models.MealType]bool `json:"meals" binding:"required,min=1"`
	Reason  string                   `json:"reason"`
	Force   bool                     `json:"force"`
}

// Handler serves the meal participation endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a participation handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) today() models.Date {
	return h.svc.Policy().Today(h.svc.Now())
}

// Today handles GET /api/meals/today.
func (h *Handler) Today(c *gin.Context) {
	actor := middleware.Actor(c)
	view, err := h.svc.Meals(c.Request.Context(), actor, actor.ID, h.today())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// ForDate handles GET /api/meals/date/:date.
func (h *Handler) ForDate(c *gin.Context) {
	date, err := models.ParseDate(c.Param("date"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	actor := middleware.Actor(c)
	view, err := h.svc.Meals(c.Request.Context(), actor, actor.ID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// ForUser handles GET /api/meals/user/:id?date=.
func (h *Handler) ForUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	date, err := models.ParseDateOr(c.Query("date"), h.today())
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	view, err := h.svc.Meals(c.Request.Context(), middleware.Actor(c), userID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// Update handles PUT /api/meals/participation for the caller's own record.
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	date, err := models.ParseDateOr(req.Date, h.today())
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	actor := middleware.Actor(c)
	rec, err := h.svc.Set(c.Request.Context(), SetRequest{
		UserID:   actor.ID,
		Date:     date,
		MealType: req.MealType,
		Value:    *req.IsParticipating,
		Actor:    actor,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rec)
}

// Override handles POST /api/meals/participation/admin.
func (h *Handler) Override(c *gin.Context) {
	var req OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	date, err := models.ParseDateOr(req.Date, h.today())
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	rec, err := h.svc.Set(c.Request.Context(), SetRequest{
		UserID:   req.UserID,
		Date:     date,
		MealType: req.MealType,
		Value:    *req.IsParticipating,
		Actor:    middleware.Actor(c),
		Override: true,
		Force:    req.Force,
		Reason:   req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rec)
}

// Bulk handles POST /api/meals/participation/bulk.
func (h *Handler) Bulk(c *gin.Context) {
	var req BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.svc.BulkUpdate(c.Request.Context(), BulkRequest{
		UserIDs: req.UserIDs,
		Date:    date,
		Meals:   req.Meals,
		Reason:  req.Reason,
		Actor:   middleware.Actor(c),
		Force:   req.Force,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}
