package worklocation

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mhp-app/backend/internal/middleware"
	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/pkg/response"
)

// UpdateRequest is the body for PUT /api/work-locations.
type UpdateRequest struct {
	Date     string          `json:"date"`
	Location models.Location `json:"location" binding:"required"`
}

// AdminUpdateRequest is the body for PUT /api/work-locations/admin.
type AdminUpdateRequest struct {
	UserID   uuid.UUID       `json:"user_id" binding:"required"`
	Date     string          `json:"date"`
	Location models.Location `json:"location" binding:"required"`
}

// Handler serves work location endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a work location handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Me handles GET /api/work-locations/me?date=.
func (h *Handler) Me(c *gin.Context) {
	date, err := models.ParseDateOr(c.Query("date"), h.svc.Today())
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	actor := middleware.Actor(c)
	wl, err := h.svc.Get(c.Request.Context(), actor, actor.ID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, wl)
}

// Update handles PUT /api/work-locations.
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor := middleware.Actor(c)
	h.set(c, actor.ID, req.Date, req.Location)
}

// AdminUpdate handles PUT /api/work-locations/admin.
func (h *Handler) AdminUpdate(c *gin.Context) {
	var req AdminUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.set(c, req.UserID, req.Date, req.Location)
}

func (h *Handler) set(c *gin.Context, userID uuid.UUID, rawDate string, loc models.Location) {
	date, err := models.ParseDateOr(rawDate, h.svc.Today())
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.svc.Set(c.Request.Context(), SetRequest{
		UserID:   userID,
		Date:     date,
		Location: loc,
		Actor:    middleware.Actor(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// ByDate handles GET /api/work-locations/date?date=.
func (h *Handler) ByDate(c *gin.Context) {
	date, err := models.ParseDateOr(c.Query("date"), h.svc.Today())
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	entries, err := h.svc.ListByDate(c.Request.Context(), middleware.Actor(c), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"date": date, "locations": entries, "total": len(entries)})
}
