// Package specialdays manages office closures, holidays and event days.
package specialdays

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mhp-app/backend/internal/middleware"
	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/internal/store"
	"github.com/mhp-app/backend/pkg/response"
)

// MaxRangeDays bounds GET /api/special-days/range.
const MaxRangeDays = 366

// Notifier is told when a special day appears or disappears.
type Notifier interface {
	Notify(date models.Date)
	NotifyAll()
}

// CreateRequest is the body for POST /api/special-days.
type CreateRequest struct {
	Date    string         `json:"date" binding:"required"`
	DayType models.DayType `json:"day_type" binding:"required"`
	Note    string         `json:"note"`
}

// Handler serves special day endpoints.
type Handler struct {
	store    store.SpecialDayStore
	notifier Notifier
	logger   *zap.Logger
}

// NewHandler creates a special days handler. notifier may be nil.
func NewHandler(st store.SpecialDayStore, notifier Notifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: st, notifier: notifier, logger: logger}
}

// Create handles POST /api/special-days (admin).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if !req.DayType.Valid() {
		response.BadRequest(c, "day_type must be office_closed, government_holiday or special_event")
		return
	}
	sd := &models.SpecialDay{
		Date:      date,
		DayType:   req.DayType,
		Note:      strings.TrimSpace(req.Note),
		CreatedBy: middleware.Actor(c).ID,
	}
	if err := h.store.CreateSpecialDay(c.Request.Context(), sd); err != nil {
		if errors.Is(err, store.ErrConflict) {
			response.Conflict(c, "a special day already exists for "+date.String())
			return
		}
		h.logger.Error("create special day", zap.Error(err))
		response.ServiceUnavailable(c, "failed to create special day")
		return
	}
	if h.notifier != nil {
		h.notifier.Notify(date)
	}
	h.logger.Info("special day created", zap.String("date", date.String()), zap.String("day_type", string(sd.DayType)))
	response.Created(c, sd)
}

// Get handles GET /api/special-days?date=.
func (h *Handler) Get(c *gin.Context) {
	date, err := models.ParseDate(c.Query("date"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	sd, err := h.store.GetSpecialDay(c.Request.Context(), date)
	if errors.Is(err, store.ErrNotFound) {
		response.NotFound(c, "no special day found for "+date.String())
		return
	}
	if err != nil {
		response.ServiceUnavailable(c, "failed to load special day")
		return
	}
	response.OK(c, sd)
}

// Range handles GET /api/special-days/range?start=&end=, both inclusive.
func (h *Handler) Range(c *gin.Context) {
	start, err := models.ParseDate(c.Query("start"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	end, err := models.ParseDate(c.Query("end"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if end.Before(start) {
		response.BadRequest(c, "end date must be on or after start date")
		return
	}
	if end.After(start.AddDays(MaxRangeDays)) {
		response.BadRequest(c, "range is limited to one year")
		return
	}
	days, err := h.store.ListSpecialDays(c.Request.Context(), start, end)
	if err != nil {
		response.ServiceUnavailable(c, "failed to list special days")
		return
	}
	if days == nil {
		days = []models.SpecialDay{}
	}
	response.OK(c, gin.H{"special_days": days, "total": len(days)})
}

// Delete handles DELETE /api/special-days/:id (admin).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid special day id")
		return
	}
	if err := h.store.DeleteSpecialDay(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(c, "special day not found")
			return
		}
		response.ServiceUnavailable(c, "failed to delete special day")
		return
	}
	if h.notifier != nil {
		h.notifier.NotifyAll()
	}
	response.OK(c, gin.H{"id": id, "deleted": true})
}
