package headcount

import (
	"github.com/gin-gonic/gin"

	"github.com/mhp-app/backend/internal/middleware"
	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/pkg/response"
)

// Handler serves the headcount reports.
type Handler struct {
	engine *Engine
	today  func() models.Date
}

// NewHandler creates a headcount handler. today returns the current date in the policy zone.
func NewHandler(engine *Engine, today func() models.Date) *Handler {
	return &Handler{engine: engine, today: today}
}

// scope reads ?team=&location= and narrows it to what the actor may see.
func (h *Handler) scope(c *gin.Context) (Scope, bool) {
	scope, err := ScopeFor(middleware.Actor(c), c.Query("team"))
	if err != nil {
		response.Error(c, err)
		return Scope{}, false
	}
	if raw := c.Query("location"); raw != "" {
		loc, err := models.ParseLocation(raw)
		if err != nil {
			response.BadRequest(c, err.Error())
			return Scope{}, false
		}
		scope.Location = loc
	}
	return scope, true
}

func (h *Handler) aggregate(c *gin.Context, date models.Date) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	agg, err := h.engine.Compute(c.Request.Context(), date, scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, agg)
}

// Today handles GET /api/headcount/today.
func (h *Handler) Today(c *gin.Context) {
	h.aggregate(c, h.today())
}

// ForDate handles GET /api/headcount/:date.
func (h *Handler) ForDate(c *gin.Context) {
	date, err := models.ParseDate(c.Param("date"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.aggregate(c, date)
}

func (h *Handler) roster(c *gin.Context) (models.Date, []models.RosterEntry, bool) {
	date, err := models.ParseDateOr(c.Query("date"), h.today())
	if err != nil {
		response.BadRequest(c, err.Error())
		return models.Date{}, nil, false
	}
	scope, ok := h.scope(c)
	if !ok {
		return models.Date{}, nil, false
	}
	entries, err := h.engine.Roster(c.Request.Context(), date, scope)
	if err != nil {
		response.Error(c, err)
		return models.Date{}, nil, false
	}
	return date, entries, true
}

// ByTeam handles GET /api/headcount/by-team.
func (h *Handler) ByTeam(c *gin.Context) {
	date, entries, ok := h.roster(c)
	if !ok {
		return
	}
	response.OK(c, gin.H{
		"date":            date,
		"total_employees": len(entries),
		"teams":           GroupByTeam(entries),
	})
}

// ByLocation handles GET /api/headcount/by-location.
func (h *Handler) ByLocation(c *gin.Context) {
	date, entries, ok := h.roster(c)
	if !ok {
		return
	}
	office, wfh := 0, 0
	for _, e := range entries {
		if e.Location == models.LocationWFH {
			wfh++
		} else {
			office++
		}
	}
	response.OK(c, gin.H{
		"date":            date,
		"total_employees": len(entries),
		"office_count":    office,
		"wfh_count":       wfh,
		"locations":       GroupByLocation(entries),
	})
}
