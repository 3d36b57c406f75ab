// Package teams serves per-team participation grids.
package teams

import (
	"github.com/gin-gonic/gin"

	"github.com/mhp-app/backend/internal/headcount"
	"github.com/mhp-app/backend/internal/middleware"
	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/internal/store"
	"github.com/mhp-app/backend/pkg/apperr"
	"github.com/mhp-app/backend/pkg/response"
)

// Grid is one team's members and their effective meals for a date.
type Grid struct {
	Team         string               `json:"team"`
	Date         models.Date          `json:"date"`
	TotalMembers int                  `json:"total_members"`
	Members      []models.RosterEntry `json:"members"`
}

// Handler serves team endpoints.
type Handler struct {
	users  store.UserStore
	engine *headcount.Engine
	today  func() models.Date
}

// NewHandler creates a teams handler.
func NewHandler(users store.UserStore, engine *headcount.Engine, today func() models.Date) *Handler {
	return &Handler{users: users, engine: engine, today: today}
}

// List handles GET /api/teams.
func (h *Handler) List(c *gin.Context) {
	teams, err := h.users.ListTeams(c.Request.Context())
	if err != nil {
		response.ServiceUnavailable(c, "failed to list teams")
		return
	}
	if teams == nil {
		teams = []string{}
	}
	response.OK(c, gin.H{"teams": teams})
}

func (h *Handler) grid(c *gin.Context, team string) (*Grid, error) {
	date, err := models.ParseDateOr(c.Query("date"), h.today())
	if err != nil {
		return nil, apperr.New(apperr.ValidationError, "%s", err.Error())
	}
	members, err := h.engine.Roster(c.Request.Context(), date, headcount.Scope{Team: team})
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []models.RosterEntry{}
	}
	return &Grid{Team: team, Date: date, TotalMembers: len(members), Members: members}, nil
}

// Mine handles GET /api/teams/me (team lead, admin).
func (h *Handler) Mine(c *gin.Context) {
	actor := middleware.Actor(c)
	if actor.Team == "" {
		response.BadRequest(c, "you are not assigned to any team")
		return
	}
	g, err := h.grid(c, actor.Team)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, g)
}

// All handles GET /api/teams/all (admin).
func (h *Handler) All(c *gin.Context) {
	teams, err := h.users.ListTeams(c.Request.Context())
	if err != nil {
		response.ServiceUnavailable(c, "failed to list teams")
		return
	}
	grids := make([]*Grid, 0, len(teams))
	for _, team := range teams {
		g, err := h.grid(c, team)
		if err != nil {
			response.Error(c, err)
			return
		}
		grids = append(grids, g)
	}
	response.OK(c, gin.H{"teams": grids})
}

// ByName handles GET /api/teams/:name. Team leads may only read their own team.
func (h *Handler) ByName(c *gin.Context) {
	name := c.Param("name")
	if _, err := headcount.ScopeFor(middleware.Actor(c), name); err != nil {
		response.Error(c, err)
		return
	}
	teams, err := h.users.ListTeams(c.Request.Context())
	if err != nil {
		response.ServiceUnavailable(c, "failed to list teams")
		return
	}
	found := false
	for _, t := range teams {
		if t == name {
			found = true
			break
		}
	}
	if !found {
		response.NotFound(c, "team "+name+" not found")
		return
	}
	g, err := h.grid(c, name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, g)
}
