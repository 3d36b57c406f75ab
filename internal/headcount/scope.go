package headcount

import (
	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/pkg/apperr"
)

// ScopeFor derives the aggregation scope a viewer may read.
// Admins see everything, optionally narrowed to one team; team leads see their own team.
func ScopeFor(viewer *models.User, team string) (Scope, error) {
	if viewer == nil {
		return Scope{}, apperr.New(apperr.NotAuthenticated, "authentication required")
	}
	switch viewer.Role {
	case models.RoleAdmin:
		return Scope{Team: team}, nil
	case models.RoleTeamLead:
		if viewer.Team == "" {
			return Scope{}, apperr.New(apperr.PermissionDenied, "team lead has no team assigned")
		}
		if team != "" && team != viewer.Team {
			return Scope{}, apperr.New(apperr.PermissionDenied, "team leads can only view their own team")
		}
		return Scope{Team: viewer.Team}, nil
	}
	return Scope{}, apperr.New(apperr.PermissionDenied, "headcount requires team lead or admin")
}
