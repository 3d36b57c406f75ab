package models

import "time"

// UnassignedTeam is the by_team bucket for users without a team.
const UnassignedTeam = "Unassigned"

// MealHeadcount is the tally for one meal type.
type MealHeadcount struct {
	OptedIn    int            `json:"opted_in"`
	OptedOut   int            `json:"opted_out"`
	ByTeam     map[string]int `json:"by_team"`
	ByLocation map[string]int `json:"by_location"`
}

// HeadcountAggregate is the derived participation summary for one date and scope.
type HeadcountAggregate struct {
	Date               Date                       `json:"date"`
	Team               string                     `json:"team,omitempty"`
	Location           Location                   `json:"location,omitempty"`
	TotalUsers         int                        `json:"total_users"`
	TotalParticipating int                        `json:"total_participating"`
	Meals              map[MealType]MealHeadcount `json:"meals"`
	ConfigVersion      int64                      `json:"config_version"`
	Timestamp          time.Time                  `json:"timestamp"`
}

// RosterEntry is one member's effective participation for a date.
type RosterEntry struct {
	UserID   string            `json:"user_id"`
	Name     string            `json:"name"`
	Email    string            `json:"email"`
	Team     string            `json:"team"`
	Location Location          `json:"location"`
	Meals    map[MealType]bool `json:"meals"`
}
