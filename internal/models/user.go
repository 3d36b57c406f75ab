package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user's role in the organization.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleTeamLead Role = "team_lead"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleTeamLead, RoleAdmin:
		return true
	}
	return false
}

// Elevated reports whether the role can act on behalf of other users.
func (r Role) Elevated() bool {
	return r == RoleTeamLead || r == RoleAdmin
}

// User is an employee account. Identity data is reference data for the headcount core.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Role      Role      `json:"role"`
	Team      string    `json:"team,omitempty"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Role   Role      `json:"role"`
	Team   string    `json:"team,omitempty"`
	Active bool      `json:"is_active"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
		Team:   u.Team,
		Active: u.Active,
	}
}

// UserFilter narrows user listings. Zero values mean "any".
type UserFilter struct {
	Team       string
	ActiveOnly bool
}
