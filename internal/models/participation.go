package models

import (
	"time"

	"github.com/google/uuid"
)

// ModifiedBy records whether a participation value was set by the user or overridden.
type ModifiedBy string

const (
	ModifiedBySelf          ModifiedBy = "self"
	ModifiedByAdminOverride ModifiedBy = "admin_override"
)

// ParticipationKey identifies one participation record.
type ParticipationKey struct {
	UserID   uuid.UUID
	Date     Date
	MealType MealType
}

// ParticipationRecord is an explicit opt-in or opt-out for one user, date and meal.
type ParticipationRecord struct {
	UserID          uuid.UUID  `json:"user_id"`
	Date            Date       `json:"date"`
	MealType        MealType   `json:"meal_type"`
	IsParticipating bool       `json:"is_participating"`
	ModifiedBy      ModifiedBy `json:"modified_by"`
	UpdatedBy       uuid.UUID  `json:"updated_by"`
	Reason          string     `json:"reason,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Key returns the record's composite key.
func (r *ParticipationRecord) Key() ParticipationKey {
	return ParticipationKey{UserID: r.UserID, Date: r.Date, MealType: r.MealType}
}
