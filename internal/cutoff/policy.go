// Package cutoff decides whether participation for a date may still be changed.
package cutoff

import (
	"time"

	"github.com/mhp-app/backend/internal/models"
)

// DefaultHour is the local hour at which same-day edits close.
const DefaultHour = 21

// Reason is a machine-readable denial reason.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonPastDate     Reason = "past_date"
	ReasonCutoffPassed Reason = "cutoff_passed"
	ReasonDayBlocked   Reason = "day_blocked"
)

// Decision is the outcome of CanEdit.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
}

// Policy holds the cutoff hour and the zone in which "today" is observed.
type Policy struct {
	CutoffHour int
	Location   *time.Location
}

// New returns a policy for hour in loc. A nil loc means UTC.
func New(hour int, loc *time.Location) Policy {
	if loc == nil {
		loc = time.UTC
	}
	return Policy{CutoffHour: hour, Location: loc}
}

func (p Policy) loc() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// Today returns now's calendar date in the policy zone.
func (p Policy) Today(now time.Time) models.Date {
	return models.DateOf(now, p.loc())
}

// CutoffPassed reports whether now is at or after today's cutoff.
func (p Policy) CutoffPassed(now time.Time) bool {
	return now.In(p.loc()).Hour() >= p.CutoffHour
}

// CanEdit decides whether a regular user may change participation for date at now.
// A blocking special day wins over every time rule.
func (p Policy) CanEdit(date models.Date, now time.Time, special *models.SpecialDay) Decision {
	if special.BlocksParticipation() {
		return Decision{Reason: ReasonDayBlocked}
	}
	today := p.Today(now)
	if date.Before(today) {
		return Decision{Reason: ReasonPastDate}
	}
	if date == today && p.CutoffPassed(now) {
		return Decision{Reason: ReasonCutoffPassed}
	}
	return Decision{Allowed: true}
}
