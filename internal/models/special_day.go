package models

import (
	"time"

	"github.com/google/uuid"
)

// DayType classifies a special calendar day.
type DayType string

const (
	DayOfficeClosed      DayType = "office_closed"
	DayGovernmentHoliday DayType = "government_holiday"
	DaySpecialEvent      DayType = "special_event"
)

// Valid reports whether t is a known day type.
func (t DayType) Valid() bool {
	switch t {
	case DayOfficeClosed, DayGovernmentHoliday, DaySpecialEvent:
		return true
	}
	return false
}

// Label is the human-readable name of the day type.
func (t DayType) Label() string {
	switch t {
	case DayOfficeClosed:
		return "Office Closed"
	case DayGovernmentHoliday:
		return "Government Holiday"
	case DaySpecialEvent:
		return "Special Event"
	}
	return string(t)
}

// SpecialDay flags a date as closed, a holiday, or an event.
type SpecialDay struct {
	ID        uuid.UUID `json:"id"`
	Date      Date      `json:"date"`
	DayType   DayType   `json:"day_type"`
	Note      string    `json:"note,omitempty"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// BlocksParticipation reports whether the day disallows all participation edits.
func (s *SpecialDay) BlocksParticipation() bool {
	return s != nil && (s.DayType == DayOfficeClosed || s.DayType == DayGovernmentHoliday)
}
