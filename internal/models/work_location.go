package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Location is where a user works on a given date.
type Location string

const (
	LocationOffice Location = "Office"
	LocationWFH    Location = "WFH"
)

// ParseLocation validates a location string.
func ParseLocation(s string) (Location, error) {
	switch Location(s) {
	case LocationOffice, LocationWFH:
		return Location(s), nil
	}
	return "", fmt.Errorf("invalid location %q: expected Office or WFH", s)
}

// WorkLocation is a user's location for one date. Absence means Office.
type WorkLocation struct {
	UserID    uuid.UUID `json:"user_id"`
	Date      Date      `json:"date"`
	Location  Location  `json:"location"`
	UpdatedBy uuid.UUID `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}
