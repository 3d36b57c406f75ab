package models

import "time"

// MealType identifies a meal served by the kitchen.
type MealType string

const (
	MealLunch          MealType = "lunch"
	MealSnacks         MealType = "snacks"
	MealIftar          MealType = "iftar"
	MealEventDinner    MealType = "event_dinner"
	MealOptionalDinner MealType = "optional_dinner"
)

// MealTypeConfig is the admin-managed configuration of one meal type.
type MealTypeConfig struct {
	MealType             MealType  `json:"meal_type"`
	Enabled              bool      `json:"enabled"`
	AdminControlled      bool      `json:"admin_controlled"`
	DefaultParticipating bool      `json:"default_participating"`
	SortOrder            int       `json:"-"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// MealConfig is a versioned snapshot of every meal type configuration.
// Version increases on each admin mutation, so two reads with the same version saw the same config.
type MealConfig struct {
	Version int64            `json:"version"`
	Types   []MealTypeConfig `json:"meal_types"`
}

// Lookup returns the configuration for mt.
func (c MealConfig) Lookup(mt MealType) (MealTypeConfig, bool) {
	for _, t := range c.Types {
		if t.MealType == mt {
			return t, true
		}
	}
	return MealTypeConfig{}, false
}

// Enabled returns the enabled meal types in display order.
func (c MealConfig) Enabled() []MealTypeConfig {
	out := make([]MealTypeConfig, 0, len(c.Types))
	for _, t := range c.Types {
		if t.Enabled {
			out = append(out, t)
		}
	}
	return out
}

// DefaultMealConfig is the configuration seeded at setup.
func DefaultMealConfig() []MealTypeConfig {
	return []MealTypeConfig{
		{MealType: MealLunch, Enabled: true, DefaultParticipating: true, SortOrder: 1},
		{MealType: MealSnacks, Enabled: true, DefaultParticipating: true, SortOrder: 2},
		{MealType: MealIftar, Enabled: false, AdminControlled: true, DefaultParticipating: false, SortOrder: 3},
		{MealType: MealEventDinner, Enabled: false, AdminControlled: true, DefaultParticipating: false, SortOrder: 4},
		{MealType: MealOptionalDinner, Enabled: true, DefaultParticipating: true, SortOrder: 5},
	}
}
