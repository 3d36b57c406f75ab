package headcount

import (
	"github.com/google/uuid"

	"github.com/mhp-app/backend/internal/models"
)

// Source names where an effective participation value came from.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceDefault  Source = "default"
)

// Choice is a user's stance on one meal for one date: either an Explicit
// record or the meal's Default. It is resolved against a config snapshot.
type Choice interface {
	Participating(cfg models.MealTypeConfig) bool
	Source() Source
}

// Explicit is a stored opt-in (true) or opt-out (false).
type Explicit bool

func (e Explicit) Participating(models.MealTypeConfig) bool { return bool(e) }
func (Explicit) Source() Source                            { return SourceExplicit }

// Default means no record exists; the meal's configured default applies.
type Default struct {
	MealType models.MealType
}

func (Default) Participating(cfg models.MealTypeConfig) bool { return cfg.DefaultParticipating }
func (Default) Source() Source                               { return SourceDefault }

// Index holds explicit values by user and meal for one date.
type Index map[uuid.UUID]map[models.MealType]bool

// IndexRecords builds an Index from records of a single date.
func IndexRecords(recs []models.ParticipationRecord) Index {
	ix := make(Index)
	for _, r := range recs {
		m, ok := ix[r.UserID]
		if !ok {
			m = make(map[models.MealType]bool)
			ix[r.UserID] = m
		}
		m[r.MealType] = r.IsParticipating
	}
	return ix
}

// Choice resolves the stance of userID on mt.
func (ix Index) Choice(userID uuid.UUID, mt models.MealType) Choice {
	if v, ok := ix[userID][mt]; ok {
		return Explicit(v)
	}
	return Default{MealType: mt}
}
