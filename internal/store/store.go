// Package store declares the persistence contracts shared by the services.
// Implementations live in store/postgres and store/memory.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mhp-app/backend/internal/models"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")
)

// UserStore reads and writes user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, f models.UserFilter) ([]models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	ListTeams(ctx context.Context) ([]string, error)
}

// ParticipationStore owns participation records. Upserts on the same key are
// serialized by the backend; the last commit wins.
type ParticipationStore interface {
	UpsertParticipation(ctx context.Context, rec *models.ParticipationRecord) error
	// ListParticipation returns records for date. A nil userIDs means every user.
	ListParticipation(ctx context.Context, date models.Date, userIDs []uuid.UUID) ([]models.ParticipationRecord, error)
}

// WorkLocationStore owns per-date work locations.
type WorkLocationStore interface {
	UpsertWorkLocation(ctx context.Context, wl *models.WorkLocation) error
	GetWorkLocation(ctx context.Context, userID uuid.UUID, date models.Date) (*models.WorkLocation, error)
	ListWorkLocations(ctx context.Context, date models.Date) ([]models.WorkLocation, error)
}

// SpecialDayStore owns the special day calendar.
type SpecialDayStore interface {
	CreateSpecialDay(ctx context.Context, d *models.SpecialDay) error
	GetSpecialDay(ctx context.Context, date models.Date) (*models.SpecialDay, error)
	ListSpecialDays(ctx context.Context, start, end models.Date) ([]models.SpecialDay, error)
	DeleteSpecialDay(ctx context.Context, id uuid.UUID) error
}

// MealConfigStore reads and mutates the versioned meal configuration.
type MealConfigStore interface {
	GetMealConfig(ctx context.Context) (models.MealConfig, error)
	SetMealEnabled(ctx context.Context, mt models.MealType, enabled bool) (models.MealConfig, error)
}

// AnnouncementStore owns announcements.
type AnnouncementStore interface {
	CreateAnnouncement(ctx context.Context, a *models.Announcement) error
	GetAnnouncement(ctx context.Context, id uuid.UUID) (*models.Announcement, error)
	// ListAnnouncements filters by author (uuid.Nil for any) and status ("" for any).
	ListAnnouncements(ctx context.Context, createdBy uuid.UUID, status models.AnnouncementStatus) ([]models.Announcement, error)
	UpdateAnnouncement(ctx context.Context, a *models.Announcement) error
}

// Store is the full persistence surface.
type Store interface {
	UserStore
	ParticipationStore
	WorkLocationStore
	SpecialDayStore
	MealConfigStore
	AnnouncementStore
}
