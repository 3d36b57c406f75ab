// Package worklocation records where users work and opts WFH users out of meals.
package worklocation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mhp-app/backend/internal/cutoff"
	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/internal/participation"
	"github.com/mhp-app/backend/internal/store"
	"github.com/mhp-app/backend/pkg/apperr"
	"github.com/mhp-app/backend/pkg/metrics"
)

// CascadeReason is stored on records written by the WFH cascade.
const CascadeReason = "Work from home"

// Store is the persistence the service needs.
type Store interface {
	store.UserStore
	store.WorkLocationStore
}

// Service sets work locations and runs the WFH cascade through the participation service.
type Service struct {
	store         Store
	participation *participation.Service
	notifier      participation.Notifier
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewService creates a work location service.
func NewService(st Store, ps *participation.Service, n participation.Notifier, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, participation: ps, notifier: n, metrics: m, logger: logger}
}

// SetRequest changes one user's location for a date.
type SetRequest struct {
	UserID   uuid.UUID
	Date     models.Date
	Location models.Location
	Actor    *models.User
}

// Cascade reports what a WFH change did to participation.
type Cascade struct {
	Applied  bool                        `json:"applied"`
	OptedOut []models.MealType           `json:"opted_out"`
	Skipped  bool                        `json:"skipped"`
	Reason   cutoff.Reason               `json:"reason,omitempty"`
	Warning  string                      `json:"warning,omitempty"`
	Failed   []participation.BulkFailure `json:"failed,omitempty"`
}

// Result is the stored location plus the cascade outcome, if any.
type Result struct {
	WorkLocation models.WorkLocation `json:"work_location"`
	Previous     models.Location     `json:"previous"`
	Cascade      *Cascade            `json:"cascade,omitempty"`
}

// Today is the current date in the policy zone.
func (s *Service) Today() models.Date {
	return s.participation.Policy().Today(s.participation.Now())
}

// Set stores the location. A WFH location for today or later opts the user out of
// every meal they are currently in, provided the user could still edit that date.
// The location write stands even when the cascade is skipped.
func (s *Service) Set(ctx context.Context, req SetRequest) (*Result, error) {
	if req.Actor == nil {
		return nil, apperr.New(apperr.NotAuthenticated, "authentication required")
	}
	if req.Date.IsZero() {
		return nil, apperr.New(apperr.ValidationError, "date is required")
	}
	if _, err := models.ParseLocation(string(req.Location)); err != nil {
		return nil, apperr.New(apperr.ValidationError, "%s", err.Error())
	}
	target, err := s.lookupUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !target.Active {
		return nil, apperr.New(apperr.UserInactive, "user %s is inactive", target.Email)
	}
	if !participation.CanView(req.Actor, target) {
		return nil, apperr.New(apperr.PermissionDenied, "you cannot change this user's work location")
	}

	previous, err := s.current(ctx, target.ID, req.Date)
	if err != nil {
		return nil, err
	}
	wl := &models.WorkLocation{UserID: target.ID, Date: req.Date, Location: req.Location, UpdatedBy: req.Actor.ID}
	if err := s.store.UpsertWorkLocation(ctx, wl); err != nil {
		return nil, apperr.Wrap(apperr.TransientStoreError, err, "could not save work location")
	}
	res := &Result{WorkLocation: *wl, Previous: previous}

	today := s.Today()
	if req.Location == models.LocationWFH && !req.Date.Before(today) {
		res.Cascade = s.cascade(ctx, target, req.Date)
	}
	if s.notifier != nil {
		s.notifier.Notify(req.Date)
	}

	s.logger.Info("work location set",
		zap.String("user_id", target.ID.String()),
		zap.String("date", req.Date.String()),
		zap.String("location", string(req.Location)),
		zap.String("actor_id", req.Actor.ID.String()))
	return res, nil
}

// cascade opts target out of every meal it is effectively in for date, as a self edit.
func (s *Service) cascade(ctx context.Context, target *models.User, date models.Date) *Cascade {
	c := &Cascade{OptedOut: []models.MealType{}}
	view, err := s.participation.Meals(ctx, target, target.ID, date)
	if err != nil {
		s.logger.Warn("wfh cascade: load meals", zap.String("user_id", target.ID.String()), zap.Error(err))
		c.Skipped = true
		c.Warning = "Location saved, but meals could not be updated: " + apperr.Message(err)
		return c
	}
	if !view.CanEdit {
		s.metrics.IncCascadeSkipped()
		c.Skipped = true
		c.Reason = view.Reason
		c.Warning = "Location saved, but meal participation could not be changed for this date"
		return c
	}

	for _, m := range view.Meals {
		if !m.IsParticipating {
			continue
		}
		_, err := s.participation.Set(ctx, participation.SetRequest{
			UserID:   target.ID,
			Date:     date,
			MealType: m.MealType,
			Value:    false,
			Actor:    target,
			Reason:   CascadeReason,
		})
		if err != nil {
			c.Failed = append(c.Failed, participation.BulkFailure{
				UserID: target.ID, MealType: m.MealType, Error: apperr.KindOf(err), Message: apperr.Message(err),
			})
			continue
		}
		c.OptedOut = append(c.OptedOut, m.MealType)
	}
	c.Applied = true
	if len(c.Failed) > 0 {
		c.Warning = "Location saved, but some meals could not be opted out"
	}
	s.metrics.AddCascadeOptOuts(len(c.OptedOut))
	return c
}

// Get returns userID's location for date; no record means Office.
func (s *Service) Get(ctx context.Context, actor *models.User, userID uuid.UUID, date models.Date) (*models.WorkLocation, error) {
	if actor == nil {
		return nil, apperr.New(apperr.NotAuthenticated, "authentication required")
	}
	target, err := s.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !participation.CanView(actor, target) {
		return nil, apperr.New(apperr.PermissionDenied, "you cannot view this user's work location")
	}
	wl, err := s.store.GetWorkLocation(ctx, userID, date)
	if errors.Is(err, store.ErrNotFound) {
		return &models.WorkLocation{UserID: userID, Date: date, Location: models.LocationOffice}, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.TransientStoreError, err, "could not load work location")
	}
	return wl, nil
}

// Entry is one user's location in a date listing.
type Entry struct {
	UserID    uuid.UUID       `json:"user_id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Team      string          `json:"team,omitempty"`
	Location  models.Location `json:"location"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

// ListByDate returns every active user's location. Team leads see their own team only.
func (s *Service) ListByDate(ctx context.Context, actor *models.User, date models.Date) ([]Entry, error) {
	if actor == nil {
		return nil, apperr.New(apperr.NotAuthenticated, "authentication required")
	}
	filter := models.UserFilter{ActiveOnly: true}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleTeamLead:
		if actor.Team == "" {
			return []Entry{}, nil
		}
		filter.Team = actor.Team
	default:
		return nil, apperr.New(apperr.PermissionDenied, "only team leads and admins can list work locations")
	}
	users, err := s.store.ListUsers(ctx, filter)
	if err != nil {
		return nil, apperr.Wrap(apperr.TransientStoreError, err, "could not load users")
	}
	locs, err := s.store.ListWorkLocations(ctx, date)
	if err != nil {
		return nil, apperr.Wrap(apperr.TransientStoreError, err, "could not load work locations")
	}
	byUser := make(map[uuid.UUID]models.WorkLocation, len(locs))
	for _, wl := range locs {
		byUser[wl.UserID] = wl
	}
	out := make([]Entry, 0, len(users))
	for _, u := range users {
		e := Entry{UserID: u.ID, Name: u.Name, Email: u.Email, Team: u.Team, Location: models.LocationOffice}
		if wl, ok := byUser[u.ID]; ok {
			e.Location = wl.Location
			updated := wl.UpdatedAt
			e.UpdatedAt = &updated
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Service) current(ctx context.Context, userID uuid.UUID, date models.Date) (models.Location, error) {
	wl, err := s.store.GetWorkLocation(ctx, userID, date)
	if errors.Is(err, store.ErrNotFound) {
		return models.LocationOffice, nil
	}
	if err != nil {
		return "", apperr.Wrap(apperr.TransientStoreError, err, "could not load work location")
	}
	return wl.Location, nil
}

func (s *Service) lookupUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.UserNotFound, "user %s not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.TransientStoreError, err, "could not load user")
	}
	return u, nil
}
