// Package headcount aggregates participation into per-meal, per-team and
// per-location counts for a date.
package headcount

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/internal/store"
	"github.com/mhp-app/backend/pkg/apperr"
	"github.com/mhp-app/backend/pkg/metrics"
)

// Store is the read-only view the engine needs.
type Store interface {
	store.UserStore
	store.ParticipationStore
	store.WorkLocationStore
	store.MealConfigStore
}

// Engine recomputes aggregates from the store on every call. It keeps no cache.
type Engine struct {
	store   Store
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewEngine creates an aggregation engine.
func NewEngine(st Store, m *metrics.Metrics, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: st, metrics: m, logger: logger, now: time.Now}
}

// WithClock overrides the timestamp source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Compute returns the headcount for date within scope.
func (e *Engine) Compute(ctx context.Context, date models.Date, scope Scope) (*models.HeadcountAggregate, error) {
	start := time.Now()
	defer e.metrics.ObserveCompute(start)

	in, err := e.load(ctx, date, scope)
	if err != nil {
		return nil, err
	}
	return Tally(*in), nil
}

// Roster returns every in-scope member's effective meals for date.
func (e *Engine) Roster(ctx context.Context, date models.Date, scope Scope) ([]models.RosterEntry, error) {
	in, err := e.load(ctx, date, scope)
	if err != nil {
		return nil, err
	}
	return BuildRoster(*in), nil
}

// load reads users, the config snapshot, records and locations concurrently.
func (e *Engine) load(ctx context.Context, date models.Date, scope Scope) (*Input, error) {
	if date.IsZero() {
		return nil, apperr.New(apperr.ValidationError, "date is required")
	}
	in := &Input{Date: date, Scope: scope, Now: e.now().UTC()}
	var locations []models.WorkLocation

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.Users, err = e.store.ListUsers(gctx, models.UserFilter{Team: scope.Team, ActiveOnly: true})
		return err
	})
	g.Go(func() (err error) {
		in.Config, err = e.store.GetMealConfig(gctx)
		return err
	})
	g.Go(func() (err error) {
		in.Records, err = e.store.ListParticipation(gctx, date, nil)
		return err
	})
	g.Go(func() (err error) {
		locations, err = e.store.ListWorkLocations(gctx, date)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		e.logger.Error("load headcount inputs", zap.String("date", date.String()), zap.Error(err))
		return nil, apperr.Wrap(apperr.TransientStoreError, err, "could not load headcount data")
	}

	in.Locations = make(map[uuid.UUID]models.Location, len(locations))
	for _, wl := range locations {
		in.Locations[wl.UserID] = wl.Location
	}
	return in, nil
}
