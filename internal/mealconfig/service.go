// Package mealconfig exposes the versioned meal type configuration.
package mealconfig

import (
	"context"

	"go.uber.org/zap"

	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/internal/store"
	"github.com/mhp-app/backend/pkg/apperr"
)

// Notifier is told when the configuration changes.
type Notifier interface {
	NotifyAll()
}

// Service reads and toggles meal types.
type Service struct {
	store    store.MealConfigStore
	notifier Notifier
	logger   *zap.Logger
}

// NewService creates a meal config service. notifier may be nil.
func NewService(st store.MealConfigStore, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, notifier: notifier, logger: logger}
}

// Get returns the current configuration snapshot.
func (s *Service) Get(ctx context.Context) (models.MealConfig, error) {
	cfg, err := s.store.GetMealConfig(ctx)
	if err != nil {
		return models.MealConfig{}, apperr.Wrap(apperr.TransientStoreError, err, "could not load meal configuration")
	}
	return cfg, nil
}

// SetEnabled toggles an admin-controlled meal type. Everyday meals cannot be switched off.
func (s *Service) SetEnabled(ctx context.Context, actor *models.User, mt models.MealType, enabled bool) (models.MealConfig, error) {
	if actor == nil || actor.Role != models.RoleAdmin {
		return models.MealConfig{}, apperr.New(apperr.PermissionDenied, "only admins can change meal configuration")
	}
	cfg, err := s.Get(ctx)
	if err != nil {
		return models.MealConfig{}, err
	}
	mc, ok := cfg.Lookup(mt)
	if !ok {
		return models.MealConfig{}, apperr.New(apperr.UnknownMealType, "unknown meal type %q", mt)
	}
	if !mc.AdminControlled {
		return models.MealConfig{}, apperr.New(apperr.ValidationError, "%s is always enabled and cannot be toggled", mt)
	}
	if mc.Enabled == enabled {
		return cfg, nil
	}
	cfg, err = s.store.SetMealEnabled(ctx, mt, enabled)
	if err != nil {
		return models.MealConfig{}, apperr.Wrap(apperr.TransientStoreError, err, "could not update meal configuration")
	}
	s.logger.Info("meal type toggled",
		zap.String("meal_type", string(mt)),
		zap.Bool("enabled", enabled),
		zap.Int64("version", cfg.Version),
		zap.String("actor_id", actor.ID.String()))
	if s.notifier != nil {
		s.notifier.NotifyAll()
	}
	return cfg, nil
}
