package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/internal/store"
)

// GetMealConfig reads the version and every meal type in one snapshot.
func (s *Store) GetMealConfig(ctx context.Context) (models.MealConfig, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return models.MealConfig{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	cfg, err := readMealConfig(ctx, tx)
	if err != nil {
		return models.MealConfig{}, err
	}
	return cfg, tx.Commit(ctx)
}

// SetMealEnabled toggles a meal type and bumps the configuration version atomically.
func (s *Store) SetMealEnabled(ctx context.Context, mt models.MealType, enabled bool) (models.MealConfig, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.MealConfig{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE meal_types SET enabled = $2, updated_at = NOW() WHERE meal_type = $1`, string(mt), enabled)
	if err != nil {
		return models.MealConfig{}, err
	}
	if tag.RowsAffected() == 0 {
		return models.MealConfig{}, store.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `UPDATE meal_config_meta SET version = version + 1 WHERE id = 1`); err != nil {
		return models.MealConfig{}, err
	}
	cfg, err := readMealConfig(ctx, tx)
	if err != nil {
		return models.MealConfig{}, err
	}
	return cfg, tx.Commit(ctx)
}

func readMealConfig(ctx context.Context, tx pgx.Tx) (models.MealConfig, error) {
	var cfg models.MealConfig
	if err := tx.QueryRow(ctx, `SELECT version FROM meal_config_meta WHERE id = 1`).Scan(&cfg.Version); err != nil {
		return cfg, fmt.Errorf("read config version: %w", mapErr(err))
	}
	rows, err := tx.Query(ctx, `SELECT meal_type, enabled, admin_controlled, default_participating, sort_order, updated_at
		FROM meal_types ORDER BY sort_order, meal_type`)
	if err != nil {
		return cfg, err
	}
	defer rows.Close()
	for rows.Next() {
		var t models.MealTypeConfig
		if err := rows.Scan(&t.MealType, &t.Enabled, &t.AdminControlled, &t.DefaultParticipating, &t.SortOrder, &t.UpdatedAt); err != nil {
			return cfg, err
		}
		cfg.Types = append(cfg.Types, t)
	}
	return cfg, rows.Err()
}
