package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/mhp-app/backend/internal/models"
)

// UpsertWorkLocation sets the user's location for a date.
func (s *Store) UpsertWorkLocation(ctx context.Context, wl *models.WorkLocation) error {
	const q = `INSERT INTO work_locations (user_id, date, location, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, date) DO UPDATE SET
			location = EXCLUDED.location, updated_by = EXCLUDED.updated_by, updated_at = NOW()
		RETURNING updated_at`
	return s.pool.QueryRow(ctx, q, wl.UserID, wl.Date, string(wl.Location), wl.UpdatedBy).Scan(&wl.UpdatedAt)
}

// GetWorkLocation returns the stored location, or store.ErrNotFound.
func (s *Store) GetWorkLocation(ctx context.Context, userID uuid.UUID, date models.Date) (*models.WorkLocation, error) {
	const q = `SELECT user_id, date, location, COALESCE(updated_by, '00000000-0000-0000-0000-000000000000'::uuid), updated_at
		FROM work_locations WHERE user_id = $1 AND date = $2`
	var wl models.WorkLocation
	err := s.pool.QueryRow(ctx, q, userID, date).Scan(&wl.UserID, &wl.Date, &wl.Location, &wl.UpdatedBy, &wl.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &wl, nil
}

// ListWorkLocations returns every stored location for date.
func (s *Store) ListWorkLocations(ctx context.Context, date models.Date) ([]models.WorkLocation, error) {
	const q = `SELECT user_id, date, location, COALESCE(updated_by, '00000000-0000-0000-0000-000000000000'::uuid), updated_at
		FROM work_locations WHERE date = $1`
	rows, err := s.pool.Query(ctx, q, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.WorkLocation
	for rows.Next() {
		var wl models.WorkLocation
		if err := rows.Scan(&wl.UserID, &wl.Date, &wl.Location, &wl.UpdatedBy, &wl.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, wl)
	}
	return list, rows.Err()
}
