package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/internal/store"
)

const specialDayColumns = `id, date, day_type, COALESCE(note,''),
	COALESCE(created_by, '00000000-0000-0000-0000-000000000000'::uuid), created_at`

// CreateSpecialDay inserts a special day. A second entry for the same date is a conflict.
func (s *Store) CreateSpecialDay(ctx context.Context, d *models.SpecialDay) error {
	const q = `INSERT INTO special_days (date, day_type, note, created_by)
		VALUES ($1, $2, NULLIF($3,''), $4)
		RETURNING id, created_at`
	err := s.pool.QueryRow(ctx, q, d.Date, string(d.DayType), d.Note, d.CreatedBy).Scan(&d.ID, &d.CreatedAt)
	return mapErr(err)
}

// GetSpecialDay returns the special day on date, or store.ErrNotFound.
func (s *Store) GetSpecialDay(ctx context.Context, date models.Date) (*models.SpecialDay, error) {
	var d models.SpecialDay
	err := s.pool.QueryRow(ctx, `SELECT `+specialDayColumns+` FROM special_days WHERE date = $1`, date).
		Scan(&d.ID, &d.Date, &d.DayType, &d.Note, &d.CreatedBy, &d.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

// ListSpecialDays returns special days in [start, end] ordered by date.
func (s *Store) ListSpecialDays(ctx context.Context, start, end models.Date) ([]models.SpecialDay, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+specialDayColumns+` FROM special_days
		WHERE date BETWEEN $1 AND $2 ORDER BY date`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.SpecialDay
	for rows.Next() {
		var d models.SpecialDay
		if err := rows.Scan(&d.ID, &d.Date, &d.DayType, &d.Note, &d.CreatedBy, &d.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// DeleteSpecialDay removes a special day by ID.
func (s *Store) DeleteSpecialDay(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM special_days WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
