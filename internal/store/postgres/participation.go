package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mhp-app/backend/internal/models"
)

// UpsertParticipation writes one record. Concurrent writers to the same key are
// serialized by the primary key; the last commit wins and sets updated_at.
func (s *Store) UpsertParticipation(ctx context.Context, rec *models.ParticipationRecord) error {
	const q = `INSERT INTO participation (user_id, date, meal_type, is_participating, modified_by, updated_by, reason, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7,''), NOW())
		ON CONFLICT (user_id, date, meal_type) DO UPDATE SET
			is_participating = EXCLUDED.is_participating,
			modified_by = EXCLUDED.modified_by,
			updated_by = EXCLUDED.updated_by,
			reason = EXCLUDED.reason,
			updated_at = NOW()
		RETURNING updated_at`
	return s.pool.QueryRow(ctx, q, rec.UserID, rec.Date, string(rec.MealType), rec.IsParticipating,
		string(rec.ModifiedBy), rec.UpdatedBy, rec.Reason).Scan(&rec.UpdatedAt)
}

// ListParticipation returns records for date, optionally limited to userIDs.
func (s *Store) ListParticipation(ctx context.Context, date models.Date, userIDs []uuid.UUID) ([]models.ParticipationRecord, error) {
	const base = `SELECT user_id, date, meal_type, is_participating, modified_by, COALESCE(updated_by, '00000000-0000-0000-0000-000000000000'::uuid),
		COALESCE(reason,''), updated_at FROM participation WHERE date = $1`
	var (
		rows pgx.Rows
		err  error
	)
	if userIDs == nil {
		rows, err = s.pool.Query(ctx, base, date)
	} else {
		rows, err = s.pool.Query(ctx, base+` AND user_id = ANY($2)`, date, userIDs)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ParticipationRecord
	for rows.Next() {
		var r models.ParticipationRecord
		if err := rows.Scan(&r.UserID, &r.Date, &r.MealType, &r.IsParticipating, &r.ModifiedBy, &r.UpdatedBy, &r.Reason, &r.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, rows.Err()
}
