package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/mhp-app/backend/internal/models"
)

const announcementColumns = `id, title, body, audience, status, scheduled_at, published_at, created_by, created_at, updated_at`

// CreateAnnouncement inserts an announcement.
func (s *Store) CreateAnnouncement(ctx context.Context, a *models.Announcement) error {
	const q = `INSERT INTO announcements (title, body, audience, status, scheduled_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	return s.pool.QueryRow(ctx, q, a.Title, a.Body, a.Audience, string(a.Status), a.ScheduledAt, a.CreatedBy).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// GetAnnouncement returns an announcement by ID.
func (s *Store) GetAnnouncement(ctx context.Context, id uuid.UUID) (*models.Announcement, error) {
	var a models.Announcement
	err := s.pool.QueryRow(ctx, `SELECT `+announcementColumns+` FROM announcements WHERE id = $1`, id).
		Scan(&a.ID, &a.Title, &a.Body, &a.Audience, &a.Status, &a.ScheduledAt, &a.PublishedAt, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

// ListAnnouncements returns announcements newest first.
func (s *Store) ListAnnouncements(ctx context.Context, createdBy uuid.UUID, status models.AnnouncementStatus) ([]models.Announcement, error) {
	const q = `SELECT ` + announcementColumns + ` FROM announcements
		WHERE ($1 = '00000000-0000-0000-0000-000000000000'::uuid OR created_by = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q, createdBy, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Announcement
	for rows.Next() {
		var a models.Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.Audience, &a.Status, &a.ScheduledAt, &a.PublishedAt, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// UpdateAnnouncement writes status and schedule fields.
func (s *Store) UpdateAnnouncement(ctx context.Context, a *models.Announcement) error {
	const q = `UPDATE announcements SET title = $2, body = $3, audience = $4, status = $5,
		scheduled_at = $6, published_at = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := s.pool.QueryRow(ctx, q, a.ID, a.Title, a.Body, a.Audience, string(a.Status), a.ScheduledAt, a.PublishedAt).
		Scan(&a.UpdatedAt)
	return mapErr(err)
}
