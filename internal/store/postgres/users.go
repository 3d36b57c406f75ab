package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mhp-app/backend/internal/models"
)

const userColumns = `id, name, email, password_hash, role, COALESCE(team,''), is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Role, &u.Team, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// CreateUser inserts a new user and fills generated fields.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	const q = `INSERT INTO users (name, email, password_hash, role, team, is_active)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), $6)
		RETURNING id, created_at, updated_at`
	err := s.pool.QueryRow(ctx, q, u.Name, u.Email, u.Password, string(u.Role), u.Team, u.Active).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return mapErr(err)
}

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByEmail returns a user by email, case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

// ListUsers returns users matching f ordered by name.
func (s *Store) ListUsers(ctx context.Context, f models.UserFilter) ([]models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users
		WHERE ($1 = '' OR team = $1) AND (NOT $2 OR is_active)
		ORDER BY name, email`
	rows, err := s.pool.Query(ctx, q, f.Team, f.ActiveOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *u)
	}
	return list, rows.Err()
}

// UpdateUser writes the mutable profile fields.
func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	const q = `UPDATE users SET name = $2, email = $3, password_hash = $4, role = $5, team = NULLIF($6,''),
		is_active = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`
	err := s.pool.QueryRow(ctx, q, u.ID, u.Name, u.Email, u.Password, string(u.Role), u.Team, u.Active).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	return mapErr(err)
}

// ListTeams returns the distinct teams of active users.
func (s *Store) ListTeams(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT team FROM users WHERE team IS NOT NULL AND team <> '' AND is_active ORDER BY team`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
