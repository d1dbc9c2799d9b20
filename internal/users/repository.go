package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warden-auth/warden/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, external_id, username, email, discriminator, avatar, created_at, updated_at`

// FindByExternalID fetches a user by the provider's stable identity id.
func (r *Repository) FindByExternalID(ctx context.Context, externalID string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID)
	return scanUser(row)
}

// FindByID fetches a user by internal id.
func (r *Repository) FindByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// ListUsers returns all users ordered by id.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.ExternalID, &u.Username, &u.Email, &u.Discriminator, &u.Avatar, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// CountUsers returns the total number of user records.
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// Upsert creates the user on first login or refreshes drifted profile fields.
// The write is a single atomic statement keyed on external_id.
func (r *Repository) Upsert(ctx context.Context, p Profile) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (external_id, username, email, discriminator, avatar, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (external_id) DO UPDATE SET
			username      = EXCLUDED.username,
			email         = EXCLUDED.email,
			discriminator = EXCLUDED.discriminator,
			avatar        = EXCLUDED.avatar,
			updated_at    = now()
		RETURNING `+userColumns,
		p.ExternalID, p.Username, p.Email, p.Discriminator, p.Avatar)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.ExternalID, &u.Username, &u.Email, &u.Discriminator, &u.Avatar, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
