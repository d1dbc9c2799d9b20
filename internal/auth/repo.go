package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warden-auth/warden/internal/shared"
)

// Repository defines persistence operations for the credential lifecycle.
type Repository interface {
	CreateSession(ctx context.Context, userID int64, tokenCipher string, expiresAt time.Time) error
	FindSessionByCipher(ctx context.Context, tokenCipher string) (*RefreshSession, error)
	DeleteSessionsForUser(ctx context.Context, userID int64) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	UpsertProviderToken(ctx context.Context, userID int64, tokenCipher string, expiresAt time.Time) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateSession persists a new refresh session record.
func (r *PGRepository) CreateSession(ctx context.Context, userID int64, tokenCipher string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO refresh_sessions (user_id, token_cipher, expires_at, created_at)
		VALUES ($1, $2, $3, now())`, userID, tokenCipher, expiresAt.UTC())
	return err
}

// FindSessionByCipher looks a session up by the ciphertext of its secret.
func (r *PGRepository) FindSessionByCipher(ctx context.Context, tokenCipher string) (*RefreshSession, error) {
	var s RefreshSession
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, token_cipher, expires_at, created_at
		FROM refresh_sessions WHERE token_cipher = $1`, tokenCipher).
		Scan(&s.ID, &s.UserID, &s.TokenCipher, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// DeleteSessionsForUser removes every refresh session the user owns.
func (r *PGRepository) DeleteSessionsForUser(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_sessions WHERE user_id = $1`, userID)
	return err
}

// DeleteExpiredSessions purges all sessions whose expiry has passed and
// reports how many rows went away.
func (r *PGRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_sessions WHERE expires_at < $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpsertProviderToken stores the encrypted provider refresh token, replacing
// any previous one for the user.
func (r *PGRepository) UpsertProviderToken(ctx context.Context, userID int64, tokenCipher string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO provider_tokens (user_id, token_cipher, expires_at, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE SET
			token_cipher = EXCLUDED.token_cipher,
			expires_at   = EXCLUDED.expires_at`, userID, tokenCipher, expiresAt.UTC())
	return err
}

// ListProviderTokens returns every stored provider credential that is still
// within its lifetime. The periodic profile refresh iterates these.
func (r *PGRepository) ListProviderTokens(ctx context.Context, now time.Time) ([]ProviderToken, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, token_cipher, expires_at
		FROM provider_tokens WHERE expires_at > $1
		ORDER BY user_id`, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []ProviderToken
	for rows.Next() {
		var t ProviderToken
		if err := rows.Scan(&t.UserID, &t.TokenCipher, &t.ExpiresAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteExpiredProviderTokens purges provider credentials past their expiry
// and reports how many rows went away.
func (r *PGRepository) DeleteExpiredProviderTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM provider_tokens WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
