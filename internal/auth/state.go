package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/warden-auth/warden/internal/platform/httpx"
)

const stateKeyPrefix = "oauth_state:"

// StateStore tracks the anti-forgery state tokens of in-flight OAuth
// round-trips. Each token is single use and expires on its own if the
// round-trip never completes.
type StateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStateStore constructs a StateStore.
func NewStateStore(client *redis.Client, ttl time.Duration) *StateStore {
	return &StateStore{client: client, ttl: ttl}
}

// Issue registers a fresh state token.
func (s *StateStore) Issue(ctx context.Context) (string, error) {
	state := uuid.NewString()
	if err := s.client.Set(ctx, stateKeyPrefix+state, "1", s.ttl).Err(); err != nil {
		return "", fmt.Errorf("auth: store oauth state: %w", err)
	}
	return state, nil
}

// Validate consumes the state token. A token that was never issued, already
// used, or expired fails as Unauthorized.
func (s *StateStore) Validate(ctx context.Context, state string) error {
	if state == "" {
		return fmt.Errorf("oauth state missing: %w", httpx.ErrUnauthorized)
	}
	res, err := s.client.GetDel(ctx, stateKeyPrefix+state).Result()
	if err == redis.Nil || res == "" {
		return fmt.Errorf("oauth state unknown: %w", httpx.ErrUnauthorized)
	}
	if err != nil {
		return fmt.Errorf("auth: load oauth state: %w", err)
	}
	return nil
}
