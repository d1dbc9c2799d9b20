package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/warden-auth/warden/internal/auth"
	"github.com/warden-auth/warden/internal/users"
)

// ProviderTokenStore is the slice of the auth repository the refresher needs.
type ProviderTokenStore interface {
	ListProviderTokens(ctx context.Context, now time.Time) ([]auth.ProviderToken, error)
	UpsertProviderToken(ctx context.Context, userID int64, tokenCipher string, expiresAt time.Time) error
	DeleteExpiredProviderTokens(ctx context.Context, now time.Time) (int64, error)
}

// ProviderExchange redeems a refresh token with the identity provider.
type ProviderExchange interface {
	RefreshExchange(ctx context.Context, refreshToken string) (*auth.ProviderGrant, error)
}

// ProfileDirectory applies a refreshed profile to the user directory.
type ProfileDirectory interface {
	Sync(ctx context.Context, p users.Profile) (*users.User, bool, error)
}

// ProfileRefresher redeems stored provider refresh tokens to pull drifted
// profiles back in sync, rotating the stored token when the provider hands a
// replacement back. One user's failure never blocks the rest of the batch.
type ProfileRefresher struct {
	store     ProviderTokenStore
	box       *auth.SecretBox
	provider  ProviderExchange
	directory ProfileDirectory
	logger    *slog.Logger
}

// NewProfileRefresher constructs a ProfileRefresher.
func NewProfileRefresher(store ProviderTokenStore, box *auth.SecretBox, provider ProviderExchange, directory ProfileDirectory, logger *slog.Logger) *ProfileRefresher {
	return &ProfileRefresher{store: store, box: box, provider: provider, directory: directory, logger: logger}
}

// Handle processes TaskProfileRefresh tasks.
func (p *ProfileRefresher) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ProfileRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	now := time.Now()
	purged, err := p.store.DeleteExpiredProviderTokens(ctx, now)
	if err != nil {
		p.logger.Error("purge provider tokens", slog.Any("error", err))
		return err
	}

	tokens, err := p.store.ListProviderTokens(ctx, now)
	if err != nil {
		p.logger.Error("list provider tokens", slog.Any("error", err))
		return err
	}

	var refreshed int
	for _, tok := range tokens {
		secret, err := p.box.Open(tok.TokenCipher)
		if err != nil {
			p.logger.Warn("provider token unreadable", slog.Int64("user_id", tok.UserID), slog.Any("error", err))
			continue
		}
		grant, err := p.provider.RefreshExchange(ctx, secret)
		if err != nil {
			p.logger.Warn("provider refresh rejected", slog.Int64("user_id", tok.UserID), slog.Any("error", err))
			continue
		}
		if _, _, err := p.directory.Sync(ctx, grant.Profile); err != nil {
			p.logger.Warn("profile sync", slog.Int64("user_id", tok.UserID), slog.Any("error", err))
			continue
		}
		if grant.RefreshToken != "" {
			if err := p.store.UpsertProviderToken(ctx, tok.UserID, p.box.Seal(grant.RefreshToken), now.Add(grant.ExpiresIn)); err != nil {
				p.logger.Warn("rotate provider token", slog.Int64("user_id", tok.UserID), slog.Any("error", err))
			}
		}
		refreshed++
	}

	p.logger.Info("profile refresh completed",
		slog.Int("refreshed", refreshed),
		slog.Int("skipped", len(tokens)-refreshed),
		slog.Int64("purged", purged))
	return nil
}
