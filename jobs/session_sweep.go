package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// SessionStore is the slice of the auth repository the sweep needs.
type SessionStore interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// SessionSweeper deletes refresh sessions whose expiry has passed. Rotation
// also drops expired rows lazily; the sweep keeps the table bounded for
// clients that simply stop coming back.
type SessionSweeper struct {
	store  SessionStore
	logger *slog.Logger
}

// NewSessionSweeper constructs a SessionSweeper.
func NewSessionSweeper(store SessionStore, logger *slog.Logger) *SessionSweeper {
	return &SessionSweeper{store: store, logger: logger}
}

// Handle processes TaskSessionSweep tasks.
func (s *SessionSweeper) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SessionSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	removed, err := s.store.DeleteExpiredSessions(ctx, time.Now())
	if err != nil {
		s.logger.Error("session sweep", slog.Any("error", err))
		return err
	}
	s.logger.Info("session sweep completed", slog.Int64("removed", removed))
	return nil
}
