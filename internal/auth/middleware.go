package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/warden-auth/warden/internal/platform/httpx"
	"github.com/warden-auth/warden/internal/shared"
	"github.com/warden-auth/warden/internal/users"
)

// Middleware verifies bearer access tokens and attaches the resolved identity
// to the request context.
type Middleware struct {
	tokens *TokenIssuer
	users  *users.Service
	logger *slog.Logger
}

// NewMiddleware constructs a Middleware instance.
func NewMiddleware(tokens *TokenIssuer, userService *users.Service, logger *slog.Logger) *Middleware {
	return &Middleware{tokens: tokens, users: userService, logger: logger}
}

// Authenticate rejects requests without a valid bearer token. A token whose
// subject no longer exists in the directory fails the same way as a bad
// signature; a directory outage is not an authentication failure and surfaces
// as an internal error instead.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		externalID, err := m.tokens.VerifyAccess(token)
		if err != nil {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		user, err := m.users.FindByExternalID(r.Context(), externalID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if m.logger != nil {
				m.logger.Error("load bearer subject", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		identity := &shared.Identity{UserID: user.ID, ExternalID: user.ExternalID, Username: user.Username}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), identity)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}
