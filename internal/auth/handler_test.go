package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/warden-auth/warden/internal/auth"
	"github.com/warden-auth/warden/internal/shared"
	"github.com/warden-auth/warden/internal/users"
	_ "github.com/warden-auth/warden/testing"
)

type memoryUserRepo struct {
	byExternal map[string]*users.User
	nextID     int64
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{byExternal: make(map[string]*users.User)}
}

func (r *memoryUserRepo) FindByExternalID(ctx context.Context, externalID string) (*users.User, error) {
	u, ok := r.byExternal[externalID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (r *memoryUserRepo) FindByID(ctx context.Context, id int64) (*users.User, error) {
	for _, u := range r.byExternal {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryUserRepo) ListUsers(ctx context.Context) ([]users.User, error) {
	var out []users.User
	for _, u := range r.byExternal {
		out = append(out, *u)
	}
	return out, nil
}

func (r *memoryUserRepo) CountUsers(ctx context.Context) (int64, error) {
	return int64(len(r.byExternal)), nil
}

func (r *memoryUserRepo) Upsert(ctx context.Context, p users.Profile) (*users.User, error) {
	if existing, ok := r.byExternal[p.ExternalID]; ok {
		existing.Username = p.Username
		existing.Email = p.Email
		existing.Avatar = p.Avatar
		existing.UpdatedAt = time.Now()
		return existing, nil
	}
	r.nextID++
	u := &users.User{
		ID:         r.nextID,
		ExternalID: p.ExternalID,
		Username:   p.Username,
		Email:      p.Email,
		Avatar:     p.Avatar,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	r.byExternal[p.ExternalID] = u
	return u, nil
}

type memorySessions struct {
	sessions map[string]auth.RefreshSession
	nextID   int64
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: make(map[string]auth.RefreshSession)}
}

func (r *memorySessions) CreateSession(ctx context.Context, userID int64, tokenCipher string, expiresAt time.Time) error {
	r.nextID++
	r.sessions[tokenCipher] = auth.RefreshSession{ID: r.nextID, UserID: userID, TokenCipher: tokenCipher, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	return nil
}

func (r *memorySessions) FindSessionByCipher(ctx context.Context, tokenCipher string) (*auth.RefreshSession, error) {
	s, ok := r.sessions[tokenCipher]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &s, nil
}

func (r *memorySessions) DeleteSessionsForUser(ctx context.Context, userID int64) error {
	for cipher, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, cipher)
		}
	}
	return nil
}

func (r *memorySessions) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	var removed int64
	for cipher, s := range r.sessions {
		if s.ExpiresAt.Before(now) {
			delete(r.sessions, cipher)
			removed++
		}
	}
	return removed, nil
}

func (r *memorySessions) UpsertProviderToken(ctx context.Context, userID int64, tokenCipher string, expiresAt time.Time) error {
	return nil
}

type ownerRecorder struct {
	assigned []int64
}

func (o *ownerRecorder) AssignOwnerRole(ctx context.Context, userID int64) error {
	o.assigned = append(o.assigned, userID)
	return nil
}

func fakeDiscord(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.PostFormValue("grant_type") {
		case "authorization_code":
			if r.PostFormValue("code") != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		case "refresh_token":
			if r.PostFormValue("refresh_token") != "provider-refresh" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		default:
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "provider-access",
			"refresh_token": "provider-refresh",
			"expires_in":    604800,
		})
	})
	mux.HandleFunc("/users/@me", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer provider-access", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "discord-123",
			"username":      "tester",
			"email":         "tester@example.com",
			"discriminator": "0001",
			"avatar":        "abc123",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type fixture struct {
	router   http.Handler
	states   *auth.StateStore
	owner    *ownerRecorder
	sessions *memorySessions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	states := auth.NewStateStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 10*time.Minute)

	box, err := auth.NewSecretBox(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	tokens := auth.NewTokenIssuer("signing-secret", 15*time.Minute, time.Hour)

	userService := users.NewService(newMemoryUserRepo())
	sessions := newMemorySessions()
	service := auth.NewService(sessions, userService, box, tokens)

	discord := fakeDiscord(t)
	provider := auth.NewDiscordClient("client-id", "client-secret", "http://localhost/auth/callback").WithBaseURL(discord.URL)

	owner := &ownerRecorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, service, userService, provider, owner, states, false)
	middleware := auth.NewMiddleware(tokens, userService, logger)

	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		handler.MountRoutes(r, middleware.Authenticate)
	})
	return &fixture{router: r, states: states, owner: owner, sessions: sessions}
}

func (f *fixture) signIn(t *testing.T) (string, *http.Cookie) {
	t.Helper()
	state, err := f.states.Issue(context.Background())
	require.NoError(t, err)

	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/auth/callback?code=good-code&state="+state, nil))
	require.Equal(t, http.StatusOK, res.Code)

	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.NotEmpty(t, body.AccessToken)

	var refresh *http.Cookie
	for _, c := range res.Result().Cookies() {
		if c.Name == "refresh_token" {
			refresh = c
		}
	}
	require.NotNil(t, refresh)
	require.True(t, refresh.HttpOnly)
	require.Equal(t, "/auth/refresh", refresh.Path)
	return body.AccessToken, refresh
}

func TestCallbackIssuesTokensAndOwnerRole(t *testing.T) {
	f := newFixture(t)
	_, _ = f.signIn(t)

	// First-ever account gets the owner tier.
	require.Equal(t, []int64{1}, f.owner.assigned)
	require.Len(t, f.sessions.sessions, 1)
}

func TestCallbackRejectsMissingCode(t *testing.T) {
	f := newFixture(t)

	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/auth/callback", nil))
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestCallbackRejectsForgedState(t *testing.T) {
	f := newFixture(t)

	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/auth/callback?code=good-code&state=forged", nil))
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRefreshRotatesCookie(t *testing.T) {
	f := newFixture(t)
	access, cookie := f.signIn(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(cookie)
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.NotEmpty(t, body.AccessToken)
	require.NotEqual(t, access, body.AccessToken)

	// The old envelope was rotated out.
	replay := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	replay.AddCookie(cookie)
	replayRes := httptest.NewRecorder()
	f.router.ServeHTTP(replayRes, replay)
	require.Equal(t, http.StatusUnauthorized, replayRes.Code)
}

func TestRefreshWithoutCookie(t *testing.T) {
	f := newFixture(t)

	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/auth/refresh", nil))
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLogoutRevokesSessions(t *testing.T) {
	f := newFixture(t)
	access, cookie := f.signIn(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)
	require.Empty(t, f.sessions.sessions)

	// The refresh credential died with the sessions.
	refresh := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	refresh.AddCookie(cookie)
	refreshRes := httptest.NewRecorder()
	f.router.ServeHTTP(refreshRes, refresh)
	require.Equal(t, http.StatusUnauthorized, refreshRes.Code)
}

func TestLogoutRequiresToken(t *testing.T) {
	f := newFixture(t)

	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestAuthenticateRejectsUnknownSubject(t *testing.T) {
	f := newFixture(t)

	// A well-signed token whose subject never synced into the directory fails
	// exactly like a bad signature.
	issuer := auth.NewTokenIssuer("signing-secret", 15*time.Minute, time.Hour)
	token, err := issuer.MintAccess("ghost")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

type failingUserRepo struct {
	*memoryUserRepo
}

func (r *failingUserRepo) FindByExternalID(ctx context.Context, externalID string) (*users.User, error) {
	return nil, errors.New("directory offline")
}

func TestAuthenticateStorageFailureIsNotUnauthorized(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewTokenIssuer("signing-secret", 15*time.Minute, time.Hour)
	middleware := auth.NewMiddleware(tokens, users.NewService(&failingUserRepo{newMemoryUserRepo()}), logger)

	token, err := tokens.MintAccess("discord-123")
	require.NoError(t, err)

	r := chi.NewRouter()
	r.With(middleware.Authenticate).Get("/protected", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	// A directory outage is a server fault, not a credential problem.
	require.Equal(t, http.StatusInternalServerError, res.Code)
}

func TestRefreshExchangeRedeemsStoredToken(t *testing.T) {
	srv := fakeDiscord(t)
	provider := auth.NewDiscordClient("client-id", "client-secret", "http://localhost/auth/callback").WithBaseURL(srv.URL)

	grant, err := provider.RefreshExchange(context.Background(), "provider-refresh")
	require.NoError(t, err)
	require.Equal(t, "discord-123", grant.Profile.ExternalID)
	require.Equal(t, "provider-refresh", grant.RefreshToken)
}

func TestRefreshExchangeRejectsUnknownToken(t *testing.T) {
	srv := fakeDiscord(t)
	provider := auth.NewDiscordClient("client-id", "client-secret", "http://localhost/auth/callback").WithBaseURL(srv.URL)

	_, err := provider.RefreshExchange(context.Background(), "revoked")
	require.Error(t, err)
}

func TestAuthenticateRejectsMalformedHeader(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Token abc")
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}
