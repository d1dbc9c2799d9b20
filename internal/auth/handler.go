package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warden-auth/warden/internal/platform/httpx"
	"github.com/warden-auth/warden/internal/shared"
	"github.com/warden-auth/warden/internal/users"
)

// refreshCookie is scoped to the rotation endpoint so the envelope is never
// sent with ordinary API requests.
const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/auth/refresh"
)

// OwnerAssigner grants the owner role to the very first account to sign in.
type OwnerAssigner interface {
	AssignOwnerRole(ctx context.Context, userID int64) error
}

// Handler wires HTTP endpoints for the sign-in and credential flows.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	users    *users.Service
	provider *DiscordClient
	owner    OwnerAssigner
	states   *StateStore
	secure   bool
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, userService *users.Service, provider *DiscordClient, owner OwnerAssigner, states *StateStore, secureCookies bool) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		users:    userService,
		provider: provider,
		owner:    owner,
		states:   states,
		secure:   secureCookies,
	}
}

// MountRoutes registers auth routes on the provided router. Logout sits
// behind the access-token middleware; everything else is public.
func (h *Handler) MountRoutes(r chi.Router, authenticate func(http.Handler) http.Handler) {
	r.Get("/login", h.login)
	r.Get("/callback", h.callback)
	r.Post("/callback", h.callback)
	r.Post("/refresh", h.refresh)
	r.With(authenticate).Post("/logout", h.logout)
}

type tokenBody struct {
	AccessToken string `json:"access_token"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	state, err := h.states.Issue(r.Context())
	if err != nil {
		h.logger.Error("issue oauth state", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	http.Redirect(w, r, h.provider.AuthorizeURL(state), http.StatusTemporaryRedirect)
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "authorization code is required")
		return
	}
	if err := h.states.Validate(r.Context(), r.URL.Query().Get("state")); err != nil {
		httpx.RespondError(w, err)
		return
	}

	grant, err := h.provider.ExchangeCode(r.Context(), code)
	if err != nil {
		h.logger.Error("discord code exchange", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Provider Error", "identity provider rejected the sign-in")
		return
	}

	user, firstUser, err := h.users.Sync(r.Context(), grant.Profile)
	if err != nil {
		h.logger.Error("sync user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if firstUser {
		if err := h.owner.AssignOwnerRole(r.Context(), user.ID); err != nil {
			h.logger.Error("assign owner role", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
	}

	if err := h.service.StoreProviderToken(r.Context(), user.ID, grant.RefreshToken, grant.ExpiresIn); err != nil {
		h.logger.Warn("store provider token", slog.Any("error", err))
	}

	pair, err := h.service.Issue(r.Context(), user)
	if err != nil {
		h.logger.Error("issue tokens", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.setRefreshCookie(w, pair)
	httpx.JSON(w, http.StatusOK, tokenBody{AccessToken: pair.AccessToken})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	pair, err := h.service.Rotate(r.Context(), cookie.Value)
	if err != nil {
		h.clearRefreshCookie(w)
		httpx.RespondError(w, err)
		return
	}
	h.setRefreshCookie(w, pair)
	httpx.JSON(w, http.StatusOK, tokenBody{AccessToken: pair.AccessToken})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if err := h.service.Revoke(r.Context(), identity.UserID); err != nil {
		h.logger.Error("revoke sessions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, pair *TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    pair.RefreshEnvelope,
		Path:     refreshCookiePath,
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
