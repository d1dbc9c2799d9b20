package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warden-auth/warden/internal/platform/httpx"
	"github.com/warden-auth/warden/internal/rbac"
	"github.com/warden-auth/warden/internal/shared"
)

// Handler wires HTTP endpoints for the user directory.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   *rbac.Service
	rbac    rbac.Middleware
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard *rbac.Service, mw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, rbac: mw}
}

// MountRoutes registers user routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
	r.With(h.rbac.RequireAll("view_account")).Get("/me", h.currentUser)
	r.Get("/me/priority", h.currentPriority)
}

// listUsers gates inline rather than with middleware because the projection
// depends on which permission the caller holds: managers get the full record,
// viewers the trimmed summary.
func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	canManage, err := h.guard.HasPermission(r.Context(), identity.UserID, []string{"manage_allUsers"})
	if err != nil {
		h.logError("resolve permissions", err)
		httpx.RespondError(w, err)
		return
	}
	if canManage {
		list, err := h.service.ListUsers(r.Context())
		if err != nil {
			h.logError("list users", err)
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, list)
		return
	}

	canView, err := h.guard.HasPermission(r.Context(), identity.UserID, []string{"view_allUsers"})
	if err != nil {
		h.logError("resolve permissions", err)
		httpx.RespondError(w, err)
		return
	}
	if !canView {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	summaries, err := h.service.ListSummaries(r.Context())
	if err != nil {
		h.logError("list user summaries", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summaries)
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	user, err := h.service.FindByID(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logError("load current user", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) currentPriority(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	priority, err := h.guard.EffectivePriority(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNoRoles) {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "user holds no roles")
			return
		}
		h.logError("resolve priority", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"priority": priority})
}

func (h *Handler) logError(msg string, err error) {
	if h.logger != nil {
		h.logger.Error(msg, slog.Any("error", err))
	}
}
