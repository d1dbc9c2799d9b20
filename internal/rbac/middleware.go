package rbac

import (
	"net/http"

	"log/slog"

	"github.com/warden-auth/warden/internal/platform/httpx"
	"github.com/warden-auth/warden/internal/shared"
)

// Middleware wires authorization gates for HTTP handlers. Gates run after
// auth.Middleware has attached the verified identity to the request context.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireAll ensures the current user passes every required permission, in
// order: a deny on any required permission fails first, then a missing allow.
// Owner-tier users bypass the check entirely.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			identity := shared.IdentityFromContext(r.Context())
			if identity == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "user not authenticated")
				return
			}
			grants, err := m.Service.Resolve(r.Context(), identity.UserID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require all", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if name, ok := grants.PermitsAll(perms); !ok {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing permission: "+name)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny ensures the current user holds at least one of the candidate
// permissions with an unambiguous allow. A deny on one candidate does not
// block success through another.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			identity := shared.IdentityFromContext(r.Context())
			if identity == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "user not authenticated")
				return
			}
			grants, err := m.Service.Resolve(r.Context(), identity.UserID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require any", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !grants.PermitsAny(perms) {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
