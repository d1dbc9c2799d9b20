package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/warden-auth/warden/internal/shared"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func authedRequest(userID int64) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	identity := &shared.Identity{UserID: userID, ExternalID: "ext", Username: "tester"}
	return req.WithContext(shared.ContextWithIdentity(req.Context(), identity))
}

func TestRequireAllUnauthenticated(t *testing.T) {
	mw := Middleware{Service: NewService(newMemoryDirectory())}
	handler := mw.RequireAll("view_account")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/protected", nil))
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequireAllDenyWins(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addRole(newRole(1, "Mixed", 2))
	dir.assign(7, 1)
	dir.grant(1, "view_account", EffectAllow)
	dir.grant(1, "view_account", EffectDeny)
	mw := Middleware{Service: NewService(dir)}
	handler := mw.RequireAll("view_account")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(7))
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestRequireAllPasses(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addRole(newRole(1, "Viewer", 2))
	dir.assign(7, 1)
	dir.grant(1, "view_account", EffectAllow)
	dir.grant(1, "view_allUsers", EffectAllow)
	mw := Middleware{Service: NewService(dir)}
	handler := mw.RequireAll("view_account", "view_allUsers")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(7))
	require.Equal(t, http.StatusOK, res.Code)
}

func TestRequireAnyDenyDoesNotBlockOtherCandidate(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addRole(newRole(1, "Mixed", 2))
	dir.assign(7, 1)
	dir.grant(1, "view_userRoles", EffectDeny)
	dir.grant(1, "manage_userRoles", EffectAllow)
	mw := Middleware{Service: NewService(dir)}
	handler := mw.RequireAny("view_userRoles", "manage_userRoles")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(7))
	require.Equal(t, http.StatusOK, res.Code)
}

func TestRequireAnyAllCandidatesFail(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addRole(newRole(1, "Restricted", 2))
	dir.assign(7, 1)
	dir.grant(1, "view_userRoles", EffectDeny)
	mw := Middleware{Service: NewService(dir)}
	handler := mw.RequireAny("view_userRoles", "manage_userRoles")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(7))
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestRequireAllOwnerBypass(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addRole(newRole(1, "Owner", PriorityOwner))
	dir.assign(7, 1)
	mw := Middleware{Service: NewService(dir)}
	handler := mw.RequireAll("manage_adminPermissions", "manage_allUsers")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(7))
	require.Equal(t, http.StatusOK, res.Code)
}
