package roles

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warden-auth/warden/internal/platform/httpx"
	"github.com/warden-auth/warden/internal/rbac"
	"github.com/warden-auth/warden/internal/shared"
)

// Handler manages role administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     *rbac.Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard *rbac.Service, mw rbac.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		guard:     guard,
		rbac:      mw,
		validator: validator.New(),
	}
}

// MountRoutes registers role routes. Gates mirror the permission names the
// directory is seeded with.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("view_userRoles", "manage_userRoles", "manage_adminRoles"))
		r.Get("/", h.listRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("manage_userRoles", "manage_adminRoles"))
		r.Post("/", h.createRole)
		r.Put("/{roleID}", h.updateRole)
		r.Delete("/{roleID}", h.deleteRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("view_userMembership", "manage_userMembership", "manage_adminMembership"))
		r.Get("/{roleID}/members", h.listMembers)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("manage_userMembership", "manage_adminMembership"))
		r.Post("/{roleID}/members", h.addMember)
		r.Delete("/{roleID}/members/{userID}", h.removeMember)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("view_userPermissions", "manage_userPermissions", "manage_adminPermissions"))
		r.Get("/{roleID}/permissions", h.listRolePermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("manage_userPermissions", "manage_adminPermissions"))
		r.Post("/{roleID}/permissions", h.setRolePermission)
		r.Delete("/{roleID}/permissions", h.removeRolePermission)
	})
}

type rolePayload struct {
	Name     string `json:"name" validate:"required"`
	Priority int    `json:"priority" validate:"gte=0,lte=3"`
}

type memberPayload struct {
	UserID int64 `json:"user_id" validate:"required"`
}

type rolePermissionPayload struct {
	PermissionID int64  `json:"permission_id" validate:"required"`
	Effect       string `json:"effect" validate:"omitempty,oneof=allow deny"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logError("list roles", err)
		httpx.RespondError(w, err)
		return
	}
	if list == nil {
		list = []rbac.Role{}
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	var payload rolePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.guard.CheckProposedPriority(r.Context(), identity.UserID, payload.Priority); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.CreateRole(r.Context(), payload.Name, payload.Priority)
	if err != nil {
		h.logError("create role", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	roleID, ok := h.roleParam(w, r)
	if !ok {
		return
	}
	var payload rolePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	target, err := h.guard.CheckRoleHierarchy(r.Context(), identity.UserID, roleID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	// Moving a role to a new tier is itself an act on that tier.
	if payload.Priority != target.Priority {
		if err := h.guard.CheckProposedPriority(r.Context(), identity.UserID, payload.Priority); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	role, err := h.service.UpdateRole(r.Context(), roleID, payload.Name, payload.Priority)
	if err != nil {
		h.logError("update role", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	roleID, ok := h.roleParam(w, r)
	if !ok {
		return
	}
	target, err := h.guard.CheckRoleHierarchy(r.Context(), identity.UserID, roleID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteRole(r.Context(), target); err != nil {
		h.logError("delete role", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "role deleted"})
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.roleParam(w, r)
	if !ok {
		return
	}
	members, err := h.service.ListMembers(r.Context(), roleID)
	if err != nil {
		h.logError("list members", err)
		httpx.RespondError(w, err)
		return
	}
	if members == nil {
		members = []Member{}
	}
	httpx.JSON(w, http.StatusOK, members)
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	roleID, ok := h.roleParam(w, r)
	if !ok {
		return
	}
	var payload memberPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id is required")
		return
	}
	if _, err := h.guard.CheckMembershipHierarchy(r.Context(), identity.UserID, roleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.AddMember(r.Context(), roleID, payload.UserID); err != nil {
		h.logError("add member", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"message": "user added to role"})
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	roleID, ok := h.roleParam(w, r)
	if !ok {
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	target, err := h.guard.CheckMembershipHierarchy(r.Context(), identity.UserID, roleID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RemoveMember(r.Context(), target, userID, identity.UserID); err != nil {
		h.logError("remove member", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "user removed from role"})
}

func (h *Handler) listRolePermissions(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	roleID, ok := h.roleParam(w, r)
	if !ok {
		return
	}
	view, err := h.guard.EnrichRolePermissions(r.Context(), identity.UserID, roleID)
	if err != nil {
		h.logError("enrich role permissions", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) setRolePermission(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	roleID, ok := h.roleParam(w, r)
	if !ok {
		return
	}
	var payload rolePermissionPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if _, err := h.guard.CheckRoleHierarchy(r.Context(), identity.UserID, roleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := h.guard.CheckPermissionHierarchy(r.Context(), identity.UserID, payload.PermissionID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rp, err := h.service.SetRolePermission(r.Context(), roleID, payload.PermissionID, payload.Effect)
	if err != nil {
		h.logError("set role permission", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rp)
}

func (h *Handler) removeRolePermission(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	roleID, ok := h.roleParam(w, r)
	if !ok {
		return
	}
	var payload rolePermissionPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if _, err := h.guard.CheckRoleHierarchy(r.Context(), identity.UserID, roleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := h.guard.CheckPermissionHierarchy(r.Context(), identity.UserID, payload.PermissionID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RemoveRolePermission(r.Context(), roleID, payload.PermissionID); err != nil {
		h.logError("remove role permission", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "permission removed"})
}

func (h *Handler) roleParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	roleID, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid role id")
		return 0, false
	}
	return roleID, true
}

func (h *Handler) logError(msg string, err error) {
	if h.logger != nil {
		h.logger.Error(msg, slog.Any("error", err))
	}
}
