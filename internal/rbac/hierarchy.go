package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/warden-auth/warden/internal/platform/httpx"
	"github.com/warden-auth/warden/internal/shared"
)

// RolePermissionView bundles the two projections the role-permission editor
// needs: every effect row on the target role, and the subset of all
// permissions the acting user is entitled to toggle there.
type RolePermissionView struct {
	RolePermissions []RolePermission `json:"role_permissions"`
	Editable        []Permission     `json:"editable_permissions"`
}

// EffectivePriority returns the minimum priority across the user's roles.
// A user with no roles has no privilege at all and gets shared.ErrNoRoles.
func (s *Service) EffectivePriority(ctx context.Context, userID int64) (int, error) {
	roles, err := s.repo.ListUserRoles(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(roles) == 0 {
		return 0, shared.ErrNoRoles
	}
	min := roles[0].Priority
	for _, role := range roles[1:] {
		if role.Priority < min {
			min = role.Priority
		}
	}
	return min, nil
}

// CheckRoleHierarchy resolves the target role and fails unless the actor
// strictly outranks it. The resolved role is returned for the caller's use.
func (s *Service) CheckRoleHierarchy(ctx context.Context, actorID, roleID int64) (Role, error) {
	target, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Role{}, fmt.Errorf("role %d: %w", roleID, httpx.ErrNotFound)
		}
		return Role{}, err
	}
	actor, err := s.EffectivePriority(ctx, actorID)
	if err != nil {
		if errors.Is(err, shared.ErrNoRoles) {
			return Role{}, fmt.Errorf("actor holds no roles: %w", httpx.ErrForbidden)
		}
		return Role{}, err
	}
	if actor >= target.Priority {
		return Role{}, fmt.Errorf("insufficient privilege for this role: %w", httpx.ErrForbidden)
	}
	return target, nil
}

// CheckProposedPriority applies the strict hierarchy rule against a priority
// value proposed on role create or update.
func (s *Service) CheckProposedPriority(ctx context.Context, actorID int64, priority int) error {
	actor, err := s.EffectivePriority(ctx, actorID)
	if err != nil {
		if errors.Is(err, shared.ErrNoRoles) {
			return fmt.Errorf("actor holds no roles: %w", httpx.ErrForbidden)
		}
		return err
	}
	if actor >= priority {
		return fmt.Errorf("insufficient privilege for this priority: %w", httpx.ErrForbidden)
	}
	return nil
}

// CheckMembershipHierarchy is the membership variant of the role check: the
// strict rule applies, except that an owner-tier actor may act on a role at or
// above their own tier, so owners can add other owners.
func (s *Service) CheckMembershipHierarchy(ctx context.Context, actorID, roleID int64) (Role, error) {
	target, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Role{}, fmt.Errorf("role %d: %w", roleID, httpx.ErrNotFound)
		}
		return Role{}, err
	}
	actor, err := s.EffectivePriority(ctx, actorID)
	if err != nil {
		if errors.Is(err, shared.ErrNoRoles) {
			return Role{}, fmt.Errorf("actor holds no roles: %w", httpx.ErrForbidden)
		}
		return Role{}, err
	}
	if actor >= target.Priority && actor != PriorityOwner {
		return Role{}, fmt.Errorf("insufficient privilege for this role: %w", httpx.ErrForbidden)
	}
	return target, nil
}

// CheckPermissionHierarchy resolves the named permission and requires the
// actor to strictly outrank it before it may be attached to or detached from
// any role.
func (s *Service) CheckPermissionHierarchy(ctx context.Context, actorID, permissionID int64) (Permission, error) {
	if permissionID == 0 {
		return Permission{}, fmt.Errorf("permission id is required: %w", httpx.ErrValidation)
	}
	perm, err := s.repo.GetPermission(ctx, permissionID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Permission{}, fmt.Errorf("permission %d: %w", permissionID, httpx.ErrNotFound)
		}
		return Permission{}, err
	}
	actor, err := s.EffectivePriority(ctx, actorID)
	if err != nil {
		if errors.Is(err, shared.ErrNoRoles) {
			return Permission{}, fmt.Errorf("actor holds no roles: %w", httpx.ErrForbidden)
		}
		return Permission{}, err
	}
	if actor >= perm.Priority {
		return Permission{}, fmt.Errorf("insufficient privilege to set this permission: %w", httpx.ErrForbidden)
	}
	return perm, nil
}

// EnrichRolePermissions builds the editor view for a target role. The actor
// may always view the attached rows; the editable subset is empty when the
// target role sits at or above the actor's own tier.
func (s *Service) EnrichRolePermissions(ctx context.Context, actorID, roleID int64) (RolePermissionView, error) {
	target, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return RolePermissionView{}, fmt.Errorf("role %d: %w", roleID, httpx.ErrNotFound)
		}
		return RolePermissionView{}, err
	}

	attached, err := s.repo.ListRolePermissions(ctx, roleID)
	if err != nil {
		return RolePermissionView{}, err
	}
	view := RolePermissionView{
		RolePermissions: attached,
		Editable:        []Permission{},
	}

	actor, err := s.EffectivePriority(ctx, actorID)
	if err != nil {
		if errors.Is(err, shared.ErrNoRoles) {
			return view, nil
		}
		return RolePermissionView{}, err
	}
	if target.Priority <= actor {
		return view, nil
	}

	editable, err := s.repo.ListGrantablePermissions(ctx, actor, target.Priority)
	if err != nil {
		return RolePermissionView{}, err
	}
	if editable != nil {
		view.Editable = editable
	}
	return view, nil
}
