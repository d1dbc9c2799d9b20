package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warden-auth/warden/internal/platform/httpx"
	"github.com/warden-auth/warden/internal/shared"
)

func newPermission(id int64, name string, priority int) Permission {
	now := time.Now()
	return Permission{ID: id, Name: name, Priority: priority, CreatedAt: now, UpdatedAt: now}
}

func TestEffectivePriority(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addRole(newRole(1, "Admin", 1))
	dir.addRole(newRole(2, "User", 2))
	dir.assign(5, 2)
	dir.assign(5, 1)
	svc := NewService(dir)

	priority, err := svc.EffectivePriority(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, 1, priority)
}

func TestEffectivePriorityNoRoles(t *testing.T) {
	svc := NewService(newMemoryDirectory())

	_, err := svc.EffectivePriority(context.Background(), 5)
	require.ErrorIs(t, err, shared.ErrNoRoles)
}

func TestCheckRoleHierarchy(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addRole(newRole(1, "Admin", 1))
	dir.addRole(newRole(2, "Moderator", 2))
	dir.assign(5, 1)
	svc := NewService(dir)

	// Unknown role surfaces as not found.
	_, err := svc.CheckRoleHierarchy(context.Background(), 5, 99)
	require.ErrorIs(t, err, httpx.ErrNotFound)

	// Equal tier is not strictly above.
	_, err = svc.CheckRoleHierarchy(context.Background(), 5, 1)
	require.ErrorIs(t, err, httpx.ErrForbidden)

	target, err := svc.CheckRoleHierarchy(context.Background(), 5, 2)
	require.NoError(t, err)
	require.Equal(t, "Moderator", target.Name)
}

func TestCheckRoleHierarchyActorWithoutRoles(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addRole(newRole(2, "Moderator", 2))
	svc := NewService(dir)

	_, err := svc.CheckRoleHierarchy(context.Background(), 5, 2)
	require.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestCheckProposedPriority(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addRole(newRole(1, "Admin", 1))
	dir.assign(5, 1)
	svc := NewService(dir)

	require.NoError(t, svc.CheckProposedPriority(context.Background(), 5, 2))
	require.ErrorIs(t, svc.CheckProposedPriority(context.Background(), 5, 1), httpx.ErrForbidden)
	require.ErrorIs(t, svc.CheckProposedPriority(context.Background(), 5, 0), httpx.ErrForbidden)
}

func TestCheckMembershipHierarchyOwnerException(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addRole(newRole(1, "Owner", PriorityOwner))
	dir.addRole(newRole(2, "Admin", 1))
	dir.assign(5, 1)
	dir.assign(9, 2)
	svc := NewService(dir)

	// An owner may act on the owner-tier role itself.
	target, err := svc.CheckMembershipHierarchy(context.Background(), 5, 1)
	require.NoError(t, err)
	require.Equal(t, PriorityOwner, target.Priority)

	// A non-owner still needs to strictly outrank the target role.
	_, err = svc.CheckMembershipHierarchy(context.Background(), 9, 2)
	require.ErrorIs(t, err, httpx.ErrForbidden)

	target, err = svc.CheckMembershipHierarchy(context.Background(), 5, 2)
	require.NoError(t, err)
	require.Equal(t, "Admin", target.Name)
}

func TestCheckPermissionHierarchy(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addRole(newRole(1, "Admin", 1))
	dir.assign(5, 1)
	dir.perms[10] = newPermission(10, "manage_adminRoles", 1)
	dir.perms[11] = newPermission(11, "view_account", 3)
	svc := NewService(dir)

	_, err := svc.CheckPermissionHierarchy(context.Background(), 5, 0)
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CheckPermissionHierarchy(context.Background(), 5, 99)
	require.ErrorIs(t, err, httpx.ErrNotFound)

	_, err = svc.CheckPermissionHierarchy(context.Background(), 5, 10)
	require.ErrorIs(t, err, httpx.ErrForbidden)

	perm, err := svc.CheckPermissionHierarchy(context.Background(), 5, 11)
	require.NoError(t, err)
	require.Equal(t, "view_account", perm.Name)
}

func TestEnrichRolePermissions(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addRole(newRole(1, "Admin", 1))
	dir.addRole(newRole(2, "User", 2))
	dir.assign(5, 1)
	dir.perms[10] = newPermission(10, "manage_adminRoles", 1)
	dir.perms[11] = newPermission(11, "view_account", 3)
	dir.rolePerms[2] = []RolePermission{{RoleID: 2, PermissionID: 11, Permission: "view_account", Priority: 3, Effect: EffectAllow}}
	svc := NewService(dir)

	view, err := svc.EnrichRolePermissions(context.Background(), 5, 2)
	require.NoError(t, err)
	require.Len(t, view.RolePermissions, 1)
	require.Len(t, view.Editable, 1)
	require.Equal(t, "view_account", view.Editable[0].Name)
}

func TestEnrichRolePermissionsViewOnly(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addRole(newRole(1, "Admin", 1))
	dir.addRole(newRole(2, "Peer", 1))
	dir.assign(5, 1)
	dir.rolePerms[2] = []RolePermission{{RoleID: 2, PermissionID: 11, Permission: "view_account", Priority: 3, Effect: EffectAllow}}
	svc := NewService(dir)

	// Target role at the actor's own tier: visible but nothing editable.
	view, err := svc.EnrichRolePermissions(context.Background(), 5, 2)
	require.NoError(t, err)
	require.Len(t, view.RolePermissions, 1)
	require.Empty(t, view.Editable)

	// An actor with no roles at all gets the same view-only result.
	view, err = svc.EnrichRolePermissions(context.Background(), 77, 2)
	require.NoError(t, err)
	require.Len(t, view.RolePermissions, 1)
	require.Empty(t, view.Editable)
}

func TestEnrichRolePermissionsUnknownRole(t *testing.T) {
	svc := NewService(newMemoryDirectory())

	_, err := svc.EnrichRolePermissions(context.Background(), 5, 42)
	require.True(t, errors.Is(err, httpx.ErrNotFound))
}
