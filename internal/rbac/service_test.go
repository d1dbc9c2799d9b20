package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warden-auth/warden/internal/shared"
)

type memoryDirectory struct {
	userRoles  map[int64][]Role
	roleGrants map[int64][]EffectGrant
	roles      map[int64]Role
	perms      map[int64]Permission
	rolePerms  map[int64][]RolePermission
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{
		userRoles:  make(map[int64][]Role),
		roleGrants: make(map[int64][]EffectGrant),
		roles:      make(map[int64]Role),
		perms:      make(map[int64]Permission),
		rolePerms:  make(map[int64][]RolePermission),
	}
}

func (d *memoryDirectory) addRole(role Role) {
	d.roles[role.ID] = role
}

func (d *memoryDirectory) assign(userID int64, roleID int64) {
	d.userRoles[userID] = append(d.userRoles[userID], d.roles[roleID])
}

func (d *memoryDirectory) grant(roleID int64, permission, effect string) {
	d.roleGrants[roleID] = append(d.roleGrants[roleID], EffectGrant{Permission: permission, Effect: effect})
}

func (d *memoryDirectory) ListUserRoles(ctx context.Context, userID int64) ([]Role, error) {
	return d.userRoles[userID], nil
}

func (d *memoryDirectory) ListEffectGrants(ctx context.Context, roleIDs []int64) ([]EffectGrant, error) {
	var out []EffectGrant
	for _, id := range roleIDs {
		out = append(out, d.roleGrants[id]...)
	}
	return out, nil
}

func (d *memoryDirectory) GetRole(ctx context.Context, roleID int64) (Role, error) {
	role, ok := d.roles[roleID]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (d *memoryDirectory) GetPermission(ctx context.Context, permissionID int64) (Permission, error) {
	perm, ok := d.perms[permissionID]
	if !ok {
		return Permission{}, shared.ErrNotFound
	}
	return perm, nil
}

func (d *memoryDirectory) ListRolePermissions(ctx context.Context, roleID int64) ([]RolePermission, error) {
	return d.rolePerms[roleID], nil
}

func (d *memoryDirectory) ListPermissions(ctx context.Context) ([]Permission, error) {
	var out []Permission
	for _, p := range d.perms {
		out = append(out, p)
	}
	return out, nil
}

func (d *memoryDirectory) ListGrantablePermissions(ctx context.Context, actorPriority, rolePriority int) ([]Permission, error) {
	var out []Permission
	for _, p := range d.perms {
		if p.Priority > actorPriority && p.Priority >= rolePriority {
			out = append(out, p)
		}
	}
	return out, nil
}

var _ RepositoryPort = (*memoryDirectory)(nil)

func newRole(id int64, name string, priority int) Role {
	now := time.Now()
	return Role{ID: id, Name: name, Priority: priority, CreatedAt: now, UpdatedAt: now}
}

func TestResolveNoRoles(t *testing.T) {
	dir := newMemoryDirectory()
	svc := NewService(dir)

	grants, err := svc.Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, grants.IsOwner)
	require.Empty(t, grants.Allowed)
	require.Empty(t, grants.Denied)
	require.False(t, grants.PermitsAny([]string{"view_account"}))
}

func TestResolveOwnerShortCircuits(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addRole(newRole(1, "Owner", PriorityOwner))
	dir.assign(7, 1)
	dir.grant(1, "view_account", EffectDeny)
	svc := NewService(dir)

	grants, err := svc.Resolve(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, grants.IsOwner)
	require.Empty(t, grants.Allowed)
	require.Empty(t, grants.Denied)

	// Explicit denies on an owner's roles never apply.
	_, ok := grants.PermitsAll([]string{"view_account", "manage_allUsers"})
	require.True(t, ok)
}

func TestResolvePartitionsEffects(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addRole(newRole(1, "Moderator", 1))
	dir.addRole(newRole(2, "User", 2))
	dir.assign(7, 1)
	dir.assign(7, 2)
	dir.grant(1, "manage_userRoles", EffectAllow)
	dir.grant(1, "view_account", EffectAllow)
	dir.grant(2, "view_account", EffectDeny)
	svc := NewService(dir)

	grants, err := svc.Resolve(context.Background(), 7)
	require.NoError(t, err)
	require.False(t, grants.IsOwner)
	require.Contains(t, grants.Allowed, "view_account")
	require.Contains(t, grants.Denied, "view_account")
	require.Contains(t, grants.Allowed, "manage_userRoles")

	// Deny wins when the same name sits in both sets.
	name, ok := grants.PermitsAll([]string{"view_account"})
	require.False(t, ok)
	require.Equal(t, "view_account", name)

	// An OR check steps over the denied candidate.
	require.True(t, grants.PermitsAny([]string{"view_account", "manage_userRoles"}))
	require.False(t, grants.PermitsAny([]string{"view_account"}))
}

func TestPermitsAllRequiresEveryName(t *testing.T) {
	grants := Grants{
		Allowed: map[string]struct{}{"a": {}, "b": {}},
		Denied:  map[string]struct{}{},
	}
	_, ok := grants.PermitsAll([]string{"a", "b"})
	require.True(t, ok)

	name, ok := grants.PermitsAll([]string{"a", "c"})
	require.False(t, ok)
	require.Equal(t, "c", name)
}

func TestHasPermission(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addRole(newRole(1, "Viewer", 2))
	dir.assign(3, 1)
	dir.grant(1, "view_allUsers", EffectAllow)
	svc := NewService(dir)

	ok, err := svc.HasPermission(context.Background(), 3, []string{"manage_allUsers", "view_allUsers"})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.HasPermission(context.Background(), 3, []string{"manage_allUsers"})
	require.NoError(t, err)
	require.False(t, ok)
}
