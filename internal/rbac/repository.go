package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warden-auth/warden/internal/shared"
)

// EffectGrant is one (permission name, effect) pair contributed by a held role.
type EffectGrant struct {
	Permission string
	Effect     string
}

// RepositoryPort defines the read surface the resolver and hierarchy guard
// need from the identity directory.
type RepositoryPort interface {
	ListUserRoles(ctx context.Context, userID int64) ([]Role, error)
	ListEffectGrants(ctx context.Context, roleIDs []int64) ([]EffectGrant, error)
	GetRole(ctx context.Context, roleID int64) (Role, error)
	GetPermission(ctx context.Context, permissionID int64) (Permission, error)
	ListRolePermissions(ctx context.Context, roleID int64) ([]RolePermission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	ListGrantablePermissions(ctx context.Context, actorPriority, rolePriority int) ([]Permission, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUserRoles returns every role held by the user.
func (r *Repository) ListUserRoles(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.name, r.priority, r.created_at, r.updated_at
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY r.priority`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRoles(rows)
}

// ListEffectGrants returns every (permission name, effect) pair attached to
// any of the given roles.
func (r *Repository) ListEffectGrants(ctx context.Context, roleIDs []int64) ([]EffectGrant, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT p.name, rp.effect
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = ANY($1)`, roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []EffectGrant
	for rows.Next() {
		var g EffectGrant
		if err := rows.Scan(&g.Permission, &g.Effect); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// GetRole fetches a role by id.
func (r *Repository) GetRole(ctx context.Context, roleID int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, priority, created_at, updated_at FROM roles WHERE id = $1`, roleID).
		Scan(&role.ID, &role.Name, &role.Priority, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// GetPermission fetches a permission by id.
func (r *Repository) GetPermission(ctx context.Context, permissionID int64) (Permission, error) {
	var perm Permission
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, priority, created_at, updated_at FROM permissions WHERE id = $1`, permissionID).
		Scan(&perm.ID, &perm.Name, &perm.Priority, &perm.CreatedAt, &perm.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, shared.ErrNotFound
		}
		return Permission{}, err
	}
	return perm, nil
}

// ListRolePermissions returns every effect row attached to the role, with
// permission details for UI consumption.
func (r *Repository) ListRolePermissions(ctx context.Context, roleID int64) ([]RolePermission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rp.role_id, rp.permission_id, p.name, p.priority, rp.effect, rp.created_at
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []RolePermission
	for rows.Next() {
		var rp RolePermission
		if err := rows.Scan(&rp.RoleID, &rp.PermissionID, &rp.Permission, &rp.Priority, &rp.Effect, &rp.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, rp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// ListPermissions returns all permissions ordered by name.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, priority, created_at, updated_at FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// ListGrantablePermissions returns the permissions an actor may toggle on a
// role: strictly below the actor's tier and not above the role's own tier.
func (r *Repository) ListGrantablePermissions(ctx context.Context, actorPriority, rolePriority int) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, priority, created_at, updated_at
		FROM permissions
		WHERE priority > $1 AND priority >= $2
		ORDER BY name`, actorPriority, rolePriority)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func collectRoles(rows pgx.Rows) ([]Role, error) {
	var list []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Priority, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func collectPermissions(rows pgx.Rows) ([]Permission, error) {
	var list []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Name, &perm.Priority, &perm.CreatedAt, &perm.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

var _ RepositoryPort = (*Repository)(nil)
