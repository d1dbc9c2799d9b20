package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warden-auth/warden/internal/platform/httpx"
	"github.com/warden-auth/warden/internal/rbac"
	"github.com/warden-auth/warden/internal/shared"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for role administration.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all roles ordered by priority then name.
func (r *Repository) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, priority, created_at, updated_at FROM roles ORDER BY priority, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []rbac.Role
	for rows.Next() {
		var role rbac.Role
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

// FindOwnerRole returns the oldest priority-0 role.
func (r *Repository) FindOwnerRole(ctx context.Context) (rbac.Role, error) {
	var role rbac.Role
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, priority, created_at, updated_at
		FROM roles WHERE priority = $1
		ORDER BY id LIMIT 1`, rbac.PriorityOwner).
		Scan(&role.ID, &role.Name, &role.Priority, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbac.Role{}, shared.ErrNotFound
		}
		return rbac.Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, name string, priority int) (rbac.Role, error) {
	var role rbac.Role
	err := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, priority, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		RETURNING id, name, priority, created_at, updated_at`, name, priority).
		Scan(&role.ID, &role.Name, &role.Priority, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return rbac.Role{}, mapPGError(err)
	}
	return role, nil
}

// UpdateRole updates name and priority of an existing role.
func (r *Repository) UpdateRole(ctx context.Context, id int64, name string, priority int) (rbac.Role, error) {
	var role rbac.Role
	err := r.pool.QueryRow(ctx, `
		UPDATE roles SET name = $2, priority = $3, updated_at = now()
		WHERE id = $1
		RETURNING id, name, priority, created_at, updated_at`, id, name, priority).
		Scan(&role.ID, &role.Name, &role.Priority, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbac.Role{}, shared.ErrNotFound
		}
		return rbac.Role{}, mapPGError(err)
	}
	return role, nil
}

// DeleteRole removes the role together with its permission rows and
// memberships.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE role_id = $1`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListMembers returns every user holding the role.
func (r *Repository) ListMembers(ctx context.Context, roleID int64) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.external_id, u.username, u.avatar, ur.created_at
		FROM user_roles ur
		JOIN users u ON u.id = ur.user_id
		WHERE ur.role_id = $1
		ORDER BY u.username`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.ExternalID, &m.Username, &m.Avatar, &m.AssignedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}

// AddMember assigns the role to a user. Re-adding an existing member reports
// httpx.ErrDuplicate.
func (r *Repository) AddMember(ctx context.Context, roleID, userID int64) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id, role_id) DO NOTHING`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrDuplicate
	}
	return nil
}

// RemoveMember deletes the membership row.
func (r *Repository) RemoveMember(ctx context.Context, roleID, userID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpsertRolePermission attaches the permission to the role or updates the
// effect in place, keeping one row per (role, permission) pair.
func (r *Repository) UpsertRolePermission(ctx context.Context, roleID, permissionID int64, effect string) (rbac.RolePermission, error) {
	var rp rbac.RolePermission
	err := r.pool.QueryRow(ctx, `
		INSERT INTO role_permissions (role_id, permission_id, effect, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (role_id, permission_id) DO UPDATE SET effect = EXCLUDED.effect
		RETURNING role_id, permission_id, effect, created_at`, roleID, permissionID, effect).
		Scan(&rp.RoleID, &rp.PermissionID, &rp.Effect, &rp.CreatedAt)
	if err != nil {
		return rbac.RolePermission{}, err
	}
	return rp, nil
}

// DeleteRolePermission detaches the permission from the role.
func (r *Repository) DeleteRolePermission(ctx context.Context, roleID, permissionID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return httpx.ErrDuplicate
	}
	return err
}
