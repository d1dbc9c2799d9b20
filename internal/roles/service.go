package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/warden-auth/warden/internal/platform/httpx"
	"github.com/warden-auth/warden/internal/rbac"
)

// RepositoryPort defines data access methods for role administration.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]rbac.Role, error)
	FindOwnerRole(ctx context.Context) (rbac.Role, error)
	CreateRole(ctx context.Context, name string, priority int) (rbac.Role, error)
	UpdateRole(ctx context.Context, id int64, name string, priority int) (rbac.Role, error)
	DeleteRole(ctx context.Context, id int64) error
	ListMembers(ctx context.Context, roleID int64) ([]Member, error)
	AddMember(ctx context.Context, roleID, userID int64) error
	RemoveMember(ctx context.Context, roleID, userID int64) error
	UpsertRolePermission(ctx context.Context, roleID, permissionID int64, effect string) (rbac.RolePermission, error)
	DeleteRolePermission(ctx context.Context, roleID, permissionID int64) error
}

// Service handles role administration business rules. Hierarchy checks are the
// guard's concern; the rules here are data rules.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	return s.repo.ListRoles(ctx)
}

// CreateRole inserts a new role after validating the priority domain.
func (s *Service) CreateRole(ctx context.Context, name string, priority int) (rbac.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return rbac.Role{}, fmt.Errorf("role name is required: %w", httpx.ErrValidation)
	}
	if !rbac.ValidPriority(priority) {
		return rbac.Role{}, fmt.Errorf("priority must be between %d and %d: %w", rbac.PriorityMin, rbac.PriorityMax, httpx.ErrValidation)
	}
	return s.repo.CreateRole(ctx, name, priority)
}

// UpdateRole updates an existing role after validating the priority domain.
func (s *Service) UpdateRole(ctx context.Context, id int64, name string, priority int) (rbac.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return rbac.Role{}, fmt.Errorf("role name is required: %w", httpx.ErrValidation)
	}
	if !rbac.ValidPriority(priority) {
		return rbac.Role{}, fmt.Errorf("priority must be between %d and %d: %w", rbac.PriorityMin, rbac.PriorityMax, httpx.ErrValidation)
	}
	return s.repo.UpdateRole(ctx, id, name, priority)
}

// DeleteRole removes the role unless it is the owner tier or the base role.
func (s *Service) DeleteRole(ctx context.Context, target rbac.Role) error {
	if target.Priority == rbac.PriorityOwner || target.Name == BaseRoleName {
		return fmt.Errorf("this role cannot be deleted: %w", httpx.ErrForbidden)
	}
	return s.repo.DeleteRole(ctx, target.ID)
}

// ListMembers returns all members of the role.
func (s *Service) ListMembers(ctx context.Context, roleID int64) ([]Member, error) {
	return s.repo.ListMembers(ctx, roleID)
}

// AddMember assigns the role to a user.
func (s *Service) AddMember(ctx context.Context, roleID, userID int64) error {
	return s.repo.AddMember(ctx, roleID, userID)
}

// RemoveMember removes the membership, refusing self-removal from the owner
// tier and any removal from the base role.
func (s *Service) RemoveMember(ctx context.Context, target rbac.Role, userID, actorID int64) error {
	if target.Priority == rbac.PriorityOwner && userID == actorID {
		return fmt.Errorf("you cannot remove yourself from this role: %w", httpx.ErrForbidden)
	}
	if target.Name == BaseRoleName {
		return fmt.Errorf("members cannot be removed from this role: %w", httpx.ErrForbidden)
	}
	return s.repo.RemoveMember(ctx, target.ID, userID)
}

// AssignOwnerRole grants the priority-0 role to the user. Used once, for the
// first account to ever sign in. Already holding the role is not an error.
func (s *Service) AssignOwnerRole(ctx context.Context, userID int64) error {
	owner, err := s.repo.FindOwnerRole(ctx)
	if err != nil {
		return fmt.Errorf("find owner role: %w", err)
	}
	if err := s.repo.AddMember(ctx, owner.ID, userID); err != nil && !errors.Is(err, httpx.ErrDuplicate) {
		return err
	}
	return nil
}

// SetRolePermission attaches or updates a (role, permission) effect.
func (s *Service) SetRolePermission(ctx context.Context, roleID, permissionID int64, effect string) (rbac.RolePermission, error) {
	if effect != rbac.EffectAllow && effect != rbac.EffectDeny {
		return rbac.RolePermission{}, fmt.Errorf("effect must be allow or deny: %w", httpx.ErrValidation)
	}
	return s.repo.UpsertRolePermission(ctx, roleID, permissionID, effect)
}

// RemoveRolePermission detaches a permission from the role.
func (s *Service) RemoveRolePermission(ctx context.Context, roleID, permissionID int64) error {
	return s.repo.DeleteRolePermission(ctx, roleID, permissionID)
}
