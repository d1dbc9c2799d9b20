package rbac

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// Service computes effective permissions and privilege ranks for users.
type Service struct {
	repo    RepositoryPort
	resolve singleflight.Group
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Resolve aggregates the explicit allow and deny grants across all roles the
// user holds. A user without roles gets empty sets; a user holding any
// owner-tier role short-circuits with IsOwner set and empty sets. Concurrent
// resolutions for the same user share one directory round-trip.
func (s *Service) Resolve(ctx context.Context, userID int64) (Grants, error) {
	v, err, _ := s.resolve.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		return s.resolveGrants(ctx, userID)
	})
	if err != nil {
		return Grants{}, err
	}
	return v.(Grants), nil
}

func (s *Service) resolveGrants(ctx context.Context, userID int64) (Grants, error) {
	grants := Grants{
		Allowed: make(map[string]struct{}),
		Denied:  make(map[string]struct{}),
	}

	roles, err := s.repo.ListUserRoles(ctx, userID)
	if err != nil {
		return Grants{}, err
	}
	if len(roles) == 0 {
		return grants, nil
	}

	roleIDs := make([]int64, len(roles))
	for i, role := range roles {
		if role.Priority == PriorityOwner {
			grants.IsOwner = true
			return grants, nil
		}
		roleIDs[i] = role.ID
	}

	effects, err := s.repo.ListEffectGrants(ctx, roleIDs)
	if err != nil {
		return Grants{}, err
	}
	for _, g := range effects {
		switch g.Effect {
		case EffectAllow:
			grants.Allowed[g.Permission] = struct{}{}
		case EffectDeny:
			grants.Denied[g.Permission] = struct{}{}
		}
	}
	return grants, nil
}

// HasPermission is the inline variant of the any-of gate for handler logic.
// It never fails on a plain permission miss, only on directory errors.
func (s *Service) HasPermission(ctx context.Context, userID int64, candidates []string) (bool, error) {
	grants, err := s.Resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	return grants.PermitsAny(candidates), nil
}
