package users

import (
	"context"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	FindByExternalID(ctx context.Context, externalID string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CountUsers(ctx context.Context) (int64, error)
	Upsert(ctx context.Context, p Profile) (*User, error)
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// FindByExternalID resolves a user by provider id.
func (s *Service) FindByExternalID(ctx context.Context, externalID string) (*User, error) {
	return s.repo.FindByExternalID(ctx, externalID)
}

// FindByID resolves a user by internal id.
func (s *Service) FindByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// ListSummaries returns the reduced projection of all users.
func (s *Service) ListSummaries(ctx context.Context) ([]Summary, error) {
	list, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, len(list))
	for i, u := range list {
		summaries[i] = Summary{ID: u.ID, ExternalID: u.ExternalID, Username: u.Username, Avatar: u.Avatar}
	}
	return summaries, nil
}

// Sync upserts the provider profile and reports whether this was the very
// first account in the directory. The caller uses that to seed the owner role.
func (s *Service) Sync(ctx context.Context, p Profile) (*User, bool, error) {
	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, false, err
	}
	user, err := s.repo.Upsert(ctx, p)
	if err != nil {
		return nil, false, err
	}
	return user, count == 0, nil
}
