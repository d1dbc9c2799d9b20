package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/warden-auth/warden/internal/platform/httpx"
	"github.com/warden-auth/warden/internal/users"
)

// refreshSecretBytes is the entropy of a refresh secret before hex encoding.
const refreshSecretBytes = 64

// UserDirectory is the slice of the user service the issuer needs.
type UserDirectory interface {
	FindByID(ctx context.Context, id int64) (*users.User, error)
}

// Service manages the access/refresh credential lifecycle.
type Service struct {
	repo   Repository
	users  UserDirectory
	box    *SecretBox
	tokens *TokenIssuer
}

// NewService constructs a new Service.
func NewService(repo Repository, directory UserDirectory, box *SecretBox, tokens *TokenIssuer) *Service {
	return &Service{repo: repo, users: directory, box: box, tokens: tokens}
}

// Issue mints a fresh token pair for the user. Any prior refresh session is
// deleted first so at most one stays active per user.
func (s *Service) Issue(ctx context.Context, user *users.User) (*TokenPair, error) {
	secret, err := newRefreshSecret()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().Add(s.tokens.RefreshTTL())

	if err := s.repo.DeleteSessionsForUser(ctx, user.ID); err != nil {
		return nil, err
	}
	if err := s.repo.CreateSession(ctx, user.ID, s.box.Seal(secret), expiresAt); err != nil {
		return nil, err
	}

	access, err := s.tokens.MintAccess(user.ExternalID)
	if err != nil {
		return nil, err
	}
	envelope, err := s.tokens.MintEnvelope(secret)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshEnvelope: envelope, RefreshExpiresAt: expiresAt}, nil
}

// Rotate redeems a refresh envelope for a fresh token pair. The secret is
// rotated on every use: the presented session is superseded by a new one.
// Every failure mode surfaces as Unauthorized and never creates or renews a
// session.
func (s *Service) Rotate(ctx context.Context, envelope string) (*TokenPair, error) {
	secret, err := s.tokens.OpenEnvelope(envelope)
	if err != nil {
		return nil, fmt.Errorf("refresh envelope rejected: %w", httpx.ErrUnauthorized)
	}

	session, err := s.repo.FindSessionByCipher(ctx, s.box.Seal(secret))
	if err != nil {
		return nil, fmt.Errorf("refresh session not found: %w", httpx.ErrUnauthorized)
	}
	if session.ExpiresAt.Before(time.Now()) {
		// Lazy expiry: the sweep may not have run yet.
		_ = s.repo.DeleteSessionsForUser(ctx, session.UserID)
		return nil, fmt.Errorf("refresh session expired: %w", httpx.ErrUnauthorized)
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("refresh subject unknown: %w", httpx.ErrUnauthorized)
	}
	return s.Issue(ctx, user)
}

// Revoke deletes every refresh session the subject owns. Subsequent rotations
// fail even with a previously valid envelope.
func (s *Service) Revoke(ctx context.Context, userID int64) error {
	return s.repo.DeleteSessionsForUser(ctx, userID)
}

// StoreProviderToken persists the external provider's refresh token encrypted
// with the same secret box.
func (s *Service) StoreProviderToken(ctx context.Context, userID int64, token string, ttl time.Duration) error {
	if token == "" {
		return nil
	}
	return s.repo.UpsertProviderToken(ctx, userID, s.box.Seal(token), time.Now().Add(ttl))
}

func newRefreshSecret() (string, error) {
	buf := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate refresh secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
