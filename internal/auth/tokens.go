package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warden-auth/warden/internal/shared"
)

// TokenIssuer signs and verifies the two JWT shapes this service hands out:
// the short-lived access token and the refresh envelope wrapping the
// plaintext refresh secret.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenIssuer constructs a TokenIssuer signing with HS256.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// AccessTTL exposes the configured access token lifetime.
func (t *TokenIssuer) AccessTTL() time.Duration { return t.accessTTL }

// RefreshTTL exposes the configured refresh credential lifetime.
func (t *TokenIssuer) RefreshTTL() time.Duration { return t.refreshTTL }

// Distinct audiences keep the two shapes from standing in for each other even
// though they share a signing key.
const (
	audienceAccess  = "warden:access"
	audienceRefresh = "warden:refresh"
)

type envelopeClaims struct {
	Secret string `json:"tok"`
	jwt.RegisteredClaims
}

// MintAccess signs a stateless access token bound to the subject's stable
// external identity id.
func (t *TokenIssuer) MintAccess(externalID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   externalID,
		Audience:  jwt.ClaimStrings{audienceAccess},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccess checks signature and expiry and returns the subject. Every
// failure mode collapses into shared.ErrInvalidCredentials so callers cannot
// distinguish a bad signature from an expired or missing token.
func (t *TokenIssuer) VerifyAccess(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, t.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audienceAccess))
	if err != nil || !parsed.Valid {
		return "", shared.ErrInvalidCredentials
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", shared.ErrInvalidCredentials
	}
	return claims.Subject, nil
}

// MintEnvelope wraps the plaintext refresh secret in a signed envelope with
// the refresh lifetime.
func (t *TokenIssuer) MintEnvelope(secret string) (string, error) {
	now := time.Now()
	claims := envelopeClaims{
		Secret: secret,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audienceRefresh},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.refreshTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign refresh envelope: %w", err)
	}
	return signed, nil
}

// OpenEnvelope verifies the envelope and extracts the embedded secret.
func (t *TokenIssuer) OpenEnvelope(envelope string) (string, error) {
	parsed, err := jwt.ParseWithClaims(envelope, &envelopeClaims{}, t.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audienceRefresh))
	if err != nil || !parsed.Valid {
		return "", shared.ErrInvalidCredentials
	}
	claims, ok := parsed.Claims.(*envelopeClaims)
	if !ok || claims.Secret == "" {
		return "", shared.ErrInvalidCredentials
	}
	return claims.Secret, nil
}

func (t *TokenIssuer) keyFunc(token *jwt.Token) (interface{}, error) {
	return t.secret, nil
}
