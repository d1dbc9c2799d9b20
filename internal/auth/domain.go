package auth

import "time"

// RefreshSession is the server-side record of an outstanding refresh
// credential. Only the ciphertext of the secret is stored; the plaintext
// lives exclusively inside the signed envelope held by the client.
type RefreshSession struct {
	ID          int64
	UserID      int64
	TokenCipher string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// ProviderToken is the stored, encrypted refresh credential for the external
// identity provider, redeemed periodically to re-sync drifted profiles.
type ProviderToken struct {
	UserID      int64
	TokenCipher string
	ExpiresAt   time.Time
}

// TokenPair is what a successful issue or rotation hands back to the client.
type TokenPair struct {
	AccessToken      string
	RefreshEnvelope  string
	RefreshExpiresAt time.Time
}
