package shared

import "context"

// Identity describes the authenticated principal attached to a request after
// access-token verification. It is threaded through the call chain as an
// explicit context value rather than mutable request state.
type Identity struct {
	UserID     int64
	ExternalID string
	Username   string
}

type identityContextKey struct{}

// ContextWithIdentity stores the verified identity in context.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the verified identity from context, or nil when
// the request is unauthenticated.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}
