package shared

import "context"

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID    int64
	SessionID string
}

type identityContextKey struct{}

// ContextWithIdentity stores the caller identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the caller identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok || id.UserID <= 0 {
		return Identity{}, false
	}
	return id, true
}

// ActorID returns the caller user id, or zero for system actions.
func ActorID(ctx context.Context) int64 {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return 0
	}
	return id.UserID
}
