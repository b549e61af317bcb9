package auth

import (
	"context"
	"errors"
)

type contextKey string

const identityContextKey contextKey = "identity"

// ErrNoIdentity is returned when a context carries no authenticated identity.
var ErrNoIdentity = errors.New("no authenticated identity in context")

// WithIdentity attaches an authenticated identity to the context. The
// identity is scoped to that context only; nothing is kept server-side.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext extracts the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (*Identity, error) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, ErrNoIdentity
	}
	return identity, nil
}
