package auth

import (
	"context"
	"strings"
)

// Identity captures the authenticated principal details projected from a
// verified ID token: a stable subject, a contact address, and group
// memberships. Group membership is the only authorization signal the API
// consults.
type Identity struct {
	UID    string
	Email  string
	Groups []string
}

// HasGroup reports whether the identity belongs to the named group (case-insensitive).
func (i *Identity) HasGroup(group string) bool {
	if i == nil {
		return false
	}
	group = strings.TrimSpace(group)
	if group == "" {
		return false
	}
	for _, g := range i.Groups {
		if strings.EqualFold(g, group) {
			return true
		}
	}
	return false
}

type contextKey string

const identityContextKey contextKey = "github.com/movievault/api/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
