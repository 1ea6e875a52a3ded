package auth

import (
	"context"
	"strings"
)

// Role constants used throughout the API when checking authorisation boundaries.
const (
	RoleClient = "client"
	RoleAgent  = "agent"
	RoleAdmin  = "admin"
)

// Identity captures the authenticated principal attached to every request.
type Identity struct {
	ID    string
	Email string
	Role  string
}

type contextKey string

const identityContextKey contextKey = "github.com/teranga-app/api/internal/platform/auth/identity"

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

// NormaliseRole lowercases and validates a role string, returning the fallback
// for unknown values.
func NormaliseRole(role, fallback string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	switch role {
	case RoleClient, RoleAgent, RoleAdmin:
		return role
	default:
		return fallback
	}
}
