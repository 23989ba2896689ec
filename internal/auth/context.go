package auth

import (
	"context"

	"github.com/tallyapp/tally/internal/model"
)

type identityKey struct{}

// ContextWithAuth returns ctx carrying the authenticated identity.
func ContextWithAuth(ctx context.Context, identity *model.AuthContext) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// AuthFromContext returns the identity set by ContextWithAuth, or nil.
func AuthFromContext(ctx context.Context) *model.AuthContext {
	identity, _ := ctx.Value(identityKey{}).(*model.AuthContext)
	return identity
}

// UserIDFromContext returns the authenticated user's ID, or "" when the
// request is anonymous. Handlers take the expense owner from here and
// never from the request body.
func UserIDFromContext(ctx context.Context) string {
	if identity := AuthFromContext(ctx); identity != nil {
		return identity.UserID
	}
	return ""
}
