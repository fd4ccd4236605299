package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgAuth "github.com/grigobio237-eng/Youniqle-sub002/pkg/auth"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// IdentityFromContext returns the authenticated caller, if Auth ran and the
// user id parses.
func IdentityFromContext(ctx context.Context) (pkgAuth.Identity, bool) {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil || id == uuid.Nil {
		return pkgAuth.Identity{}, false
	}
	role := enums.Role(RoleFromContext(ctx))
	if !role.IsValid() {
		return pkgAuth.Identity{}, false
	}
	return pkgAuth.Identity{UserID: id, Role: role}, true
}

// WithIdentity seeds the context the same way Auth does.
func WithIdentity(ctx context.Context, identity pkgAuth.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, identity.UserID.String())
	return context.WithValue(ctx, ctxRole, string(identity.Role))
}
