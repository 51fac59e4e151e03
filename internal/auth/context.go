// Package auth resolves the identity of API callers.
package auth

import (
	"context"

	"github.com/inkpost/inkpost/internal/model"
)

type contextKey string

const principalContextKey contextKey = "principal"

// ContextWithPrincipal stores the resolved caller in ctx.
// A nil principal leaves the request anonymous.
func ContextWithPrincipal(ctx context.Context, principal *model.Principal) context.Context {
	if principal == nil {
		return ctx
	}
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext returns the caller, or nil for anonymous requests.
func PrincipalFromContext(ctx context.Context) *model.Principal {
	principal, ok := ctx.Value(principalContextKey).(*model.Principal)
	if !ok {
		return nil
	}
	return principal
}

// UserIDFromContext returns the caller's user ID, or "" when anonymous.
func UserIDFromContext(ctx context.Context) string {
	principal := PrincipalFromContext(ctx)
	if principal == nil {
		return ""
	}
	return principal.ID
}
