package middleware

import (
	"net/http"
	"strconv"

	"github.com/platinummonkey/barbell/pkg/auth"
	"github.com/platinummonkey/barbell/pkg/contextkeys"
	"github.com/platinummonkey/barbell/pkg/httputil"
	"github.com/platinummonkey/barbell/pkg/observability"
)

// AuthMiddleware resolves the request's session into an auth context
type AuthMiddleware struct {
	resolver   *auth.SessionResolver
	cookieName string
	optional   bool // If true, anonymous requests continue with an empty auth context
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(resolver *auth.SessionResolver, cookieName string, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		resolver:   resolver,
		cookieName: cookieName,
		optional:   optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		creds := auth.CredentialsFromRequest(r, m.cookieName)
		principal := m.resolver.Resolve(ctx, creds)

		if principal == nil && !m.optional {
			observability.FromContext(ctx).WithField("path", r.URL.Path).Debug("unauthenticated request rejected")
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}

		authCtx := &auth.AuthContext{Principal: principal}
		ctx = contextkeys.WithAuth(ctx, authCtx)
		if principal != nil {
			ctx = contextkeys.WithUserID(ctx, strconv.FormatInt(principal.UserID, 10))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	authCtx, ok := r.Context().Value(contextkeys.AuthKey).(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}
