// Package middleware provides HTTP middleware for session authentication and rate limiting.
//
// # Authentication
//
// AuthMiddleware resolves the session cookie or bearer token through an
// auth.SessionResolver and stores an *auth.AuthContext in the request context:
//
//	authn := middleware.NewAuthMiddleware(resolver, cfg.Auth.SessionCookieName, false)
//	router.Use(authn.Handler)
//
// In optional mode anonymous requests continue with an empty auth context,
// which is what the provider proxy and public routes need. Required mode
// answers 401.
//
// Roles are never resolved here. Organization membership is checked per
// request by rbac.Guard.
//
// # Rate Limiting
//
// RateLimitMiddleware applies a Redis fixed-window limit keyed by user id, or by
// client address for anonymous callers. It is mounted in front of the
// authentication provider proxy to slow down credential stuffing. Redis
// errors fail open.
//
// # Related Packages
//
//   - pkg/auth: Session resolution
//   - pkg/rbac: Permission checking
package middleware
