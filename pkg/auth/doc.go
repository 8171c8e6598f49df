// Package auth resolves inbound credentials into an authenticated principal.
//
// # Session Resolution
//
// A SessionResolver consults SessionProviders in order. Each provider reads
// the credential it understands and answers ErrNoCredentials otherwise:
//
//	resolver := auth.NewSessionResolver(metrics,
//		auth.NewRedisSessionStore(redisClient), // session cookie
//		oidcProvider,                           // Authorization: Bearer <id token>
//	)
//	principal := resolver.Resolve(ctx, auth.CredentialsFromRequest(r, "barbell.session_token"))
//
// Resolve never fails; a nil principal is an anonymous request and the caller
// decides whether that is acceptable.
//
// # Sessions
//
// Session records live in Redis under "session:<sha256(token)>" as JSON
// {"session": {...}, "user": {...}} written by the authentication provider.
// Expiry is enforced by both the key TTL and the record's expiresAt.
//
// # Identity, not authority
//
// Principals carry identity and the session's active organization only.
// Roles are never cached here; pkg/rbac resolves membership on every request.
//
// # Audit
//
//	auditLogger := auth.NewAuditLogger(db)
//	auditLogger.Log(ctx, auth.FromRequest(r, authCtx, auth.ActionPermissionDenied, "exercise", auth.StatusDenied))
package auth
