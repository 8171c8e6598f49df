// Package hooks runs callbacks around the authentication provider's routes.
//
// The provider is served under /api/auth/ by a reverse proxy. A Registry keeps
// an ordered list of handlers per exact request path and phase. Before hooks
// may reject the request; after hooks run just before the response status is
// written and may change response headers:
//
//	reg := hooks.NewRegistry(metrics)
//	hooks.RegisterProviderRoutes(reg, guard)
//	reg.Register(hooks.PathSetActiveOrganization, hooks.PhaseBefore, hooks.ActiveOrganizationHook(directory))
//	reg.Register(hooks.PathSignInEmail, hooks.PhaseAfter, hooks.SignInAuditHook(auditLogger))
//	reg.Seal()
//	router.PathPrefix("/api/auth/").Handler(reg.Wrap(proxy))
//
// Registration happens once at startup. After Seal, Register returns
// ErrSealed and the lists are only read.
//
// The provider's organization endpoints (update, delete, member and
// invitation management) are checked against the same permission table as
// the API, in the organization named by the request body's organizationId
// or, when absent, the session's active organization.
package hooks
