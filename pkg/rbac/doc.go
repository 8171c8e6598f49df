// Package rbac provides organization-scoped role-based access control for barbell.
//
// # Overview
//
// Every decision is made against a static table compiled into the binary.
// A user's role in an organization comes from the members table and is
// looked up on every request, so a role change takes effect on the next call.
//
// # Roles, Resources and Actions
//
// Roles, resources and actions are closed enumerations:
//
//	Roles:     member, admin, owner
//	Resources: workout, exercise, complex, athlete, session, personal-record,
//	           organization, member, invitation
//	Actions:   read, create, update, delete, cancel
//
// Names are normalized in one place (trimmed and lower-cased) by ParseRole,
// ParseResource and ParseAction.
//
// # Permission Table
//
//	role    workout..session  personal-record  organization    member                  invitation
//	member  read              read, create     -               -                       -
//	admin   read..delete      read..delete     update          create, update, delete  create, cancel
//	owner   read..delete      read..delete     update, delete  create, update, delete  create, cancel
//
// Each role row is a positional struct literal with one field per resource;
// a role missing from the table fails to compile.
//
// # OR Semantics
//
// A route names the actions that each suffice on their own:
//
//	rbac.IsAllowed(rbac.RoleAdmin, rbac.ResourceWorkout, rbac.Actions(rbac.ActionRead, rbac.ActionCreate)) // true
//
// An empty requirement, an unknown role or an unknown resource denies.
//
// # HTTP Guard
//
// Guard.Require maps a declared route group to its resource and checks the
// caller's role in the session's active organization:
//
//	guard := rbac.NewGuard(directory, auditLogger, metrics)
//	router.Handle("/api/exercises", guard.Require("exercises", rbac.ActionCreate)(createHandler))
//
// Outcomes:
//
//	401  no principal
//	403  no active organization, not a member, lookup failure, insufficient role,
//	     or an undeclared route group
//
// Every 403 carries the same body ("permission check failed"). The reason,
// actor, organization, resource and required/held actions go to the
// structured log, the barbell_authz_decisions_total metric and the audit log.
//
// ProviderRoutes applies the same table to the authentication provider's
// organization endpoints through before hooks (see pkg/hooks).
package rbac
