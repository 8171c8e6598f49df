// Package orgs resolves organizations and their memberships.
//
// A Member binds a user to an organization with one of the rbac roles.
// Coaches are members with role admin or owner; athletes are plain members.
//
// The Directory interface is the membership resolver used by rbac.Guard and
// by the catalog visibility filter. PostgresDirectory reads the members and
// organizations tables, which the authentication provider owns and writes;
// MemoryDirectory backs development mode and tests.
//
// Every lookup hits the store. Role changes are visible to the next request.
package orgs
