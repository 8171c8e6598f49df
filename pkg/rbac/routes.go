package rbac

// RouteGroups maps each API route group to the resource its permissions are checked against.
// Groups are declared here rather than derived from handler or path names.
var RouteGroups = map[string]Resource{
	"workouts":         ResourceWorkout,
	"exercises":        ResourceExercise,
	"complexes":        ResourceComplex,
	"athletes":         ResourceAthlete,
	"athlete-statuses": ResourceAthlete,
	"sessions":         ResourceSession,
	"personal-records": ResourcePersonalRecord,
	"organizations":    ResourceOrganization,
	"members":          ResourceMember,
	"invitations":      ResourceInvitation,
}

// ResourceForGroup returns the resource declared for a route group
func ResourceForGroup(group string) (Resource, bool) {
	resource, ok := RouteGroups[canonical(group)]
	return resource, ok
}

// Requirement is a resource plus the actions that alternatively satisfy it
type Requirement struct {
	Resource Resource
	Actions  ActionSet
}

// ProviderRoutes declares the authentication provider's organization
// endpoints that mutate tenant state, keyed by request path. They are checked
// against the same table as the API routes.
var ProviderRoutes = map[string]Requirement{
	"/api/auth/organization/update":             {ResourceOrganization, update},
	"/api/auth/organization/delete":             {ResourceOrganization, remove},
	"/api/auth/organization/add-member":         {ResourceMember, create},
	"/api/auth/organization/update-member-role": {ResourceMember, update},
	"/api/auth/organization/remove-member":      {ResourceMember, remove},
	"/api/auth/organization/invite-member":      {ResourceInvitation, create},
	"/api/auth/organization/cancel-invitation":  {ResourceInvitation, cancel},
}
