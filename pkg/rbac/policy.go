package rbac

const (
	none = ActionSet(0)

	read   = ActionSet(ActionRead)
	create = ActionSet(ActionCreate)
	update = ActionSet(ActionUpdate)
	remove = ActionSet(ActionDelete)
	cancel = ActionSet(ActionCancel)

	crud = read | create | update | remove
)

// grant holds one role's permissions, one field per resource.
// Rows are written positionally so a new resource cannot be added without
// updating every role.
type grant struct {
	workout        ActionSet
	exercise       ActionSet
	complex        ActionSet
	athlete        ActionSet
	session        ActionSet
	personalRecord ActionSet
	organization   ActionSet
	member         ActionSet
	invitation     ActionSet
}

func (g grant) of(resource Resource) ActionSet {
	switch resource {
	case ResourceWorkout:
		return g.workout
	case ResourceExercise:
		return g.exercise
	case ResourceComplex:
		return g.complex
	case ResourceAthlete:
		return g.athlete
	case ResourceSession:
		return g.session
	case ResourcePersonalRecord:
		return g.personalRecord
	case ResourceOrganization:
		return g.organization
	case ResourceMember:
		return g.member
	case ResourceInvitation:
		return g.invitation
	default:
		return none
	}
}

var grants = [...]grant{
	//           workout exercise complex athlete session personal-record organization   member                   invitation
	RoleMember: {read, read, read, read, read, read | create, none, none, none},
	RoleAdmin:  {crud, crud, crud, crud, crud, crud, update, create | update | remove, create | cancel},
	RoleOwner:  {crud, crud, crud, crud, crud, crud, update | remove, create | update | remove, create | cancel},
}

// a role without a row fails to compile here
var _ = [1]struct{}{}[len(grants)-int(roleCount)]

// Held returns the actions role holds on resource; unknown inputs hold nothing
func Held(role Role, resource Resource) ActionSet {
	if !role.Valid() || !resource.Valid() {
		return none
	}
	return grants[role].of(resource)
}

// IsAllowed reports whether role holds at least one of the required actions on resource.
// An empty requirement is never satisfied.
func IsAllowed(role Role, resource Resource, required ActionSet) bool {
	return Held(role, resource).Intersects(required)
}
