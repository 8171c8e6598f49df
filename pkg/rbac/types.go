package rbac

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Role is an organization membership role
type Role uint8

const (
	RoleMember Role = iota
	RoleAdmin
	RoleOwner

	roleCount
)

var roleNames = [roleCount]string{
	RoleMember: "member",
	RoleAdmin:  "admin",
	RoleOwner:  "owner",
}

// Roles lists every role in ascending order of privilege
func Roles() []Role {
	return []Role{RoleMember, RoleAdmin, RoleOwner}
}

func (r Role) String() string {
	if !r.Valid() {
		return fmt.Sprintf("role(%d)", uint8(r))
	}
	return roleNames[r]
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r < roleCount
}

// IsCoach reports whether the role may author organization-private catalog content
func (r Role) IsCoach() bool {
	return r == RoleAdmin || r == RoleOwner
}

// ParseRole parses a role name
func ParseRole(s string) (Role, error) {
	name := canonical(s)
	for i, n := range roleNames {
		if n == name {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("unknown role %d", uint8(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value implements driver.Valuer; roles are stored by name
func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("unknown role %d", uint8(r))
	}
	return r.String(), nil
}

// Scan implements sql.Scanner
func (r *Role) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into Role", src)
	}
}

// Resource is a kind of object permissions are granted on
type Resource uint8

const (
	ResourceWorkout Resource = iota
	ResourceExercise
	ResourceComplex
	ResourceAthlete
	ResourceSession
	ResourcePersonalRecord
	ResourceOrganization
	ResourceMember
	ResourceInvitation

	resourceCount
)

var resourceNames = [resourceCount]string{
	ResourceWorkout:        "workout",
	ResourceExercise:       "exercise",
	ResourceComplex:        "complex",
	ResourceAthlete:        "athlete",
	ResourceSession:        "session",
	ResourcePersonalRecord: "personal-record",
	ResourceOrganization:   "organization",
	ResourceMember:         "member",
	ResourceInvitation:     "invitation",
}

// Resources lists every resource
func Resources() []Resource {
	out := make([]Resource, 0, resourceCount)
	for r := Resource(0); r < resourceCount; r++ {
		out = append(out, r)
	}
	return out
}

func (r Resource) String() string {
	if !r.Valid() {
		return fmt.Sprintf("resource(%d)", uint8(r))
	}
	return resourceNames[r]
}

// Valid reports whether r is a known resource
func (r Resource) Valid() bool {
	return r < resourceCount
}

// ParseResource parses a resource name
func ParseResource(s string) (Resource, error) {
	name := canonical(s)
	for i, n := range resourceNames {
		if n == name {
			return Resource(i), nil
		}
	}
	return 0, fmt.Errorf("unknown resource %q", s)
}

// Action is a single operation on a resource
type Action uint8

const (
	ActionRead Action = 1 << iota
	ActionCreate
	ActionUpdate
	ActionDelete
	ActionCancel
)

var actionNames = []struct {
	action Action
	name   string
}{
	{ActionRead, "read"},
	{ActionCreate, "create"},
	{ActionUpdate, "update"},
	{ActionDelete, "delete"},
	{ActionCancel, "cancel"},
}

// AllActions lists every action
func AllActions() []Action {
	out := make([]Action, 0, len(actionNames))
	for _, a := range actionNames {
		out = append(out, a.action)
	}
	return out
}

func (a Action) String() string {
	for _, n := range actionNames {
		if n.action == a {
			return n.name
		}
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// ParseAction parses an action name
func ParseAction(s string) (Action, error) {
	name := canonical(s)
	for _, n := range actionNames {
		if n.name == name {
			return n.action, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// ActionSet is a set of actions
type ActionSet uint8

// Actions builds a set from individual actions
func Actions(actions ...Action) ActionSet {
	var s ActionSet
	for _, a := range actions {
		s |= ActionSet(a)
	}
	return s
}

// ParseActions builds a set from action names
func ParseActions(names ...string) (ActionSet, error) {
	var s ActionSet
	for _, name := range names {
		a, err := ParseAction(name)
		if err != nil {
			return 0, err
		}
		s |= ActionSet(a)
	}
	return s, nil
}

// Has reports whether a is in the set
func (s ActionSet) Has(a Action) bool {
	return s&ActionSet(a) != 0
}

// Intersects reports whether the sets share at least one action
func (s ActionSet) Intersects(other ActionSet) bool {
	return s&other != 0
}

// Empty reports whether the set has no actions
func (s ActionSet) Empty() bool {
	return s == 0
}

// List returns the actions in the set in declaration order
func (s ActionSet) List() []Action {
	var out []Action
	for _, n := range actionNames {
		if s.Has(n.action) {
			out = append(out, n.action)
		}
	}
	return out
}

// Names returns the action names in the set
func (s ActionSet) Names() []string {
	list := s.List()
	names := make([]string, len(list))
	for i, a := range list {
		names[i] = a.String()
	}
	return names
}

func (s ActionSet) String() string {
	return strings.Join(s.Names(), ",")
}

// canonical is the one place names are normalized before lookup
func canonical(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
