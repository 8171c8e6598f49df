package rbac

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Normalizes(t *testing.T) {
	tests := []struct {
		input string
		want  Role
	}{
		{"owner", RoleOwner},
		{"  Admin ", RoleAdmin},
		{"MEMBER", RoleMember},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRole(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseRole("coach")
	assert.Error(t, err)

	resource, err := ParseResource(" Personal-Record")
	require.NoError(t, err)
	assert.Equal(t, ResourcePersonalRecord, resource)

	_, err = ParseResource("WorkoutController")
	assert.Error(t, err, "suffixes are never stripped")

	action, err := ParseAction("CANCEL")
	require.NoError(t, err)
	assert.Equal(t, ActionCancel, action)

	_, err = ParseActions("read", "publish")
	assert.Error(t, err)
}

func TestNames_RoundTrip(t *testing.T) {
	for _, role := range Roles() {
		parsed, err := ParseRole(role.String())
		require.NoError(t, err)
		assert.Equal(t, role, parsed)
	}
	for _, resource := range Resources() {
		parsed, err := ParseResource(resource.String())
		require.NoError(t, err)
		assert.Equal(t, resource, parsed)
	}
	for _, action := range AllActions() {
		parsed, err := ParseAction(action.String())
		require.NoError(t, err)
		assert.Equal(t, action, parsed)
	}
}

func TestActionSet(t *testing.T) {
	s := Actions(ActionUpdate, ActionRead)

	assert.True(t, s.Has(ActionRead))
	assert.False(t, s.Has(ActionDelete))
	assert.Equal(t, []Action{ActionRead, ActionUpdate}, s.List())
	assert.Equal(t, "read,update", s.String())
	assert.True(t, s.Intersects(Actions(ActionUpdate, ActionCancel)))
	assert.False(t, s.Intersects(Actions(ActionCancel)))
	assert.True(t, ActionSet(0).Empty())
	assert.Empty(t, ActionSet(0).String())
}

func TestRole_Encoding(t *testing.T) {
	var member struct {
		Role Role `json:"role"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"role":"admin"}`), &member))
	assert.Equal(t, RoleAdmin, member.Role)

	out, err := json.Marshal(member)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"admin"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"role":"root"}`), &member))

	var scanned Role
	require.NoError(t, scanned.Scan([]byte("owner")))
	assert.Equal(t, RoleOwner, scanned)
	assert.Error(t, scanned.Scan(int64(1)))

	v, err := RoleMember.Value()
	require.NoError(t, err)
	assert.Equal(t, "member", v)

	assert.True(t, RoleOwner.IsCoach())
	assert.True(t, RoleAdmin.IsCoach())
	assert.False(t, RoleMember.IsCoach())
}

func TestResourceForGroup(t *testing.T) {
	resource, ok := ResourceForGroup("athlete-statuses")
	require.True(t, ok)
	assert.Equal(t, ResourceAthlete, resource)

	resource, ok = ResourceForGroup("Exercises")
	require.True(t, ok)
	assert.Equal(t, ResourceExercise, resource)

	_, ok = ResourceForGroup("exercise")
	assert.False(t, ok)

	for group, resource := range RouteGroups {
		assert.Equal(t, canonical(group), group, "route groups are declared in canonical form")
		assert.True(t, resource.Valid(), group)
	}
	for path, req := range ProviderRoutes {
		assert.True(t, req.Resource.Valid(), path)
		assert.False(t, req.Actions.Empty(), path)
	}
}
