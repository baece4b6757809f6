package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryDefaultRolesAreValid(t *testing.T) {
	registry, err := NewRegistry(DefaultRoles())
	require.NoError(t, err)

	def, ok := registry.Role(RoleSpaManager)
	require.True(t, ok)
	assert.Equal(t, 90, def.Level)
}

func TestNewRegistryRejectsEmptyName(t *testing.T) {
	_, err := NewRegistry([]RoleDefinition{{Name: "", Level: 10}})
	assert.ErrorContains(t, err, "empty name")
}

func TestNewRegistryRejectsDuplicateRole(t *testing.T) {
	_, err := NewRegistry([]RoleDefinition{
		{Name: "greeter", Level: 10},
		{Name: "greeter", Level: 20},
	})
	assert.ErrorContains(t, err, "duplicate role")
}

func TestNewRegistryRejectsBadPermissionGrammar(t *testing.T) {
	cases := []string{"Financial:view", "financial", "financial:view:all", "financial:*", ""}
	for _, perm := range cases {
		_, err := NewRegistry([]RoleDefinition{
			{Name: "greeter", Level: 10, Permissions: []string{perm}},
		})
		assert.ErrorContains(t, err, "invalid permission", "permission %q should be rejected", perm)
	}
}

func TestNewRegistryRejectsDanglingInheritance(t *testing.T) {
	_, err := NewRegistry([]RoleDefinition{
		{Name: "greeter", Level: 10, Inherits: []string{"ghost"}},
	})
	assert.ErrorContains(t, err, "unknown role")
}

func TestNewRegistryRejectsInheritanceCycle(t *testing.T) {
	_, err := NewRegistry([]RoleDefinition{
		{Name: "a", Level: 30, Inherits: []string{"b"}},
		{Name: "b", Level: 20, Inherits: []string{"c"}},
		{Name: "c", Level: 10, Inherits: []string{"a"}},
	})
	assert.ErrorContains(t, err, "inheritance cycle")
}

func TestClosureIsTransitive(t *testing.T) {
	registry, err := NewRegistry([]RoleDefinition{
		{Name: "lead", Level: 30, Permissions: []string{"schedule:manage"}, Inherits: []string{"senior"}},
		{Name: "senior", Level: 20, Permissions: []string{"patient:update"}, Inherits: []string{"junior"}},
		{Name: "junior", Level: 10, Permissions: []string{"patient:view"}},
	})
	require.NoError(t, err)

	assert.True(t, registry.Grants("lead", "schedule", "manage"))
	assert.True(t, registry.Grants("lead", "patient", "update"))
	assert.True(t, registry.Grants("lead", "patient", "view"), "two hops of inheritance")
	assert.False(t, registry.Grants("junior", "patient", "update"), "inheritance only flows downward")

	effective := registry.EffectivePermissions("lead")
	assert.Len(t, effective, 3)
}

func TestWildcardGrantsEverything(t *testing.T) {
	registry, err := NewRegistry(DefaultRoles())
	require.NoError(t, err)

	assert.True(t, registry.Grants(RolePracticeOwner, "financial", "refund"))
	assert.True(t, registry.Grants(RolePracticeOwner, "anything", "whatsoever"))
}

func TestGrantsUnknownRole(t *testing.T) {
	registry, err := NewRegistry(DefaultRoles())
	require.NoError(t, err)

	assert.False(t, registry.Grants("ghost", "patient", "view"))
}

func TestSortByLevelDropsUnknownAndOrdersDescending(t *testing.T) {
	registry, err := NewRegistry(DefaultRoles())
	require.NoError(t, err)

	got := registry.sortByLevel([]string{RoleFrontDeskStaff, "ghost", RoleSpaManager, RoleMedicalProvider})
	assert.Equal(t, []string{RoleSpaManager, RoleMedicalProvider, RoleFrontDeskStaff}, got)
}
