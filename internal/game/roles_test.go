// internal/game/roles_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleByName(t *testing.T) {
	require.Equal(t, Merlin, RoleByName("merlin"))
	require.Equal(t, Minion, RoleByName("minion"))
	assert.Nil(t, RoleByName("gandalf"))
}

func TestRolesetExpandAndNames(t *testing.T) {
	rs := RoleMerlin | RoleAssassin
	roles := rs.Expand()
	require.Len(t, roles, 2)
	assert.Equal(t, []string{"merlin", "assassin"}, rs.Names())

	assert.Empty(t, RoleNone.Names())
	assert.True(t, rs.Has(RoleMerlin))
	assert.False(t, rs.Has(RoleMerlin|RoleMordred))
}

func TestVisibleRolesSelf(t *testing.T) {
	// A player always knows their own exact role.
	assert.Equal(t, RoleMordred, VisibleRoles(Mordred, Mordred, true))
	assert.Equal(t, RoleServant, VisibleRoles(Servant, Servant, true))
}

func TestVisibleRolesMerlin(t *testing.T) {
	// Merlin sees evil as an undifferentiated group, Mordred excepted.
	seen := RoleMorgana | RoleOberon | RoleAssassin | RoleMinion
	assert.Equal(t, seen, VisibleRoles(Merlin, Minion, false))
	assert.Equal(t, seen, VisibleRoles(Merlin, Assassin, false))
	assert.Equal(t, RoleNone, VisibleRoles(Merlin, Mordred, false))
	assert.Equal(t, RoleNone, VisibleRoles(Merlin, Servant, false))
}

func TestVisibleRolesPercival(t *testing.T) {
	// Percival cannot tell Merlin from Morgana.
	seen := RoleMerlin | RoleMorgana
	assert.Equal(t, seen, VisibleRoles(Percival, Merlin, false))
	assert.Equal(t, seen, VisibleRoles(Percival, Morgana, false))
	assert.Equal(t, RoleNone, VisibleRoles(Percival, Assassin, false))
}

func TestVisibleRolesEvil(t *testing.T) {
	evilGroup := RoleMorgana | RoleMordred | RoleAssassin | RoleMinion

	// Evil players know each other, except Oberon in both directions.
	assert.Equal(t, evilGroup, VisibleRoles(Minion, Assassin, false))
	assert.Equal(t, evilGroup, VisibleRoles(Morgana, Mordred, false))
	assert.Equal(t, RoleNone, VisibleRoles(Minion, Oberon, false))
	assert.Equal(t, RoleNone, VisibleRoles(Oberon, Minion, false))

	// Good filler players see nothing.
	assert.Equal(t, RoleNone, VisibleRoles(Servant, Assassin, false))
}

func TestVisibleRolesUnassigned(t *testing.T) {
	assert.Equal(t, RoleNone, VisibleRoles(Merlin, nil, false))
	assert.Equal(t, RoleNone, VisibleRoles(nil, Assassin, false))
}

func TestValidRoleset(t *testing.T) {
	assert.True(t, ValidRoleset(RoleNone, 5))
	assert.True(t, ValidRoleset(RoleMerlin|RoleAssassin, 5))
	assert.True(t, ValidRoleset(RoleMorgana|RoleMordred|RoleAssassin, 7))

	// Filler and unknown bits are never selectable.
	assert.False(t, ValidRoleset(RoleServant, 5))
	assert.False(t, ValidRoleset(RoleMerlin|RoleMinion, 5))
	assert.False(t, ValidRoleset(Roleset(1<<16), 5))

	// More explicit evil roles than the lobby size supports.
	assert.False(t, ValidRoleset(RoleMorgana|RoleMordred|RoleAssassin, 5))
	assert.False(t, ValidRoleset(RoleMorgana|RoleMordred|RoleOberon|RoleAssassin, 9))
}
