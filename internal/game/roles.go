// internal/game/roles.go
package game

// Alignment tags a role as belonging to the good or evil team.
type Alignment string

const (
	AlignmentGood Alignment = "good"
	AlignmentEvil Alignment = "evil"
)

// Roleset is a bitset over role variants. The host configures a set of
// special roles; the two filler roles (servant, minion) are never part of
// the selectable set and only appear in a roleset after assignment pads
// the game out to the full player count.
type Roleset uint32

const (
	RoleNone     Roleset = 0
	RoleMerlin   Roleset = 1 << 0
	RolePercival Roleset = 1 << 1
	RoleMorgana  Roleset = 1 << 2
	RoleMordred  Roleset = 1 << 3
	RoleOberon   Roleset = 1 << 4
	RoleAssassin Roleset = 1 << 5
	RoleServant  Roleset = 1 << 6
	RoleMinion   Roleset = 1 << 7
)

// SpecialRoles is the mask of host-selectable roles.
const SpecialRoles = RoleMerlin | RolePercival | RoleMorgana | RoleMordred | RoleOberon | RoleAssassin

// FillerRoles is the mask of the generic padding roles.
const FillerRoles = RoleServant | RoleMinion

// Role is an immutable catalog entry. Sees is the visibility rule: the mask
// of roles whose holders this role can identify. A viewer never learns the
// exact role of a seen player, only that they hold one of the roles in the
// viewer's Sees mask (e.g. Merlin knows who is evil, not who the assassin is).
type Role struct {
	Bit       Roleset
	Name      string
	Alignment Alignment
	Sees      Roleset
}

var (
	Merlin   = &Role{RoleMerlin, "merlin", AlignmentGood, RoleMorgana | RoleOberon | RoleAssassin | RoleMinion}
	Percival = &Role{RolePercival, "percival", AlignmentGood, RoleMerlin | RoleMorgana}
	Morgana  = &Role{RoleMorgana, "morgana", AlignmentEvil, evilSight}
	Mordred  = &Role{RoleMordred, "mordred", AlignmentEvil, evilSight}
	Oberon   = &Role{RoleOberon, "oberon", AlignmentEvil, RoleNone}
	Assassin = &Role{RoleAssassin, "assassin", AlignmentEvil, evilSight}
	Servant  = &Role{RoleServant, "servant", AlignmentGood, RoleNone}
	Minion   = &Role{RoleMinion, "minion", AlignmentEvil, evilSight}
)

// Evil players know each other, with the exception of Oberon.
const evilSight = RoleMorgana | RoleMordred | RoleAssassin | RoleMinion

// AllRoles lists every catalog entry, fillers included.
var AllRoles = []*Role{Merlin, Percival, Morgana, Mordred, Oberon, Assassin, Servant, Minion}

// RoleByName resolves a catalog entry by its name, or nil.
func RoleByName(name string) *Role {
	for _, r := range AllRoles {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Expand converts a roleset bitset into its concrete catalog entries.
func (rs Roleset) Expand() []*Role {
	var roles []*Role
	for _, r := range AllRoles {
		if rs&r.Bit != 0 {
			roles = append(roles, r)
		}
	}
	return roles
}

// Has reports whether every bit in mask is set.
func (rs Roleset) Has(mask Roleset) bool {
	return rs&mask == mask
}

// Names returns the role names in the set, in catalog order.
func (rs Roleset) Names() []string {
	names := []string{}
	for _, r := range rs.Expand() {
		names = append(names, r.Name)
	}
	return names
}

// VisibleRoles computes what the viewer learns about the target: the set of
// roles the target could hold, from the viewer's perspective. Returns the
// exact role bit if viewer and target are the same player, the viewer's full
// Sees mask if the target falls inside it, and RoleNone otherwise.
func VisibleRoles(viewer, target *Role, self bool) Roleset {
	if target == nil {
		return RoleNone
	}
	if self {
		return target.Bit
	}
	if viewer == nil || viewer.Sees&target.Bit == 0 {
		return RoleNone
	}
	return viewer.Sees
}
