// internal/game/assign.go
package game

import (
	"math/rand"
	"strings"

	log "github.com/sirupsen/logrus"
)

// overridePrefix marks test usernames that force a specific role assignment.
const overridePrefix = "always_"

// AssignRoles deals one role to every player in order. The enabled special
// roles are padded with minions up to the required evil count, then with
// servants up to the player count, and shuffled with the caller's rand
// source so tests can seed it.
//
// If allowOverride is set (development builds only), a player named
// "always_<role>" is dealt that role when it is present in the dealt set;
// a missing role is logged and skipped, never a failed game start.
//
// Returns the assignment keyed by username and the effective roleset
// including any filler bits added.
func AssignRoles(rs Roleset, order []string, rng *rand.Rand, allowOverride bool) (map[string]*Role, Roleset) {
	roles := rs.Expand()

	evil := 0
	for _, r := range roles {
		if r.Alignment == AlignmentEvil {
			evil++
		}
	}
	for ; evil < EvilCount(len(order)); evil++ {
		roles = append(roles, Minion)
		rs |= RoleMinion
	}
	for len(roles) < len(order) {
		roles = append(roles, Servant)
		rs |= RoleServant
	}

	rng.Shuffle(len(roles), func(i, j int) {
		roles[i], roles[j] = roles[j], roles[i]
	})

	if allowOverride {
		applyOverrides(order, roles)
	}

	assigned := make(map[string]*Role, len(order))
	for i, username := range order {
		assigned[username] = roles[i]
	}
	return assigned, rs
}

// applyOverrides swaps requested roles into override players' slots.
func applyOverrides(order []string, roles []*Role) {
	for i, username := range order {
		name, ok := strings.CutPrefix(username, overridePrefix)
		if !ok {
			continue
		}
		want := RoleByName(name)
		if want == nil {
			log.Warnf("role override for %q names unknown role %q", username, name)
			continue
		}
		at := -1
		for j, r := range roles {
			if r == want {
				at = j
				break
			}
		}
		if at == -1 {
			log.Warnf("role override for %q requested %q, not in the dealt set", username, name)
			continue
		}
		roles[i], roles[at] = roles[at], roles[i]
	}
}
