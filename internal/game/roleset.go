// internal/game/roleset.go
package game

// ValidRoleset reports whether a host-selected roleset is playable at the
// given lobby size. Filler bits and unknown bits are never valid in a
// selection, and the explicit evil roles may not exceed the evil count the
// balance table requires (any remaining evil slots are padded with generic
// minions at assignment time).
func ValidRoleset(rs Roleset, playerCount int) bool {
	if rs&^SpecialRoles != 0 {
		return false
	}
	evil := 0
	for _, r := range rs.Expand() {
		if r.Alignment == AlignmentEvil {
			evil++
		}
	}
	return evil <= EvilCount(playerCount)
}
