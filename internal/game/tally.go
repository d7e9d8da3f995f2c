// internal/game/tally.go
package game

// TeamVotePassed reports whether a team proposal was approved. Approval
// requires a strict majority of the connected players; abstainers count
// neither way, so an exact half (including an all-even split) rejects.
func TeamVotePassed(votes map[string]bool, connected int) bool {
	approve := 0
	for _, v := range votes {
		if v {
			approve++
		}
	}
	return approve*2 > connected
}

// MissionFails counts fail choices submitted by team members. A team member
// with no recorded choice is treated as having passed.
func MissionFails(choices map[string]bool, team []string) int {
	fails := 0
	for _, username := range team {
		if pass, ok := choices[username]; ok && !pass {
			fails++
		}
	}
	return fails
}

// MissionPassed reports whether a mission with the given fail count passed
// for a lobby size and round.
func MissionPassed(fails, playerCount, round int) bool {
	return fails < FailThreshold(playerCount, round)
}

// AssassinationTarget resolves the assassination guesses to a single target.
// The target must be a strict plurality; a tie or no guesses at all resolves
// to no assassination (ok == false), which is a good win by default.
func AssassinationTarget(guesses map[string]string) (target string, ok bool) {
	counts := make(map[string]int, len(guesses))
	for _, guess := range guesses {
		counts[guess]++
	}
	best, tied := 0, false
	for candidate, n := range counts {
		switch {
		case n > best:
			best, target, tied = n, candidate, false
		case n == best:
			tied = true
		}
	}
	if best == 0 || tied {
		return "", false
	}
	return target, true
}
