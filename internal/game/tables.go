// internal/game/tables.go
package game

// Rounds is the fixed number of missions per game, independent of roleset.
const Rounds = 5

// evilCounts is the required number of evil players by lobby size.
var evilCounts = map[int]int{
	5:  2,
	6:  2,
	7:  3,
	8:  3,
	9:  3,
	10: 4,
}

// missionSizes is the required team size by lobby size and round.
var missionSizes = map[int][Rounds]int{
	5:  {2, 3, 2, 3, 3},
	6:  {2, 3, 4, 3, 4},
	7:  {2, 3, 3, 4, 4},
	8:  {3, 4, 4, 5, 5},
	9:  {3, 4, 4, 5, 5},
	10: {3, 4, 4, 5, 5},
}

// EvilCount returns the required evil-player count for a lobby size.
// Sizes outside the 5-10 table are clamped so that undersized local test
// lobbies still get a sane value.
func EvilCount(playerCount int) int {
	if playerCount < 5 {
		return evilCounts[5]
	}
	if playerCount > 10 {
		return evilCounts[10]
	}
	return evilCounts[playerCount]
}

// MissionSize returns the required team size for a lobby size and round,
// clamping lobby sizes outside the table the same way EvilCount does.
func MissionSize(playerCount, round int) int {
	if playerCount < 5 {
		playerCount = 5
	} else if playerCount > 10 {
		playerCount = 10
	}
	if round < 0 || round >= Rounds {
		return 0
	}
	return missionSizes[playerCount][round]
}

// FailThreshold returns how many fail choices are needed to fail the mission
// for a lobby size and round. One fail is always enough except the third
// mission in games of seven or more, which needs two.
func FailThreshold(playerCount, round int) int {
	if round == 2 && playerCount >= 7 {
		return 2
	}
	return 1
}
