// internal/game/tally_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTeamVotePassed(t *testing.T) {
	// Three approvals out of five connected is a strict majority.
	votes := map[string]bool{"a": true, "b": true, "c": true, "d": false, "e": false}
	assert.True(t, TeamVotePassed(votes, 5))

	// Two approvals out of five is not, even with abstainers.
	votes = map[string]bool{"a": true, "b": true, "c": false}
	assert.False(t, TeamVotePassed(votes, 5))

	// An exact half rejects.
	votes = map[string]bool{"a": true, "b": true, "c": false, "d": false}
	assert.False(t, TeamVotePassed(votes, 4))

	// No votes at all rejects.
	assert.False(t, TeamVotePassed(map[string]bool{}, 5))
}

func TestMissionFails(t *testing.T) {
	team := []string{"a", "b", "c"}

	choices := map[string]bool{"a": true, "b": false, "c": false}
	assert.Equal(t, 2, MissionFails(choices, team))

	// A missing choice counts as a pass.
	choices = map[string]bool{"a": false}
	assert.Equal(t, 1, MissionFails(choices, team))

	// Choices from players off the team are ignored.
	choices = map[string]bool{"zed": false}
	assert.Equal(t, 0, MissionFails(choices, team))
}

func TestMissionPassed(t *testing.T) {
	assert.True(t, MissionPassed(0, 5, 0))
	assert.False(t, MissionPassed(1, 5, 0))

	// Third mission in a seven-player game shrugs off a single fail.
	assert.True(t, MissionPassed(1, 7, 2))
	assert.False(t, MissionPassed(2, 7, 2))
	assert.False(t, MissionPassed(1, 6, 2))
}

func TestAssassinationTarget(t *testing.T) {
	target, ok := AssassinationTarget(map[string]string{"assassin": "alice"})
	assert.True(t, ok)
	assert.Equal(t, "alice", target)

	// Plurality wins between disagreeing guessers.
	target, ok = AssassinationTarget(map[string]string{"a": "alice", "b": "alice", "c": "bob"})
	assert.True(t, ok)
	assert.Equal(t, "alice", target)

	// A tie resolves to no assassination.
	_, ok = AssassinationTarget(map[string]string{"a": "alice", "b": "bob"})
	assert.False(t, ok)

	// As does an empty guess window.
	_, ok = AssassinationTarget(map[string]string{})
	assert.False(t, ok)
}
