// internal/session/coordinator.go
//
// The phase state machine. Each handler validates sender and phase, mutates
// session state, broadcasts, and arms a barrier and/or deadline timer; the
// barrier fills and timers fire back into the same serialized queue, so the
// whole game advances one step at a time per session.
package session

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jason-s-yu/avalon/internal/events"
	"github.com/jason-s-yu/avalon/internal/game"
)

// RegisterHandlers installs the coordinator's handlers on a server-side
// broker.
func RegisterHandlers(b *events.Broker[*Session]) {
	b.On(events.TypeReady, func(s *Session, origin string, _ events.Event) {
		s.ackReady(origin)
	})
	b.On(events.TypeSetRoleList, func(s *Session, origin string, ev events.Event) {
		s.handleSetRoleList(origin, ev.(events.SetRoleList))
	})
	b.On(events.TypeStartGame, func(s *Session, origin string, _ events.Event) {
		s.handleStartGame(origin)
	})
	b.On(events.TypeTeamProposal, func(s *Session, origin string, ev events.Event) {
		s.handleTeamProposal(origin, ev.(events.TeamProposal))
	})
	b.On(events.TypeTeamVoteChoice, func(s *Session, origin string, ev events.Event) {
		s.handleTeamVoteChoice(origin, ev.(events.TeamVoteChoice))
	})
	b.On(events.TypeMissionChoice, func(s *Session, origin string, ev events.Event) {
		s.handleMissionChoice(origin, ev.(events.MissionChoice))
	})
	b.On(events.TypeAssassinationChoice, func(s *Session, origin string, ev events.Event) {
		s.handleAssassinationChoice(origin, ev.(events.AssassinationChoice))
	})
	b.On(events.TypeBackToLobby, func(s *Session, origin string, _ events.Event) {
		s.handleBackToLobby(origin)
	})
}

// handleSetRoleList updates the enabled roleset. An invalid roleset is
// rejected but the previously accepted one is still re-broadcast, so the
// host's client can never desync from everyone else on the current
// configuration.
func (s *Session) handleSetRoleList(origin string, ev events.SetRoleList) {
	if origin != s.host {
		log.Warnf("session %s: set_role_list from non-host %s", s.ID, origin)
		return
	}
	if s.phase != game.PhaseLobby {
		log.Warnf("session %s: set_role_list in phase %s", s.ID, s.phase)
		return
	}

	// The filler roles are never selectable; strip them before validating.
	roles := ev.Roles &^ game.FillerRoles

	if game.ValidRoleset(roles, len(s.players)) {
		s.enabledRoles = roles
	} else {
		log.Warnf("session %s: rejected invalid roleset %b for %d players", s.ID, roles, len(s.players))
	}

	current := s.enabledRoles
	s.broadcast(events.Update{EnabledRoles: &current})
}

// handleStartGame begins a game: fixes the player order, assigns roles, and
// waits for every client to acknowledge before revealing them.
func (s *Session) handleStartGame(origin string) {
	if origin != s.host {
		log.Warnf("session %s: start_game from non-host %s", s.ID, origin)
		s.reassertState()
		return
	}
	if s.phase != game.PhaseLobby {
		log.Warnf("session %s: start_game in phase %s", s.ID, s.phase)
		s.reassertState()
		return
	}
	if s.connectedCount() < s.cfg.MinPlayers {
		log.Warnf("session %s: start_game with %d of %d required players", s.ID, s.connectedCount(), s.cfg.MinPlayers)
		s.reassertState()
		return
	}

	s.playerOrder = append([]string{}, s.joinOrder...)
	s.rng.Shuffle(len(s.playerOrder), func(i, j int) {
		s.playerOrder[i], s.playerOrder[j] = s.playerOrder[j], s.playerOrder[i]
	})
	s.leaderIndex = 0

	s.phase = game.PhaseInGame
	s.round = 0
	for i := range s.outcomes {
		s.outcomes[i] = -1
	}
	s.team = nil

	assigned, _ := game.AssignRoles(s.enabledRoles, s.playerOrder, s.rng, s.cfg.AllowRoleOverride)
	for username, role := range assigned {
		s.players[username].Role = role
	}
	log.Infof("session %s: game started with %d players, leader %s", s.ID, len(s.playerOrder), s.leader())

	s.sendUpdate(events.Update{
		State:       s.gameState(),
		Leader:      s.leader(),
		PlayerOrder: append([]string{}, s.playerOrder...),
	}, true, false)

	// Once everyone has the state, trigger the role reveal. Play then waits
	// for the leader's team proposal.
	s.armBarrier(func() {
		s.broadcast(events.RoleReveal{})
	})
}

// handleTeamProposal records the leader's team and opens the vote once all
// clients have rendered it.
func (s *Session) handleTeamProposal(origin string, ev events.TeamProposal) {
	if origin != s.leader() {
		log.Warnf("session %s: team_proposal from non-leader %s", s.ID, origin)
		s.reassertState()
		return
	}
	if s.phase != game.PhaseInGame {
		log.Warnf("session %s: team_proposal in phase %s", s.ID, s.phase)
		s.reassertState()
		return
	}
	if want := game.MissionSize(len(s.playerOrder), s.round); len(ev.Players) != want {
		log.Warnf("session %s: team_proposal with %d players, want %d", s.ID, len(ev.Players), want)
		s.reassertState()
		return
	}
	// The team is a set over seated players; a ghost name would make the
	// mission untallyable and a repeated name would double-count its choice.
	seen := make(map[string]bool, len(ev.Players))
	for _, username := range ev.Players {
		if _, ok := s.players[username]; !ok {
			log.Warnf("session %s: team_proposal names unseated player %s", s.ID, username)
			s.reassertState()
			return
		}
		if seen[username] {
			log.Warnf("session %s: team_proposal names %s twice", s.ID, username)
			s.reassertState()
			return
		}
		seen[username] = true
	}
	if s.waitingFor != WaitingNone {
		log.Warnf("session %s: team_proposal while waiting for input %d", s.ID, s.waitingFor)
		return
	}

	s.team = append([]string{}, ev.Players...)

	s.armBarrier(func() {
		s.votes = make(map[string]bool)
		s.waitingFor = WaitingTeamVote
		s.broadcast(events.TeamVote{Players: append([]string{}, s.team...)})
		s.after(s.cfg.VoteTime, s.tallyTeamVote)
	})

	s.sendUpdate(events.Update{State: s.gameState(), Leader: s.leader()}, false, false)
}

// handleTeamVoteChoice records one vote; the last vote per player wins.
func (s *Session) handleTeamVoteChoice(origin string, ev events.TeamVoteChoice) {
	if s.waitingFor != WaitingTeamVote {
		return
	}
	if p, ok := s.players[origin]; !ok || p.Conn == nil {
		return
	}
	s.votes[origin] = ev.Vote
}

// tallyTeamVote closes the vote window. An accepted team starts the mission;
// a rejected one passes leadership round-robin.
func (s *Session) tallyTeamVote() {
	s.waitingFor = WaitingNone

	if game.TeamVotePassed(s.votes, s.connectedCount()) {
		s.waitingFor = WaitingMissionChoices
		s.missionChoices = make(map[string]bool)
		s.broadcast(events.MissionStart{Players: append([]string{}, s.team...)})
		s.after(s.cfg.MissionTime, s.tallyMission)
	} else {
		s.team = nil
		s.advanceLeader()
		s.sendUpdate(events.Update{State: s.gameState(), Leader: s.leader()}, false, false)
	}

	s.votes = nil
}

// handleMissionChoice records a team member's pass/fail choice. Good players
// cannot fail: the attempt is rejected at intake, not smoothed over at tally.
func (s *Session) handleMissionChoice(origin string, ev events.MissionChoice) {
	if s.waitingFor != WaitingMissionChoices {
		log.Warnf("session %s: mission_choice outside mission window from %s", s.ID, origin)
		return
	}
	if !s.onTeam(origin) {
		log.Warnf("session %s: mission_choice from non-team member %s", s.ID, origin)
		return
	}
	p := s.players[origin]
	if p == nil || p.Role == nil {
		log.Errorf("session %s: mission_choice from %s with no assigned role", s.ID, origin)
		return
	}
	if p.Role.Alignment == game.AlignmentGood && !ev.Pass {
		log.Warnf("session %s: good player %s tried to fail the mission", s.ID, origin)
		return
	}
	s.missionChoices[origin] = ev.Pass
}

// tallyMission closes the choice window, records the outcome, and once every
// client has the updated state, evaluates the end conditions.
func (s *Session) tallyMission() {
	s.waitingFor = WaitingNone

	fails := game.MissionFails(s.missionChoices, s.team)
	passed := game.MissionPassed(fails, len(s.playerOrder), s.round)
	s.missionChoices = nil
	s.outcomes[s.round] = fails
	log.Infof("session %s: mission %d resolved, %d fails, passed=%v", s.ID, s.round, fails, passed)

	s.sendUpdate(events.Update{State: s.gameState()}, false, false)

	s.armBarrier(func() {
		s.evaluateEndConditions(passed, fails)
	})
}

// evaluateEndConditions ends the game on three passed or three failed
// missions (in that precedence), or advances to the next round.
func (s *Session) evaluateEndConditions(passed bool, fails int) {
	if s.passedMissions() >= 3 {
		if !s.enabledRoles.Has(game.RoleMerlin) {
			// No Merlin to assassinate; good wins outright.
			s.endGame(game.AlignmentGood, "", "")
			return
		}
		s.merlinGuesses = make(map[string]string)
		s.waitingFor = WaitingAssassinationGuesses
		s.broadcast(events.Assassination{Guessers: s.eligibleGuessers()})
		s.after(s.cfg.AssassinationTime, s.tallyAssassination)
		return
	}

	if s.failedMissions() >= 3 {
		s.endGame(game.AlignmentEvil, "", "")
		return
	}

	// Neither side has three yet: reveal the outcome, then advance the round
	// once everyone has seen it.
	s.armBarrier(func() {
		s.advanceLeader()
		s.round++
		s.team = nil
		s.sendUpdate(events.Update{State: s.gameState(), Leader: s.leader()}, false, false)
	})
	s.broadcast(events.MissionOutcome{Passed: passed, Fails: fails})
}

func (s *Session) passedMissions() int {
	n := 0
	for round, fails := range s.outcomes {
		if fails >= 0 && game.MissionPassed(fails, len(s.playerOrder), round) {
			n++
		}
	}
	return n
}

func (s *Session) failedMissions() int {
	n := 0
	for round, fails := range s.outcomes {
		if fails >= 0 && !game.MissionPassed(fails, len(s.playerOrder), round) {
			n++
		}
	}
	return n
}

// eligibleGuessers lists who may guess Merlin: the assassin alone when that
// role is in play, otherwise every evil player.
func (s *Session) eligibleGuessers() []string {
	assassinOnly := s.enabledRoles.Has(game.RoleAssassin)
	var guessers []string
	for _, username := range s.playerOrder {
		p := s.players[username]
		if p == nil || p.Role == nil {
			continue
		}
		if assassinOnly {
			if p.Role.Bit == game.RoleAssassin {
				guessers = append(guessers, username)
			}
		} else if p.Role.Alignment == game.AlignmentEvil {
			guessers = append(guessers, username)
		}
	}
	return guessers
}

func (s *Session) canGuess(username string) bool {
	p := s.players[username]
	if p == nil || p.Role == nil {
		return false
	}
	if s.enabledRoles.Has(game.RoleAssassin) {
		return p.Role.Bit == game.RoleAssassin
	}
	return p.Role.Alignment == game.AlignmentEvil
}

// handleAssassinationChoice records an eligible player's guess; the latest
// guess per player wins.
func (s *Session) handleAssassinationChoice(origin string, ev events.AssassinationChoice) {
	if s.waitingFor != WaitingAssassinationGuesses {
		return
	}
	if !s.canGuess(origin) {
		log.Warnf("session %s: assassination_choice from ineligible player %s", s.ID, origin)
		return
	}
	s.merlinGuesses[origin] = ev.Guess
}

// tallyAssassination closes the guess window. Evil wins only on a strict
// plurality naming the true Merlin; a tie or no guesses is a good win.
func (s *Session) tallyAssassination() {
	s.waitingFor = WaitingNone

	target, ok := game.AssassinationTarget(s.merlinGuesses)
	s.merlinGuesses = nil

	merlin := s.findRoleHolder(game.RoleMerlin)
	if ok && target == merlin {
		s.endGame(game.AlignmentEvil, target, merlin)
		return
	}
	s.endGame(game.AlignmentGood, target, merlin)
}

// endGame records stats, reveals the full roster, and delivers the result
// once every client has the reveal.
func (s *Session) endGame(winner game.Alignment, assassinated, merlin string) {
	s.phase = game.PhaseResults
	log.Infof("session %s: game over, %s wins", s.ID, winner)

	if s.stats != nil {
		for _, p := range s.players {
			if p.Role == nil {
				continue
			}
			go s.recordResult(p.Username, p.Role, p.Role.Alignment == winner)
		}
	}

	s.armBarrier(func() {
		s.broadcast(events.GameResult{Winner: winner, Assassinated: assassinated, Merlin: merlin})
	})

	s.sendUpdate(events.Update{
		State:       s.gameState(),
		PlayerOrder: append([]string{}, s.playerOrder...),
	}, true, true)
}

// recordResult is the fire-and-forget stats write. Runs off the session
// queue; failure is logged and never surfaces to players.
func (s *Session) recordResult(username string, role *game.Role, won bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.stats.RecordResult(ctx, s.ID, username, role.Name, role.Alignment, won); err != nil {
		log.Warnf("session %s: stats write for %s failed: %v", s.ID, username, err)
	}
}

// handleBackToLobby resets all round-scoped state and returns to the lobby.
func (s *Session) handleBackToLobby(origin string) {
	if origin != s.host {
		log.Warnf("session %s: back_to_lobby from non-host %s", s.ID, origin)
		return
	}
	if s.phase == game.PhaseLobby {
		log.Warnf("session %s: back_to_lobby while already in lobby", s.ID)
		return
	}

	s.phase = game.PhaseLobby
	s.round = 0
	for i := range s.outcomes {
		s.outcomes[i] = -1
	}
	s.team = nil
	s.leaderIndex = -1
	s.playerOrder = nil
	s.waitingFor = WaitingNone
	s.votes = nil
	s.missionChoices = nil
	s.merlinGuesses = nil
	s.barrierAcks = 0
	s.continuations = nil
	s.invalidateTimers()
	for _, p := range s.players {
		p.Role = nil
	}

	s.sendUpdate(events.Update{State: s.gameState()}, true, false)
}
