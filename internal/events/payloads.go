// internal/events/payloads.go
package events

import (
	"errors"

	"github.com/jason-s-yu/avalon/internal/game"
)

// Event type identifiers.
const (
	TypeReady               = "ready"
	TypeDisconnect          = "disconnect"
	TypeUpdate              = "update"
	TypeSetRoleList         = "set_role_list"
	TypeStartGame           = "start_game"
	TypeTeamProposal        = "team_proposal"
	TypeTeamVote            = "team_vote"
	TypeTeamVoteChoice      = "team_vote_choice"
	TypeMissionStart        = "mission_start"
	TypeMissionChoice       = "mission_choice"
	TypeMissionOutcome      = "mission_outcome"
	TypeAssassination       = "assassination"
	TypeAssassinationChoice = "assassination_choice"
	TypeGameResult          = "game_result"
	TypeBackToLobby         = "back_to_lobby"
	TypeRoleReveal          = "role_reveal"
)

// Ready acknowledges that a client has rendered the latest state.
type Ready struct{}

func (Ready) EventType() string { return TypeReady }

// Disconnect tells a client it has been dropped and why.
type Disconnect struct {
	Reason string `json:"reason"`
}

func (Disconnect) EventType() string { return TypeDisconnect }

// GameState is the round-scoped state block carried inside Update.
type GameState struct {
	Phase    game.Phase       `json:"phase"`
	Round    int              `json:"round"`
	Outcomes [game.Rounds]int `json:"outcomes"`
	Team     []string         `json:"team"`
}

// PlayerInfo is one roster entry inside Update. Roles lists the roles the
// receiving player could attribute to this player, per the visibility rules;
// it holds the single true role for the player themself and after reveal.
type PlayerInfo struct {
	Username string   `json:"username"`
	Avatar   string   `json:"avatar,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// Update carries any subset of the session state that changed; nil fields
// are unchanged. The players map is personalized per recipient because role
// visibility differs between holders.
type Update struct {
	State        *GameState            `json:"state,omitempty"`
	Host         string                `json:"host,omitempty"`
	Leader       string                `json:"leader,omitempty"`
	EnabledRoles *game.Roleset         `json:"enabled_roles,omitempty"`
	Players      map[string]PlayerInfo `json:"players,omitempty"`
	PlayerOrder  []string              `json:"player_order,omitempty"`
}

func (Update) EventType() string { return TypeUpdate }

// SetRoleList is the host's proposed roleset bitset.
type SetRoleList struct {
	Roles game.Roleset `json:"roles"`
}

func (SetRoleList) EventType() string { return TypeSetRoleList }

// StartGame is the host's request to begin the game.
type StartGame struct{}

func (StartGame) EventType() string { return TypeStartGame }

// TeamProposal is the leader's nominated mission team.
type TeamProposal struct {
	Players []string `json:"players"`
}

func (TeamProposal) EventType() string { return TypeTeamProposal }

func (e TeamProposal) validate() error {
	if len(e.Players) == 0 {
		return errors.New("empty team")
	}
	return nil
}

// TeamVote announces the proposed team and opens the vote window.
type TeamVote struct {
	Players []string `json:"players"`
}

func (TeamVote) EventType() string { return TypeTeamVote }

// TeamVoteChoice is one player's approve/reject vote.
type TeamVoteChoice struct {
	Vote bool `json:"vote"`
}

func (TeamVoteChoice) EventType() string { return TypeTeamVoteChoice }

// MissionStart announces the accepted team and opens the choice window.
type MissionStart struct {
	Players []string `json:"players"`
}

func (MissionStart) EventType() string { return TypeMissionStart }

// MissionChoice is one team member's pass/fail choice.
type MissionChoice struct {
	Pass bool `json:"pass"`
}

func (MissionChoice) EventType() string { return TypeMissionChoice }

// MissionOutcome reveals a resolved mission.
type MissionOutcome struct {
	Passed bool `json:"passed"`
	Fails  int  `json:"fails"`
}

func (MissionOutcome) EventType() string { return TypeMissionOutcome }

// Assassination opens the assassination window and names the players whose
// guesses will count.
type Assassination struct {
	Guessers []string `json:"guessers"`
}

func (Assassination) EventType() string { return TypeAssassination }

// AssassinationChoice is one eligible player's guess at the hidden Merlin.
type AssassinationChoice struct {
	Guess string `json:"guess"`
}

func (AssassinationChoice) EventType() string { return TypeAssassinationChoice }

func (e AssassinationChoice) validate() error {
	if e.Guess == "" {
		return errors.New("empty guess")
	}
	return nil
}

// GameResult carries the final outcome and its reveal context.
type GameResult struct {
	Winner       game.Alignment `json:"winner"`
	Assassinated string         `json:"assassinated,omitempty"`
	Merlin       string         `json:"merlin,omitempty"`
}

func (GameResult) EventType() string { return TypeGameResult }

// BackToLobby is the host's request to return the session to the lobby.
type BackToLobby struct{}

func (BackToLobby) EventType() string { return TypeBackToLobby }

// RoleReveal tells clients every player has seen the state and role cards
// may be shown.
type RoleReveal struct{}

func (RoleReveal) EventType() string { return TypeRoleReveal }

func registerBuiltin(r *Registry) {
	r.Register(TypeReady, decodeInto[Ready])
	r.Register(TypeDisconnect, decodeInto[Disconnect])
	r.Register(TypeUpdate, decodeInto[Update])
	r.Register(TypeSetRoleList, decodeInto[SetRoleList])
	r.Register(TypeStartGame, decodeInto[StartGame])
	r.Register(TypeTeamProposal, decodeInto[TeamProposal])
	r.Register(TypeTeamVote, decodeInto[TeamVote])
	r.Register(TypeTeamVoteChoice, decodeInto[TeamVoteChoice])
	r.Register(TypeMissionStart, decodeInto[MissionStart])
	r.Register(TypeMissionChoice, decodeInto[MissionChoice])
	r.Register(TypeMissionOutcome, decodeInto[MissionOutcome])
	r.Register(TypeAssassination, decodeInto[Assassination])
	r.Register(TypeAssassinationChoice, decodeInto[AssassinationChoice])
	r.Register(TypeGameResult, decodeInto[GameResult])
	r.Register(TypeBackToLobby, decodeInto[BackToLobby])
	r.Register(TypeRoleReveal, decodeInto[RoleReveal])
}
