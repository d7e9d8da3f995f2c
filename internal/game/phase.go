// internal/game/phase.go
package game

// Phase is the coarse lifecycle state of a session.
type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhaseInGame  Phase = "in_game"
	PhaseResults Phase = "results"
)
