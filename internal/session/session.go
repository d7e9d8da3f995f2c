// internal/session/session.go
package session

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/jason-s-yu/avalon/internal/events"
	"github.com/jason-s-yu/avalon/internal/game"
)

// WaitingFor marks which timed input window, if any, is currently open.
type WaitingFor int

const (
	WaitingNone WaitingFor = iota
	WaitingTeamVote
	WaitingMissionChoices
	WaitingAssassinationGuesses
)

// Conn is a single player's live connection: an outbound packet queue owned
// by the transport's write pump, plus a cancel hook for its goroutines.
type Conn struct {
	Username string
	Out      chan events.Packet
	Cancel   func()
}

// Write queues a packet without blocking. A full or abandoned queue drops
// the packet and logs; the read loop handles actual disconnection.
func (c *Conn) Write(p events.Packet) {
	select {
	case c.Out <- p:
	default:
		log.Warnf("out queue for %s full, dropped %s packet", c.Username, p.Type)
	}
}

// Player is one seat in a session. Conn is nil while disconnected. Role is
// set once per game and cleared on return to lobby.
type Player struct {
	Username string
	Avatar   string
	Role     *game.Role
	Conn     *Conn
}

// Recorder is the stats collaborator. Writes are fire-and-forget: failures
// are logged and never block or fail the session.
type Recorder interface {
	RecordResult(ctx context.Context, sessionID uuid.UUID, username, roleName string, alignment game.Alignment, won bool) error
}

// Config carries the tunables a Session is created with.
type Config struct {
	MinPlayers        int
	VoteTime          time.Duration
	MissionTime       time.Duration
	AssassinationTime time.Duration

	// AllowRoleOverride enables the always_<role> username hook. Development
	// builds only.
	AllowRoleOverride bool

	// Seed fixes the shuffle source when non-zero, for deterministic tests.
	Seed int64
}

// DefaultConfig returns the production tunables.
func DefaultConfig() Config {
	return Config{
		MinPlayers:        5,
		VoteTime:          30 * time.Second,
		MissionTime:       60 * time.Second,
		AssassinationTime: 60 * time.Second,
	}
}

// Session is one lobby and its full game state. All mutation happens on the
// session's run goroutine; everything outside this package reaches the state
// through Do. Timers enqueue their firing the same way, so a vote landing
// the instant a deadline fires is still strictly ordered.
type Session struct {
	ID uuid.UUID

	cfg    Config
	broker *events.Broker[*Session]
	stats  Recorder
	rng    *rand.Rand

	players   map[string]*Player
	joinOrder []string
	host      string

	phase        game.Phase
	enabledRoles game.Roleset
	round        int
	outcomes     [game.Rounds]int
	team         []string
	leaderIndex  int
	playerOrder  []string
	waitingFor   WaitingFor

	votes          map[string]bool
	missionChoices map[string]bool
	merlinGuesses  map[string]string

	barrierGen    int
	barrierAcks   int
	continuations []func()

	epoch  int
	queue  chan func()
	closed chan struct{}

	// OnEmpty is called after the last connection drops, typically wired by
	// the store to delete and close the session.
	OnEmpty func(id uuid.UUID)
}

// New creates a session and starts its run goroutine.
func New(cfg Config, broker *events.Broker[*Session], stats Recorder) *Session {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := &Session{
		ID:          uuid.New(),
		cfg:         cfg,
		broker:      broker,
		stats:       stats,
		rng:         rand.New(rand.NewSource(seed)),
		players:     make(map[string]*Player),
		phase:       game.PhaseLobby,
		leaderIndex: -1,
		queue:       make(chan func(), 64),
		closed:      make(chan struct{}),
	}
	for i := range s.outcomes {
		s.outcomes[i] = -1
	}
	go s.run()
	return s
}

func (s *Session) run() {
	for {
		select {
		case <-s.closed:
			return
		case fn := <-s.queue:
			fn()
		}
	}
}

// Do enqueues fn onto the session's serialized queue. After Close the work
// is silently discarded.
func (s *Session) Do(fn func()) {
	select {
	case <-s.closed:
	case s.queue <- fn:
	}
}

// Close stops the run goroutine and orphans any outstanding timers; their
// enqueued firings are discarded by Do.
func (s *Session) Close() {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
}

// after schedules fn on the session queue once d elapses. The firing is
// dropped if the session's epoch moved on (teardown, return to lobby), so a
// stale deadline can never act on a newer phase.
func (s *Session) after(d time.Duration, fn func()) {
	epoch := s.epoch
	time.AfterFunc(d, func() {
		s.Do(func() {
			if s.epoch != epoch {
				log.Debugf("session %s: stale timer discarded", s.ID)
				return
			}
			fn()
		})
	})
}

// invalidateTimers abandons every outstanding deadline.
func (s *Session) invalidateTimers() {
	s.epoch++
}

// AddPlayer seats a player, or re-attaches a connection for an existing
// seat. New seats are only created in the lobby phase; the first player to
// join becomes host. Must run on the session queue.
func (s *Session) AddPlayer(username, avatar string, conn *Conn) error {
	p, exists := s.players[username]
	if !exists {
		if s.phase != game.PhaseLobby {
			return errors.New("game in progress")
		}
		p = &Player{Username: username, Avatar: avatar}
		s.players[username] = p
		s.joinOrder = append(s.joinOrder, username)
		if s.host == "" {
			s.host = username
		}
	}
	if p.Conn != nil && p.Conn != conn {
		// Replacing a live connection: tell the old one why and shut it down.
		if pkt, err := events.Encode(events.Disconnect{Reason: "replaced by a newer connection"}, events.OriginServer, ""); err == nil {
			p.Conn.Write(pkt)
		}
		if p.Conn.Cancel != nil {
			p.Conn.Cancel()
		}
	}
	p.Conn = conn
	log.Infof("session %s: %s connected (%d seated)", s.ID, username, len(s.players))

	s.sendFullState(p)
	s.broadcastRoster()
	return nil
}

// RemovePlayer detaches a connection. In the lobby the seat is released; in
// a game the seat is kept (its role is still needed for tallies) and only
// the connection goes away. Shrinking the connected count can satisfy an
// armed barrier, so the barrier is re-checked. Must run on the session queue.
func (s *Session) RemovePlayer(username string) {
	p, ok := s.players[username]
	if !ok {
		return
	}
	if p.Conn != nil && p.Conn.Cancel != nil {
		p.Conn.Cancel()
	}
	p.Conn = nil
	log.Infof("session %s: %s disconnected", s.ID, username)

	if s.phase == game.PhaseLobby {
		delete(s.players, username)
		for i, u := range s.joinOrder {
			if u == username {
				s.joinOrder = append(s.joinOrder[:i], s.joinOrder[i+1:]...)
				break
			}
		}
	}

	if s.host == username {
		s.host = ""
		for _, u := range s.joinOrder {
			if s.players[u] != nil && s.players[u].Conn != nil {
				s.host = u
				break
			}
		}
	}

	if s.connectedCount() == 0 {
		if s.OnEmpty != nil {
			s.OnEmpty(s.ID)
		}
		return
	}

	s.broadcastRoster()
	s.checkBarrier()
}

// DetachConn removes a connection only if it is still the seat's live one,
// reporting whether it was. A read loop that lost its seat to a reconnect
// must not evict the replacement. Must run on the session queue.
func (s *Session) DetachConn(username string, conn *Conn) bool {
	p, ok := s.players[username]
	if !ok || p.Conn != conn {
		return false
	}
	s.RemovePlayer(username)
	return true
}

// Done is closed when the session shuts down. Transport goroutines select on
// it so work enqueued around teardown cannot strand them.
func (s *Session) Done() <-chan struct{} { return s.closed }

// Host returns the current host username. Must run on the session queue.
func (s *Session) Host() string { return s.host }

// Phase returns the current phase. Must run on the session queue.
func (s *Session) Phase() game.Phase { return s.phase }

func (s *Session) connectedCount() int {
	n := 0
	for _, p := range s.players {
		if p.Conn != nil {
			n++
		}
	}
	return n
}

func (s *Session) leader() string {
	if s.leaderIndex < 0 || s.leaderIndex >= len(s.playerOrder) {
		return ""
	}
	return s.playerOrder[s.leaderIndex]
}

func (s *Session) advanceLeader() {
	if len(s.playerOrder) == 0 {
		return
	}
	s.leaderIndex = (s.leaderIndex + 1) % len(s.playerOrder)
}

func (s *Session) onTeam(username string) bool {
	for _, u := range s.team {
		if u == username {
			return true
		}
	}
	return false
}

func (s *Session) findRoleHolder(bit game.Roleset) string {
	for _, p := range s.players {
		if p.Role != nil && p.Role.Bit == bit {
			return p.Username
		}
	}
	return ""
}

func (s *Session) gameState() *events.GameState {
	return &events.GameState{
		Phase:    s.phase,
		Round:    s.round,
		Outcomes: s.outcomes,
		Team:     append([]string{}, s.team...),
	}
}

// broadcast sends one event to every connected player via the broker.
func (s *Session) broadcast(ev events.Event) {
	s.broker.Send(s, ev)
}

// deliverAll fans a packet out to every live connection. Installed as the
// server broker's transmit hook.
func (s *Session) deliverAll(p events.Packet) {
	for _, pl := range s.players {
		if pl.Conn != nil {
			pl.Conn.Write(p)
		}
	}
}

// rosterFor builds the players map as seen by viewer, applying the role
// visibility rules. With revealed set every true role is disclosed, as on
// the results screen.
func (s *Session) rosterFor(viewer *Player, revealed bool) map[string]events.PlayerInfo {
	roster := make(map[string]events.PlayerInfo, len(s.players))
	for _, p := range s.players {
		info := events.PlayerInfo{Username: p.Username, Avatar: p.Avatar}
		if revealed && p.Role != nil {
			info.Roles = []string{p.Role.Name}
		} else if viewer != nil {
			var viewerRole *game.Role
			if viewer.Role != nil {
				viewerRole = viewer.Role
			}
			visible := game.VisibleRoles(viewerRole, p.Role, p == viewer)
			if visible != game.RoleNone {
				info.Roles = visible.Names()
			}
		}
		roster[p.Username] = info
	}
	return roster
}

// sendUpdate delivers a personalized variant of ev to every connected
// player, overriding the players map per recipient's visibility.
func (s *Session) sendUpdate(ev events.Update, withRoster, revealed bool) {
	for _, p := range s.players {
		if p.Conn == nil {
			continue
		}
		out := ev
		if withRoster {
			out.Players = s.rosterFor(p, revealed)
		}
		pkt, err := events.Encode(out, events.OriginServer, "")
		if err != nil {
			log.Errorf("session %s: encode update: %v", s.ID, err)
			return
		}
		p.Conn.Write(pkt)
	}
}

// broadcastRoster pushes the current host and players map to everyone.
func (s *Session) broadcastRoster() {
	s.sendUpdate(events.Update{Host: s.host}, true, false)
}

// sendFullState pushes everything a newly attached client needs to render.
func (s *Session) sendFullState(p *Player) {
	if p.Conn == nil {
		return
	}
	roles := s.enabledRoles
	out := events.Update{
		State:        s.gameState(),
		Host:         s.host,
		Leader:       s.leader(),
		EnabledRoles: &roles,
		Players:      s.rosterFor(p, false),
		PlayerOrder:  append([]string{}, s.playerOrder...),
	}
	pkt, err := events.Encode(out, events.OriginServer, "")
	if err != nil {
		log.Errorf("session %s: encode state: %v", s.ID, err)
		return
	}
	p.Conn.Write(pkt)
}

// reassertState re-broadcasts the authoritative state. This is the general
// recovery idiom: a client that sent something invalid is told the truth
// again rather than left to drift.
func (s *Session) reassertState() {
	s.sendUpdate(events.Update{State: s.gameState(), Leader: s.leader()}, false, false)
}
