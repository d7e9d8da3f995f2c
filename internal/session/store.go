// internal/session/store.go
package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jason-s-yu/avalon/internal/events"
)

// Store manages live sessions in memory and the player -> session index the
// broker uses to resolve inbound packet origins.
type Store struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	byPlayer map[string]uuid.UUID
}

// NewStore returns an empty in-memory session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[uuid.UUID]*Session),
		byPlayer: make(map[string]uuid.UUID),
	}
}

// Add stores a session and wires its teardown: when the last connection
// drops, the session is removed and its run loop stopped, which also
// abandons any pending timers and barrier continuations.
func (st *Store) Add(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
	s.OnEmpty = func(id uuid.UUID) {
		st.Delete(id)
	}
}

// Get retrieves a session if it exists.
func (st *Store) Get(id uuid.UUID) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Delete removes the session and closes it.
func (st *Store) Delete(id uuid.UUID) {
	st.mu.Lock()
	s := st.sessions[id]
	delete(st.sessions, id)
	for username, sid := range st.byPlayer {
		if sid == id {
			delete(st.byPlayer, username)
		}
	}
	st.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

// BindPlayer points a username at the session it is connected to.
func (st *Store) BindPlayer(username string, id uuid.UUID) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.byPlayer[username] = id
}

// UnbindPlayer drops a username's session binding.
func (st *Store) UnbindPlayer(username string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.byPlayer, username)
}

// ResolvePlayer maps a packet origin to its session. Installed as the server
// broker's resolve hook.
func (st *Store) ResolvePlayer(username string) (*Session, bool) {
	st.mu.Lock()
	id, ok := st.byPlayer[username]
	st.mu.Unlock()
	if !ok {
		return nil, false
	}
	return st.Get(id)
}

// NewServerBroker wires the server side of the event channel: packets
// originate from "server" with no credential, targets resolve through the
// store, and transmission fans out to every live connection in the session.
func NewServerBroker(registry *events.Registry, store *Store) *events.Broker[*Session] {
	b := events.NewBroker[*Session](registry)
	b.Origin = func() string { return events.OriginServer }
	b.Resolve = store.ResolvePlayer
	b.Transmit = func(s *Session, p events.Packet) { s.deliverAll(p) }
	RegisterHandlers(b)
	return b
}
