// internal/session/barrier_test.go
package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/avalon/internal/events"
)

func newTestConn(username string) *Conn {
	return &Conn{
		Username: username,
		Out:      make(chan events.Packet, 256),
		Cancel:   func() {},
	}
}

// doSync runs fn on the session queue and waits for it.
func doSync(t *testing.T, s *Session, fn func()) {
	t.Helper()
	done := make(chan struct{})
	s.Do(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session queue stalled")
	}
}

// newBarrierSession seats n connected players on a fresh session.
func newBarrierSession(t *testing.T, usernames []string) (*Session, map[string]*Conn) {
	t.Helper()
	s := New(Config{MinPlayers: len(usernames)}, nil, nil)
	t.Cleanup(s.Close)

	conns := make(map[string]*Conn, len(usernames))
	for _, u := range usernames {
		u := u
		c := newTestConn(u)
		conns[u] = c
		doSync(t, s, func() {
			require.NoError(t, s.AddPlayer(u, "", c))
		})
	}
	return s, conns
}

func TestBarrierFiresOnAllAcks(t *testing.T) {
	users := []string{"a", "b", "c", "d"}
	s, _ := newBarrierSession(t, users)

	fired := 0
	doSync(t, s, func() { s.armBarrier(func() { fired++ }) })

	for i, u := range users {
		i, u := i, u
		doSync(t, s, func() {
			s.ackReady(u)
			if i < len(users)-1 {
				assert.Zero(t, fired)
			}
		})
	}
	doSync(t, s, func() { assert.Equal(t, 1, fired) })

	// A straggling extra ack cannot re-fire the consumed generation.
	doSync(t, s, func() { s.ackReady("a") })
	doSync(t, s, func() { assert.Equal(t, 1, fired) })
}

func TestBarrierCountsAcksNotPlayers(t *testing.T) {
	s, _ := newBarrierSession(t, []string{"a", "b"})

	fired := 0
	doSync(t, s, func() { s.armBarrier(func() { fired++ }) })

	// The barrier is a counter: two acks from the same player satisfy it.
	doSync(t, s, func() { s.ackReady("a") })
	doSync(t, s, func() { s.ackReady("a") })
	doSync(t, s, func() { assert.Equal(t, 1, fired) })
}

func TestBarrierLeftoverAcksCarryOver(t *testing.T) {
	s, _ := newBarrierSession(t, []string{"a", "b"})

	first, second := 0, 0
	doSync(t, s, func() { s.armBarrier(func() { first++ }) })
	doSync(t, s, func() { s.ackReady("a") })
	doSync(t, s, func() { s.ackReady("b") })

	// One stray ack lands between generations; it counts toward the next.
	doSync(t, s, func() { s.ackReady("a") })
	doSync(t, s, func() {
		s.armBarrier(func() { second++ })
		assert.Zero(t, second)
	})
	doSync(t, s, func() { s.ackReady("b") })
	doSync(t, s, func() {
		assert.Equal(t, 1, first)
		assert.Equal(t, 1, second)
	})
}

func TestBarrierUnseatedAckIgnored(t *testing.T) {
	s, _ := newBarrierSession(t, []string{"a", "b"})

	fired := 0
	doSync(t, s, func() { s.armBarrier(func() { fired++ }) })
	doSync(t, s, func() { s.ackReady("stranger") })
	doSync(t, s, func() { s.ackReady("a") })
	doSync(t, s, func() { assert.Zero(t, fired) })
}

func TestBarrierDisconnectLowersBar(t *testing.T) {
	s, _ := newBarrierSession(t, []string{"a", "b", "c"})

	fired := 0
	doSync(t, s, func() { s.armBarrier(func() { fired++ }) })
	doSync(t, s, func() { s.ackReady("a") })
	doSync(t, s, func() { s.ackReady("b") })
	doSync(t, s, func() { assert.Zero(t, fired) })

	// The straggler disconnecting satisfies the barrier instead of
	// deadlocking the remaining players.
	doSync(t, s, func() { s.RemovePlayer("c") })
	doSync(t, s, func() { assert.Equal(t, 1, fired) })
}

func TestBarrierChainedContinuation(t *testing.T) {
	users := []string{"a", "b"}
	s, _ := newBarrierSession(t, users)

	first, second := 0, 0
	doSync(t, s, func() {
		s.armBarrier(func() {
			first++
			// Arming from a continuation lands in the next generation.
			s.armBarrier(func() { second++ })
		})
	})

	for _, u := range users {
		u := u
		doSync(t, s, func() { s.ackReady(u) })
	}
	doSync(t, s, func() {
		assert.Equal(t, 1, first)
		assert.Zero(t, second)
	})

	for _, u := range users {
		u := u
		doSync(t, s, func() { s.ackReady(u) })
	}
	doSync(t, s, func() { assert.Equal(t, 1, second) })
}
