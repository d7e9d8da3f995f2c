// internal/session/barrier.go
package session

import log "github.com/sirupsen/logrus"

// armBarrier registers a one-shot continuation against the current barrier
// generation. The barrier fires once every currently connected player has
// acknowledged with a ready event; the connected count is read at fire time,
// not arm time, so a mid-phase disconnect lowers the bar instead of
// deadlocking the game. A continuation may arm a new barrier itself, which
// lands in the next generation (broadcast, wait, broadcast next).
//
// Must run on the session queue.
func (s *Session) armBarrier(fn func()) {
	s.continuations = append(s.continuations, fn)
	// Acks may already satisfy the new bar (e.g. a player disconnected
	// between broadcast and arm).
	s.checkBarrier()
}

// ackReady counts one ready acknowledgment. Must run on the session queue.
func (s *Session) ackReady(username string) {
	if p, ok := s.players[username]; !ok || p.Conn == nil {
		log.Warnf("session %s: ready from unseated player %s", s.ID, username)
		return
	}
	s.barrierAcks++
	s.checkBarrier()
}

// checkBarrier fires the barrier when the ack counter has reached the
// connected player count: the counter resets, the generation increments
// (acks left over from the consumed generation cannot re-fire it), and the
// continuations run once, in arm order.
func (s *Session) checkBarrier() {
	n := s.connectedCount()
	if n == 0 || s.barrierAcks < n {
		return
	}
	s.barrierAcks = 0
	s.barrierGen++
	conts := s.continuations
	s.continuations = nil
	for _, fn := range conts {
		fn()
	}
}
