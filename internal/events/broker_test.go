// internal/events/broker_test.go
package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/avalon/internal/game"
)

func mustPacket(t *testing.T, ev Event, origin string) Packet {
	t.Helper()
	p, err := Encode(ev, origin, "")
	require.NoError(t, err)
	return p
}

func TestRegistryDecode(t *testing.T) {
	r := NewRegistry()

	p := mustPacket(t, TeamProposal{Players: []string{"alice", "bob"}}, "alice")
	ev, known, err := r.Decode(p)
	require.True(t, known)
	require.NoError(t, err)
	assert.Equal(t, TeamProposal{Players: []string{"alice", "bob"}}, ev)
}

func TestRegistryDecodeUnknownType(t *testing.T) {
	r := NewRegistry()

	_, known, err := r.Decode(Packet{Type: "teleport", Origin: "alice"})
	assert.False(t, known)
	assert.NoError(t, err)
}

func TestRegistryDecodeValidation(t *testing.T) {
	r := NewRegistry()

	// An empty team fails the payload's own validation.
	p := mustPacket(t, TeamProposal{}, "alice")
	_, known, err := r.Decode(p)
	assert.True(t, known)
	assert.Error(t, err)

	p = mustPacket(t, AssassinationChoice{}, "alice")
	_, _, err = r.Decode(p)
	assert.Error(t, err)
}

func TestRegistryDecodeMalformedPayload(t *testing.T) {
	r := NewRegistry()

	p := Packet{Type: TypeTeamVoteChoice, Data: json.RawMessage(`{"vote": "yes"}`)}
	_, known, err := r.Decode(p)
	assert.True(t, known)
	assert.Error(t, err)
}

func TestEncodeCarriesOriginAndToken(t *testing.T) {
	p, err := Encode(Ready{}, "alice", "tok123")
	require.NoError(t, err)
	assert.Equal(t, TypeReady, p.Type)
	assert.Equal(t, "alice", p.Origin)
	assert.Equal(t, "tok123", p.Token)
}

// testTarget stands in for a session on either side of the broker.
type testTarget struct {
	name string
	sent []Packet
}

func newTestBroker(targets map[string]*testTarget) *Broker[*testTarget] {
	b := NewBroker[*testTarget](NewRegistry())
	b.Origin = func() string { return OriginServer }
	b.Resolve = func(origin string) (*testTarget, bool) {
		tg, ok := targets[origin]
		return tg, ok
	}
	b.Transmit = func(tg *testTarget, p Packet) {
		tg.sent = append(tg.sent, p)
	}
	return b
}

func TestBrokerDispatchOrder(t *testing.T) {
	tg := &testTarget{name: "s1"}
	b := newTestBroker(map[string]*testTarget{"alice": tg})

	var calls []string
	b.On(TypeReady, func(target *testTarget, origin string, ev Event) {
		calls = append(calls, "first:"+origin)
	})
	b.On(TypeReady, func(target *testTarget, origin string, ev Event) {
		calls = append(calls, "second:"+origin)
	})

	b.Receive(mustPacket(t, Ready{}, "alice"))
	assert.Equal(t, []string{"first:alice", "second:alice"}, calls)
}

func TestBrokerPanicIsolation(t *testing.T) {
	tg := &testTarget{name: "s1"}
	b := newTestBroker(map[string]*testTarget{"alice": tg})

	ran := false
	b.On(TypeReady, func(target *testTarget, origin string, ev Event) {
		panic("boom")
	})
	b.On(TypeReady, func(target *testTarget, origin string, ev Event) {
		ran = true
	})

	b.Receive(mustPacket(t, Ready{}, "alice"))
	assert.True(t, ran)
}

func TestBrokerReceiveDrops(t *testing.T) {
	tg := &testTarget{name: "s1"}
	b := newTestBroker(map[string]*testTarget{"alice": tg})

	dispatched := 0
	b.On(TypeReady, func(target *testTarget, origin string, ev Event) {
		dispatched++
	})

	// Unknown type, unresolvable origin, and malformed payload all drop
	// without dispatching.
	b.Receive(Packet{Type: "teleport", Origin: "alice"})
	b.Receive(mustPacket(t, Ready{}, "stranger"))
	b.Receive(Packet{Type: TypeReady, Data: json.RawMessage(`{`), Origin: "alice"})
	assert.Zero(t, dispatched)

	b.Receive(mustPacket(t, Ready{}, "alice"))
	assert.Equal(t, 1, dispatched)
}

func TestBrokerSend(t *testing.T) {
	tg := &testTarget{name: "s1"}
	b := newTestBroker(map[string]*testTarget{"alice": tg})

	rs := game.RoleMerlin | game.RoleAssassin
	b.Send(tg, Update{EnabledRoles: &rs})

	require.Len(t, tg.sent, 1)
	p := tg.sent[0]
	assert.Equal(t, TypeUpdate, p.Type)
	assert.Equal(t, OriginServer, p.Origin)
	assert.Empty(t, p.Token)

	// A client-side broker stamps its username and credential instead.
	cb := NewBroker[*testTarget](NewRegistry())
	cb.Origin = func() string { return "alice" }
	cb.Token = func() string { return "jwt" }
	cb.Transmit = func(target *testTarget, p Packet) {
		target.sent = append(target.sent, p)
	}
	cb.Send(tg, Ready{})

	require.Len(t, tg.sent, 2)
	assert.Equal(t, "alice", tg.sent[1].Origin)
	assert.Equal(t, "jwt", tg.sent[1].Token)
}
