// internal/events/events.go
package events

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// OriginServer is the origin stamped on every packet the server sends.
// Client packets carry the authenticated username instead.
const OriginServer = "server"

// Event is one typed message exchanged between server and clients.
type Event interface {
	EventType() string
}

// validator is implemented by payloads with required fields; a failed
// validation fails the decode, so handlers never see a half-populated event.
type validator interface {
	validate() error
}

// Packet is the wire envelope around an encoded event. Token is the sender's
// JWT on client packets and empty on server packets.
type Packet struct {
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
	Origin string          `json:"origin"`
	Token  string          `json:"token,omitempty"`
}

// Registry maps event type identifiers to payload decoders. One registry is
// constructed per process and passed by reference; there is no global state.
type Registry struct {
	decoders map[string]func(json.RawMessage) (Event, error)
}

// NewRegistry returns a registry pre-populated with every built-in event type.
func NewRegistry() *Registry {
	r := &Registry{decoders: make(map[string]func(json.RawMessage) (Event, error))}
	registerBuiltin(r)
	return r
}

// Register installs a decoder for an event type identifier.
func (r *Registry) Register(typ string, decode func(json.RawMessage) (Event, error)) {
	r.decoders[typ] = decode
}

// Decode rebuilds a typed event from a packet's payload. Unknown types
// return ok == false and are dropped by the caller.
func (r *Registry) Decode(p Packet) (Event, bool, error) {
	decode, ok := r.decoders[p.Type]
	if !ok {
		return nil, false, nil
	}
	ev, err := decode(p.Data)
	if err != nil {
		return nil, true, fmt.Errorf("decode %s payload: %w", p.Type, err)
	}
	if v, ok := ev.(validator); ok {
		if err := v.validate(); err != nil {
			return nil, true, fmt.Errorf("invalid %s payload: %w", p.Type, err)
		}
	}
	return ev, true, nil
}

// Encode wraps an event into a wire packet.
func Encode(ev Event, origin, token string) (Packet, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return Packet{}, fmt.Errorf("encode %s payload: %w", ev.EventType(), err)
	}
	return Packet{Type: ev.EventType(), Data: data, Origin: origin, Token: token}, nil
}

// decodeInto is the decoder for plain JSON payload structs.
func decodeInto[E Event](raw json.RawMessage) (Event, error) {
	var ev E
	if len(raw) == 0 {
		return ev, nil
	}
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Handler processes one dispatched event against its session. Origin is the
// packet origin: the sending player's username, or OriginServer.
type Handler[T any] func(target T, origin string, ev Event)

// Broker is one side's view of the event channel: the shared codec registry,
// this side's ordered handler lists, and the side-specific origin/token and
// transport hooks. The server and client brokers differ only in those hooks.
type Broker[T any] struct {
	registry *Registry
	handlers map[string][]Handler[T]

	// Origin returns this side's packet origin ("server", or the
	// authenticated username on a client).
	Origin func() string

	// Token returns the credential attached to outbound packets. Nil on the
	// server side, where packets carry no token.
	Token func() string

	// Resolve maps a packet origin to the session it addresses.
	Resolve func(origin string) (T, bool)

	// Transmit forwards an encoded packet to the transport.
	Transmit func(target T, p Packet)
}

// NewBroker constructs a broker over a shared registry.
func NewBroker[T any](registry *Registry) *Broker[T] {
	return &Broker[T]{
		registry: registry,
		handlers: make(map[string][]Handler[T]),
	}
}

// On appends a handler for an event type. Handlers run in registration order.
func (b *Broker[T]) On(typ string, h Handler[T]) {
	b.handlers[typ] = append(b.handlers[typ], h)
}

// Dispatch invokes every handler registered for the event, in order. A
// panicking handler is isolated so the remaining handlers still run.
func (b *Broker[T]) Dispatch(target T, origin string, ev Event) {
	for _, h := range b.handlers[ev.EventType()] {
		b.dispatchOne(target, origin, ev, h)
	}
}

func (b *Broker[T]) dispatchOne(target T, origin string, ev Event, h Handler[T]) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("handler for %s panicked: %v", ev.EventType(), r)
		}
	}()
	h(target, origin, ev)
}

// Receive decodes an inbound packet, resolves its target session by origin
// and dispatches it. Packets of unknown type are dropped; this can mask
// protocol version skew, so the drop is logged.
func (b *Broker[T]) Receive(p Packet) {
	ev, known, err := b.registry.Decode(p)
	if !known {
		log.Warnf("dropping packet of unknown type %q from %s", p.Type, p.Origin)
		return
	}
	if err != nil {
		log.Warnf("dropping malformed packet from %s: %v", p.Origin, err)
		return
	}
	target, ok := b.Resolve(p.Origin)
	if !ok {
		log.Warnf("no session for origin %s, dropping %s", p.Origin, p.Type)
		return
	}
	b.Dispatch(target, p.Origin, ev)
}

// Send encodes an event with this side's origin and credential and forwards
// it to the transport.
func (b *Broker[T]) Send(target T, ev Event) {
	token := ""
	if b.Token != nil {
		token = b.Token()
	}
	p, err := Encode(ev, b.Origin(), token)
	if err != nil {
		log.Errorf("failed to encode %s event: %v", ev.EventType(), err)
		return
	}
	b.Transmit(target, p)
}
