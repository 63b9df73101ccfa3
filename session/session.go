// Package session implements the Engine.IO session state machine: the
// per-client Opening/Open/Closing/Closed lifecycle, heartbeat
// timestamps, and the single-slot callback registry the embedding
// application uses to observe connect/message/close events.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"engineio/packet"
	"engineio/transport"
)

// State is a position in the session lifecycle. Closed is absorbing:
// once reached, a Session never transitions again.
type State int32

const (
	Opening State = iota
	Open
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Opening:
		return "opening"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one client's logical connection. It owns exactly one
// Polling transport and is exclusively owned by the registry that
// holds it (§5 lock order: Registry → Session → (buffer | callbacks)).
type Session struct {
	id        string
	transport *transport.Polling

	b64        bool
	xhr2       bool
	jsonpIndex *int

	state    atomic.Int32
	lastPong atomic.Int64
	lastPing atomic.Int64
	closed   atomic.Bool

	cbMu      sync.RWMutex
	onMessage func([]byte)
	onClose   func(reason string)
	onPacket  func(packet.Packet)
	onFlush   func([]packet.Packet)

	closeOnce sync.Once
	removeFn  func(id string)

	log zerolog.Logger
}

// New constructs a Session in the Opening state. jsonpIndex is nil
// unless the client supplied a `j=<index>` query parameter.
func New(id string, b64, xhr2 bool, jsonpIndex *int, log zerolog.Logger) *Session {
	s := &Session{
		id:         id,
		transport:  transport.NewPolling(),
		b64:        b64,
		xhr2:       xhr2,
		jsonpIndex: jsonpIndex,
		log:        log.With().Str("sid", id).Logger(),
	}
	now := time.Now().UnixNano()
	s.lastPong.Store(now)
	s.lastPing.Store(now)
	s.state.Store(int32(Opening))
	return s
}

// ID returns the session's opaque identifier.
func (s *Session) ID() string { return s.id }

// State returns the session's current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// IsClosed reports whether Close has been called. The flag is set as
// the first step of closing, before on_close fires.
func (s *Session) IsClosed() bool { return s.closed.Load() }

// MarkOpen transitions Opening → Open. Called by the dispatcher once
// the handshake response has actually been written.
func (s *Session) MarkOpen() {
	s.state.CompareAndSwap(int32(Opening), int32(Open))
}

// SetRemover registers the callback the registry uses to remove this
// session from its map. Close invokes it at most once.
func (s *Session) SetRemover(fn func(id string)) {
	s.cbMu.Lock()
	s.removeFn = fn
	s.cbMu.Unlock()
}

// OnMessage registers the callback invoked for each inbound Message
// packet. Re-registering replaces the previous callback; an
// in-flight invocation of the old callback is not cancelled.
func (s *Session) OnMessage(cb func(data []byte)) {
	s.cbMu.Lock()
	s.onMessage = cb
	s.cbMu.Unlock()
}

// OnClose registers the callback invoked exactly once when the
// session closes, regardless of cause.
func (s *Session) OnClose(cb func(reason string)) {
	s.cbMu.Lock()
	s.onClose = cb
	s.cbMu.Unlock()
}

// OnPacket registers the callback invoked for every inbound packet,
// before any type-specific handling.
func (s *Session) OnPacket(cb func(p packet.Packet)) {
	s.cbMu.Lock()
	s.onPacket = cb
	s.cbMu.Unlock()
}

// OnFlush registers the callback invoked after a drained payload has
// been handed to the HTTP response, in the same order as the payload.
func (s *Session) OnFlush(cb func(packets []packet.Packet)) {
	s.cbMu.Lock()
	s.onFlush = cb
	s.cbMu.Unlock()
}

// Emit queues a packet for the next GET to drain. Non-blocking;
// silently discarded once the session is closed.
func (s *Session) Emit(p packet.Packet) {
	if s.closed.Load() {
		return
	}
	s.transport.Emit(p)
}

// Send is a convenience wrapper for emitting a Message packet.
func (s *Session) Send(data []byte) {
	s.Emit(packet.New(packet.Message, data))
}

// DrainAndEncode blocks (bounded by ctx) for at least one outbound
// packet, then encodes the drained packets per this session's
// framing flags. The caller is responsible for writing the bytes to
// the HTTP response and then calling FireOnFlush with the returned
// packets.
func (s *Session) DrainAndEncode(ctx context.Context) (pkts []packet.Packet, encoded []byte) {
	pkts = s.transport.DrainOrWait(ctx)
	encoded = packet.EncodePayload(pkts, s.jsonpIndex, s.b64, s.xhr2)
	return pkts, encoded
}

// ContentType returns the response Content-Type for this session's
// framing: JSONP responses are served as JavaScript, everything else
// as an opaque octet stream.
func (s *Session) ContentType() string {
	if s.jsonpIndex != nil {
		return "text/javascript; charset=UTF-8"
	}
	return "application/octet-stream"
}

// FireOnFlush invokes the on_flush callback, if any, with the packets
// that were just handed to the HTTP response.
func (s *Session) FireOnFlush(pkts []packet.Packet) {
	s.cbMu.RLock()
	cb := s.onFlush
	s.cbMu.RUnlock()
	if cb != nil {
		cb(pkts)
	}
}

// Ingest decodes an inbound payload and dispatches each packet to the
// state machine. Codec errors are returned unwrapped so the
// dispatcher can map them to the correct HTTP status; the session is
// not closed on a decode error.
func (s *Session) Ingest(data []byte) error {
	if s.closed.Load() {
		return nil
	}
	pkts, err := packet.DecodePayload(data, s.b64, s.xhr2)
	if err != nil {
		return err
	}
	for _, p := range pkts {
		s.handlePacket(p)
	}
	return nil
}

func (s *Session) handlePacket(p packet.Packet) {
	s.cbMu.RLock()
	onPacket := s.onPacket
	s.cbMu.RUnlock()
	if onPacket != nil {
		onPacket(p)
	}

	switch p.Type {
	case packet.Close:
		s.closeInternal("client requested", "transport close")
	case packet.Ping:
		if string(p.Data) == "probe" {
			s.transport.Emit(packet.New(packet.Pong, []byte("probe")))
		}
	case packet.Pong:
		s.lastPong.Store(time.Now().UnixNano())
	case packet.Message:
		s.cbMu.RLock()
		onMessage := s.onMessage
		s.cbMu.RUnlock()
		if onMessage != nil {
			onMessage(p.Data)
		}
	case packet.Upgrade, packet.Noop, packet.Open:
		// no-op: no websocket transport exists to upgrade into.
	}
}

// LastPong returns the last time a Pong (or a successful poll) was
// observed.
func (s *Session) LastPong() time.Time {
	return time.Unix(0, s.lastPong.Load())
}

// Ping emits a server-initiated heartbeat Ping and records the time
// it was sent.
func (s *Session) Ping() {
	s.lastPing.Store(time.Now().UnixNano())
	s.transport.Emit(packet.New(packet.Ping, []byte("ping")))
}

// LastPing returns the last time a server-initiated Ping was sent.
func (s *Session) LastPing() time.Time {
	return time.Unix(0, s.lastPing.Load())
}

// TouchPong resets the liveness clock without a Pong packet, used by
// the dispatcher for the "a successful poll counts as liveness" rule
// of a plain GET.
func (s *Session) TouchPong() {
	s.lastPong.Store(time.Now().UnixNano())
}

// Close transitions the session to Closing then Closed, discards the
// transport's outbound buffer in favor of a final Close packet,
// removes the session from its registry, and fires on_close with
// reason exactly once. Calling Close more than once is a no-op after
// the first call completes.
func (s *Session) Close(reason string) {
	s.closeInternal(reason, reason)
}

func (s *Session) closeInternal(logReason, callbackReason string) {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.state.Store(int32(Closing))
		s.transport.Close()

		s.cbMu.RLock()
		removeFn := s.removeFn
		s.cbMu.RUnlock()
		if removeFn != nil {
			removeFn(s.id)
		}

		s.state.Store(int32(Closed))
		s.log.Info().Str("reason", logReason).Msg("session closed")

		s.cbMu.RLock()
		onClose := s.onClose
		s.cbMu.RUnlock()
		if onClose != nil {
			onClose(callbackReason)
		}
	})
}
