// Package packet implements the Engine.IO v3 packet and payload wire
// format: one packet is a tag byte plus opaque data; a payload is an
// ordered sequence of packets framed into a single buffer, either as
// text (with an optional Base64 fallback for binary data) or as the
// XHR2 binary framing.
package packet

import "unicode/utf8"

// Type identifies the kind of an Engine.IO packet. Values 0..=6 match
// the wire tag exactly: the byte on the wire is '0'+Type.
type Type byte

const (
	Open Type = iota
	Close
	Ping
	Pong
	Message
	Upgrade
	Noop
)

func (t Type) String() string {
	switch t {
	case Open:
		return "open"
	case Close:
		return "close"
	case Ping:
		return "ping"
	case Pong:
		return "pong"
	case Message:
		return "message"
	case Upgrade:
		return "upgrade"
	case Noop:
		return "noop"
	default:
		return "unknown"
	}
}

// valid reports whether t is one of the seven defined packet types.
func (t Type) valid() bool {
	return t <= Noop
}

// Packet is an immutable tagged value exchanged between client and
// server. Open and Close carry optional metadata as Data; Message
// carries arbitrary application bytes; Ping/Pong carry an optional
// probe string (typically "probe" or "ping").
type Packet struct {
	Type Type
	Data []byte
}

// New constructs a Packet. The returned value owns data; callers
// should not mutate it afterward.
func New(t Type, data []byte) Packet {
	return Packet{Type: t, Data: data}
}

// isBinary reports whether p's data is not valid UTF-8 text, which is
// the signal used by the payload codec to decide whether a packet
// needs Base64 or XHR2 binary framing. A byte-range check (e.g.
// rejecting anything outside 'a'..'Z') is a known bug in one variant
// of the reference implementation (spec.md §9, open question 4); a
// UTF-8 validity check is used here instead.
func (p Packet) isBinary() bool {
	return !utf8.Valid(p.Data)
}
