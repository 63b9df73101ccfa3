package packet

import (
	"encoding/base64"
	"fmt"
)

// Encode writes the wire form of a single packet: one ASCII digit tag
// byte followed by the raw data. Binary data passes through
// unchanged — Base64 wrapping is a payload-level framing decision
// (EncodePayload), not something a lone packet carries.
func Encode(p Packet) []byte {
	out := make([]byte, 1+len(p.Data))
	out[0] = '0' + byte(p.Type)
	copy(out[1:], p.Data)
	return out
}

// Decode parses the wire form of a single packet. If the first byte is
// ASCII 'b', the packet is Base64-framed: the next byte is the tag and
// the remainder is Base64 data, decoded with either the URL-safe or
// the standard alphabet (both padded) — browsers and the reference
// server disagree on which one they emit, so both must be accepted.
func Decode(data []byte) (Packet, error) {
	if len(data) == 0 {
		return Packet{}, ErrEmptyPacket
	}

	if data[0] == 'b' {
		if len(data) < 2 {
			return Packet{}, ErrIncompletePacket
		}
		t, err := typeFromDigit(data[1])
		if err != nil {
			return Packet{}, err
		}
		decoded, err := decodeBase64(data[2:])
		if err != nil {
			return Packet{}, fmt.Errorf("%w: %v", ErrBase64Decode, err)
		}
		return Packet{Type: t, Data: decoded}, nil
	}

	t, err := typeFromDigit(data[0])
	if err != nil {
		return Packet{}, err
	}
	out := make([]byte, len(data)-1)
	copy(out, data[1:])
	return Packet{Type: t, Data: out}, nil
}

func typeFromDigit(b byte) (Type, error) {
	if b < '0' || b > '9' {
		return 0, ErrInvalidPacketType
	}
	t := Type(b - '0')
	if !t.valid() {
		return 0, ErrInvalidPacketType
	}
	return t, nil
}

// decodeBase64 accepts both the URL-safe and the standard alphabet,
// both with padding required (spec.md §9, open question 2).
func decodeBase64(data []byte) ([]byte, error) {
	if out, err := base64.URLEncoding.DecodeString(string(data)); err == nil {
		return out, nil
	}
	return base64.StdEncoding.DecodeString(string(data))
}

// encodeBase64 always emits the URL-safe alphabet, matching what
// browser Engine.IO clients expect to receive (spec.md §9).
func encodeBase64(data []byte) string {
	return base64.URLEncoding.EncodeToString(data)
}
