package packet

import "errors"

// Sentinel errors returned by Decode and DecodePayload. Any one of
// them reaching the dispatcher means the POST body was malformed; all
// map to the same 400 response (spec.md §7). They stay distinct
// sentinels rather than one generic error so that tests can assert on
// the specific failure.
var (
	ErrEmptyPacket            = errors.New("packet: empty packet")
	ErrIncompletePacket       = errors.New("packet: incomplete packet")
	ErrInvalidPacketType      = errors.New("packet: invalid packet type")
	ErrInvalidLengthCharacter = errors.New("packet: invalid length character")
	ErrInvalidLengthDigit     = errors.New("packet: invalid length digit")
	ErrBase64Decode           = errors.New("packet: base64 decode error")
)
