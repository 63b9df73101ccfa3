package packet

import (
	"bytes"
	"fmt"
	"strconv"
)

// jsonpPrefix/jsonpSuffix wrap a payload for the JSONP fallback
// transport. The reference Engine.IO v3 client expects the
// triple-underscore, quoted-argument form; a double-underscore,
// unquoted form appears in one source variant and is not used here
// (spec.md §9, open question 3).
const (
	jsonpOpen  = `___eio[`
	jsonpMid   = `]("`
	jsonpClose = `");`
)

// EncodePayload frames an ordered sequence of packets into a single
// buffer. jsonpIndex, if non-nil, wraps the result as a JSONP
// response body for the given callback index.
//
// Framing choice per packet, in priority order:
//  1. b64, or (!xhr2 and the packet is binary): Base64-encode the data
//     and frame it as text ("b" + tag digit + base64, length-prefixed).
//  2. xhr2: the XHR2 binary framing (string/binary marker byte, the
//     decimal length as raw byte values 0-9, a 0xFF terminator, then
//     the tag digit and raw data).
//  3. Otherwise: plain text framing (ASCII decimal length, ':', tag
//     digit, raw data).
func EncodePayload(packets []Packet, jsonpIndex *int, b64, xhr2 bool) []byte {
	var body []byte

	for _, p := range packets {
		switch {
		case b64 || (!xhr2 && p.isBinary()):
			b64Data := encodeBase64(p.Data)
			body = appendASCIIDecimal(body, len(b64Data)+1)
			body = append(body, ':', 'b', '0'+byte(p.Type))
			body = append(body, b64Data...)
		case xhr2:
			marker := byte(0)
			if p.isBinary() {
				marker = 1
			}
			body = append(body, marker)
			body = appendRawDigits(body, len(p.Data)+1)
			body = append(body, 0xFF, '0'+byte(p.Type))
			body = append(body, p.Data...)
		default:
			body = appendASCIIDecimal(body, len(p.Data)+1)
			body = append(body, ':', '0'+byte(p.Type))
			body = append(body, p.Data...)
		}
	}

	if jsonpIndex == nil {
		return body
	}

	escaped := bytes.ReplaceAll(body, []byte(`"`), []byte(`\"`))
	out := make([]byte, 0, len(jsonpOpen)+8+len(jsonpMid)+len(escaped)+len(jsonpClose))
	out = append(out, jsonpOpen...)
	out = append(out, strconv.Itoa(*jsonpIndex)...)
	out = append(out, jsonpMid...)
	out = append(out, escaped...)
	out = append(out, jsonpClose...)
	return out
}

// DecodePayload is the inverse of EncodePayload for the text and XHR2
// framings. b64 is accepted for signature symmetry with the
// reference design but is not needed to decode: a Base64-framed
// packet self-identifies with a leading 'b' tag byte regardless of
// which query flag produced it.
func DecodePayload(data []byte, b64, xhr2 bool) ([]Packet, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPacket
	}
	if xhr2 {
		return decodeXHR2Payload(data)
	}
	return decodeTextPayload(data)
}

func decodeTextPayload(data []byte) ([]Packet, error) {
	var packets []Packet
	i, n := 0, len(data)

	for i < n {
		length := 0
		for i < n && data[i] != ':' {
			c := data[i]
			if c < '0' || c > '9' {
				return nil, fmt.Errorf("%w: %q", ErrInvalidLengthCharacter, c)
			}
			length = length*10 + int(c-'0')
			i++
		}
		if i >= n {
			return nil, ErrIncompletePacket
		}
		i++ // consume ':'

		if n-i < length {
			return nil, ErrIncompletePacket
		}
		p, err := Decode(data[i : i+length])
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
		i += length
	}

	return packets, nil
}

func decodeXHR2Payload(data []byte) ([]Packet, error) {
	var packets []Packet
	i, n := 0, len(data)

	for i < n {
		i++ // skip the binary/string marker byte

		length := 0
		for i < n && data[i] != 0xFF {
			d := data[i]
			if d > 9 {
				return nil, fmt.Errorf("%w: %d", ErrInvalidLengthDigit, d)
			}
			length = length*10 + int(d)
			i++
		}
		if i >= n {
			return nil, ErrIncompletePacket
		}
		i++ // consume 0xFF

		if n-i < length || length == 0 {
			return nil, ErrIncompletePacket
		}
		p, err := Decode(data[i : i+length])
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
		i += length
	}

	return packets, nil
}

// appendASCIIDecimal appends the decimal digits of n as ASCII
// characters ('0'..'9'). Writing each digit as a raw byte value
// instead of its ASCII character is the redesign-flagged bug in one
// source variant (spec.md §9, open question 1) — never done here.
func appendASCIIDecimal(dst []byte, n int) []byte {
	return append(dst, strconv.Itoa(n)...)
}

// appendRawDigits appends the decimal digits of n as raw byte values
// 0..9, per the XHR2 binary framing (spec.md §4.1).
func appendRawDigits(dst []byte, n int) []byte {
	for _, c := range strconv.Itoa(n) {
		dst = append(dst, byte(c-'0'))
	}
	return dst
}
