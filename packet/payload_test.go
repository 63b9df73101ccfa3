package packet

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestDecodeTextPayloadMultiplePackets(t *testing.T) {
	in := []byte("6:4Hello11:4HelloWorld")
	got, err := DecodePayload(in, false, false)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	want := []Packet{
		New(Message, []byte("Hello")),
		New(Message, []byte("HelloWorld")),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeTextPayloadInvalidLengthCharacter(t *testing.T) {
	_, err := DecodePayload([]byte("asd:asd"), false, false)
	if !errors.Is(err, ErrInvalidLengthCharacter) {
		t.Errorf("got %v, want ErrInvalidLengthCharacter", err)
	}
}

func TestDecodeTextPayloadIncompletePacket(t *testing.T) {
	_, err := DecodePayload([]byte("10:2asd"), false, false)
	if !errors.Is(err, ErrIncompletePacket) {
		t.Errorf("got %v, want ErrIncompletePacket", err)
	}
}

func TestDecodePayloadEmpty(t *testing.T) {
	_, err := DecodePayload(nil, false, false)
	if !errors.Is(err, ErrEmptyPacket) {
		t.Errorf("got %v, want ErrEmptyPacket", err)
	}
}

func TestEncodeDecodeTextPayloadRoundTrip(t *testing.T) {
	packets := []Packet{
		New(Open, []byte(`{"sid":"x"}`)),
		New(Message, []byte("hi")),
		New(Ping, nil),
	}
	encoded := EncodePayload(packets, nil, false, false)
	decoded, err := DecodePayload(encoded, false, false)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if diff := cmp.Diff(packets, decoded, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeDecodeBase64FallbackRoundTrip(t *testing.T) {
	packets := []Packet{
		New(Message, []byte{0x00, 0x01, 0xFF, 0xFE}),
		New(Message, []byte("text too, once b64 is forced")),
	}
	encoded := EncodePayload(packets, nil, true, false)
	decoded, err := DecodePayload(encoded, true, false)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if diff := cmp.Diff(packets, decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeDecodeXHR2RoundTrip(t *testing.T) {
	packets := []Packet{
		New(Message, []byte("plain text packet")),
		New(Message, []byte{0x00, 0x01, 0xFF, 0xFE, 0x10}),
		New(Noop, nil),
	}
	encoded := EncodePayload(packets, nil, false, true)
	decoded, err := DecodePayload(encoded, false, true)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if diff := cmp.Diff(packets, decoded, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodePayloadJSONPWrapsAndEscapesQuotes(t *testing.T) {
	packets := []Packet{New(Message, []byte(`say "hi"`))}
	idx := 3
	got := string(EncodePayload(packets, &idx, false, false))

	want := `___eio[3]("9:4say \"hi\"");`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEncodeXHR2UsesBinaryMarkerForNonUTF8Data(t *testing.T) {
	p := New(Message, []byte{0xFF, 0xFE, 0x00})
	encoded := EncodePayload([]Packet{p}, nil, false, true)
	if encoded[0] != 1 {
		t.Errorf("marker byte = %d, want 1 for binary data", encoded[0])
	}
}

func TestEncodeXHR2UsesStringMarkerForUTF8Data(t *testing.T) {
	p := New(Message, []byte("hello"))
	encoded := EncodePayload([]Packet{p}, nil, false, true)
	if encoded[0] != 0 {
		t.Errorf("marker byte = %d, want 0 for text data", encoded[0])
	}
}
