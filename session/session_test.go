package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"engineio/packet"
)

func newTestSession() *Session {
	return New("sid-1", false, false, nil, zerolog.Nop())
}

func TestCloseIsIdempotent(t *testing.T) {
	s := newTestSession()
	var fired atomic.Int32
	s.OnClose(func(reason string) { fired.Add(1) })

	s.Close("server shutdown")
	s.Close("server shutdown")
	s.Close("server shutdown")

	if got := fired.Load(); got != 1 {
		t.Errorf("on_close fired %d times, want 1", got)
	}
	if s.State() != Closed {
		t.Errorf("state = %v, want Closed", s.State())
	}
}

func TestCloseRemovesFromRegistry(t *testing.T) {
	s := newTestSession()
	var removedID string
	s.SetRemover(func(id string) { removedID = id })

	s.Close("done")

	if removedID != "sid-1" {
		t.Errorf("removeFn called with %q, want sid-1", removedID)
	}
}

func TestEmitAfterCloseIsSilentlyDiscarded(t *testing.T) {
	s := newTestSession()
	s.Close("done")
	s.Emit(packet.New(packet.Message, []byte("too late")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	pkts, _ := s.DrainAndEncode(ctx)

	for _, p := range pkts {
		if p.Type == packet.Message {
			t.Errorf("got a Message packet after close: %v", pkts)
		}
	}
}

func TestIngestClosePacketFiresTransportCloseReason(t *testing.T) {
	s := newTestSession()
	var reason string
	s.OnClose(func(r string) { reason = r })

	if err := s.Ingest(packet.EncodePayload([]packet.Packet{packet.New(packet.Close, nil)}, nil, false, false)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if reason != "transport close" {
		t.Errorf("on_close reason = %q, want %q", reason, "transport close")
	}
	if s.State() != Closed {
		t.Errorf("state = %v, want Closed", s.State())
	}
}

func TestIngestMessageInvokesOnMessage(t *testing.T) {
	s := newTestSession()
	var got []byte
	s.OnMessage(func(data []byte) { got = data })

	err := s.Ingest(packet.EncodePayload([]packet.Packet{packet.New(packet.Message, []byte("hello"))}, nil, false, false))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("on_message got %q, want hello", got)
	}
}

func TestIngestProbePingRepliesWithProbePong(t *testing.T) {
	s := newTestSession()
	if err := s.Ingest(packet.EncodePayload([]packet.Packet{packet.New(packet.Ping, []byte("probe"))}, nil, false, false)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	pkts, _ := s.DrainAndEncode(ctx)

	if len(pkts) != 1 || pkts[0].Type != packet.Pong || string(pkts[0].Data) != "probe" {
		t.Errorf("got %v, want a single probe Pong", pkts)
	}
}

func TestIngestPongUpdatesLastPong(t *testing.T) {
	s := newTestSession()
	before := s.LastPong()
	time.Sleep(time.Millisecond)

	if err := s.Ingest(packet.EncodePayload([]packet.Packet{packet.New(packet.Pong, []byte("ping"))}, nil, false, false)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !s.LastPong().After(before) {
		t.Errorf("LastPong did not advance")
	}
}

func TestPingEmitsServerPing(t *testing.T) {
	s := newTestSession()
	s.Ping()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	pkts, _ := s.DrainAndEncode(ctx)

	if len(pkts) != 1 || pkts[0].Type != packet.Ping || string(pkts[0].Data) != "ping" {
		t.Errorf("got %v, want a single server Ping", pkts)
	}
}

func TestMarkOpenOnlyTransitionsFromOpening(t *testing.T) {
	s := newTestSession()
	s.MarkOpen()
	if s.State() != Open {
		t.Fatalf("state = %v, want Open", s.State())
	}
	s.Close("done")
	s.MarkOpen()
	if s.State() != Closed {
		t.Errorf("MarkOpen resurrected a closed session: state = %v", s.State())
	}
}
