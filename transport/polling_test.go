package transport

import (
	"context"
	"testing"
	"time"

	"engineio/packet"
)

func TestDrainOrWaitReturnsQueuedPackets(t *testing.T) {
	p := NewPolling()
	p.Emit(packet.New(packet.Message, []byte("a")))
	p.Emit(packet.New(packet.Message, []byte("b")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got := p.DrainOrWait(ctx)
	if len(got) != 2 {
		t.Fatalf("got %d packets, want 2", len(got))
	}
	if string(got[0].Data) != "a" || string(got[1].Data) != "b" {
		t.Errorf("got %v, want order a,b", got)
	}
}

func TestDrainOrWaitBlocksUntilEmit(t *testing.T) {
	p := NewPolling()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan []packet.Packet, 1)
	go func() {
		done <- p.DrainOrWait(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	p.Emit(packet.New(packet.Ping, []byte("ping")))

	select {
	case got := <-done:
		if len(got) != 1 || got[0].Type != packet.Ping {
			t.Errorf("got %v, want one Ping packet", got)
		}
	case <-time.After(time.Second):
		t.Fatal("DrainOrWait did not return after Emit")
	}
}

func TestDrainOrWaitReturnsNilOnContextDone(t *testing.T) {
	p := NewPolling()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	got := p.DrainOrWait(ctx)
	if got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestCloseYieldsCloseThenEmpty(t *testing.T) {
	p := NewPolling()
	p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first := p.DrainOrWait(ctx)
	if len(first) != 1 || first[0].Type != packet.Close {
		t.Fatalf("got %v, want a single Close packet", first)
	}

	second := p.DrainOrWait(ctx)
	if second != nil {
		t.Errorf("got %v, want nil after Close already drained", second)
	}
}

func TestEmitAfterCloseIsDiscarded(t *testing.T) {
	p := NewPolling()
	p.Close()
	p.Emit(packet.New(packet.Message, []byte("too late")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = p.DrainOrWait(ctx) // drains the Close packet

	got := p.DrainOrWait(ctx)
	if got != nil {
		t.Errorf("got %v, want nil — post-close Emit must be discarded", got)
	}
}
