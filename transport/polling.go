// Package transport implements the long-polling bridge between
// asynchronous packet production (the application, the heartbeat
// loop) and the request-scoped GET handler that actually writes
// bytes to a client.
package transport

import (
	"context"
	"sync"

	"engineio/packet"
)

// Polling is a session-local outbound queue plus a cooperative
// rendezvous: a GET handler calls DrainOrWait and either receives
// whatever is already queued or blocks until the next Emit (or the
// handler's own context is done, e.g. the client disconnected or the
// long-poll timeout elapsed).
//
// The rendezvous uses a channel that is closed to broadcast "new data
// is available" and replaced on every Emit, the same
// race-a-goroutine-against-a-channel shape used elsewhere in this
// module for bounding a blocking call with a context.
type Polling struct {
	mu       sync.Mutex
	outbound []packet.Packet
	notify   chan struct{}
	closed   bool
}

// NewPolling returns an empty, open Polling transport.
func NewPolling() *Polling {
	return &Polling{notify: make(chan struct{})}
}

// Emit appends a packet to the outbound buffer and wakes any blocked
// waiter. It never blocks. Once the transport is closed, Emit
// silently discards the packet.
func (p *Polling) Emit(pk packet.Packet) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.outbound = append(p.outbound, pk)
	ch := p.notify
	p.notify = make(chan struct{})
	p.mu.Unlock()
	close(ch)
}

// DrainOrWait atomically takes the current outbound buffer. If it is
// empty, it blocks until a packet is emitted or ctx is done, in which
// case it returns nil. Once the transport is closed, it returns
// immediately: the first call after Close drains the synthesized
// Close packet, every call after that returns nil.
func (p *Polling) DrainOrWait(ctx context.Context) []packet.Packet {
	for {
		p.mu.Lock()
		if len(p.outbound) > 0 || p.closed {
			out := p.outbound
			p.outbound = nil
			p.mu.Unlock()
			return out
		}
		ch := p.notify
		p.mu.Unlock()

		select {
		case <-ch:
			continue
		case <-ctx.Done():
			return nil
		}
	}
}

// Close discards any queued outbound packets, replaces them with a
// single synthesized Close packet for the next drain, and wakes any
// blocked waiter. Further Emit calls are no-ops.
func (p *Polling) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.outbound = []packet.Packet{packet.New(packet.Close, nil)}
	ch := p.notify
	p.notify = make(chan struct{})
	p.mu.Unlock()
	close(ch)
}
