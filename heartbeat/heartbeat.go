// Package heartbeat runs the single process-wide worker that keeps
// sessions alive: it pings sessions that have gone quiet and evicts
// sessions that never answered.
package heartbeat

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"engineio/registry"
)

// Loop periodically scans a Registry, emitting Ping packets and
// evicting sessions past their pong deadline. There is exactly one
// Loop per server; it is started lazily on first use.
type Loop struct {
	reg          *registry.Registry
	pingInterval time.Duration
	pingTimeout  time.Duration
	tickInterval time.Duration
	log          zerolog.Logger

	started atomic.Bool
	stop    chan struct{}
	once    sync.Once
}

// New returns a Loop ticking once per second, per spec.md §4.6.
func New(reg *registry.Registry, pingInterval, pingTimeout time.Duration, log zerolog.Logger) *Loop {
	return &Loop{
		reg:          reg,
		pingInterval: pingInterval,
		pingTimeout:  pingTimeout,
		tickInterval: time.Second,
		log:          log,
		stop:         make(chan struct{}),
	}
}

// StartOnce launches the background goroutine the first time it is
// called and is a no-op on every subsequent call, matching "started
// lazily on first request" without making every request pay for a
// mutex.
func (l *Loop) StartOnce() {
	if l.started.CompareAndSwap(false, true) {
		go l.run()
	}
}

func (l *Loop) run() {
	ticker := time.NewTicker(l.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.tick()
		case <-l.stop:
			return
		}
	}
}

// tick performs one scan: sessions past the pong deadline are closed
// (which removes them from the registry and fires on_close); sessions
// past the ping interval receive a fresh Ping. The registry snapshot
// is taken and released before either action runs, so no registry
// lock is held during a Close or an Emit.
func (l *Loop) tick() {
	now := time.Now()
	for _, s := range l.reg.Snapshot() {
		if s.IsClosed() {
			continue
		}
		if now.Sub(s.LastPong()) > l.pingTimeout {
			l.log.Info().Str("sid", s.ID()).Msg("evicting session: ping timeout")
			s.Close("ping timeout")
			continue
		}
		if now.Sub(s.LastPing()) > l.pingInterval {
			s.Ping()
		}
	}
}

// Stop terminates the background goroutine. Safe to call even if
// StartOnce was never called, and safe to call more than once.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.stop) })
}
