// Package dispatcher implements the HTTP entry point: it parses the
// Engine.IO query parameters, routes a request to the handshake, a
// GET poll, or a POST delivery, and manages the `io` session cookie.
//
// Request processing pipeline:
//
//	http.Server → Server.ServeHTTP → middleware chain → route
//	  → handshake (no sid) | GET poll (drain) | POST (ingest)
package dispatcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"engineio/config"
	"engineio/heartbeat"
	"engineio/middleware"
	"engineio/packet"
	"engineio/registry"
	"engineio/session"
)

// maxSIDAttempts bounds the handshake's retry loop when the id
// generator produces a colliding sid (spec.md §8 property 7: a
// collision must retry or fail, never silently share a sid).
const maxSIDAttempts = 3

// Server is the HTTP handler for one Engine.IO mount point. It owns
// the session registry and the heartbeat loop, and dispatches each
// request through a configurable middleware chain.
type Server struct {
	cfg   config.Config
	reg   *registry.Registry
	heart *heartbeat.Loop
	log   zerolog.Logger

	middlewares  []middleware.Middleware
	onConnection func(*session.Session)

	handlerOnce sync.Once
	handler     http.Handler
}

// NewServer constructs a Server with its own registry and heartbeat
// loop, not yet serving any requests.
func NewServer(cfg config.Config, log zerolog.Logger) *Server {
	reg := registry.New()
	return &Server{
		cfg:   cfg,
		reg:   reg,
		heart: heartbeat.New(reg, cfg.PingInterval, cfg.PingTimeout, log),
		log:   log,
	}
}

// Use registers a middleware. Middlewares wrap the router in the
// order they are added: the first one added is outermost.
func (s *Server) Use(mw middleware.Middleware) {
	s.middlewares = append(s.middlewares, mw)
}

// OnConnection registers the callback invoked with a freshly
// handshaked Session, once its Open packet has been written.
func (s *Server) OnConnection(cb func(*session.Session)) {
	s.onConnection = cb
}

// Close closes every registered session and stops the heartbeat loop.
func (s *Server) Close() {
	for _, sess := range s.reg.Snapshot() {
		sess.Close("server shutdown")
	}
	s.heart.Stop()
}

// ServeHTTP implements http.Handler. The heartbeat loop is started
// lazily on the first request this Server ever handles.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.heart.StartOnce()
	s.handlerOnce.Do(func() {
		s.handler = middleware.Chain(s.middlewares...)(http.HandlerFunc(s.route))
	})
	s.handler.ServeHTTP(w, r)
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Date", time.Now().UTC().Format(http.TimeFormat))

	q := r.URL.Query()
	sid := s.resolveSID(r, q)

	switch r.Method {
	case http.MethodGet:
		if sid == "" {
			s.handleHandshake(w, r, q)
			return
		}
		sess, ok := s.reg.Get(sid)
		if !ok {
			if q.Get("sid") != "" {
				writeJSONError(w, http.StatusBadRequest, 1, "Session ID unknown")
				return
			}
			// sid came only from a stale/invalid cookie: fall back to
			// a fresh handshake rather than an error.
			s.handleHandshake(w, r, q)
			return
		}
		s.handleGet(w, r, sess)
	case http.MethodPost:
		if sid == "" {
			writeJSONError(w, http.StatusBadRequest, 1, "Session ID unknown")
			return
		}
		sess, ok := s.reg.Get(sid)
		if !ok {
			writeJSONError(w, http.StatusBadRequest, 1, "Session ID unknown")
			return
		}
		s.handlePost(w, r, sess)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// resolveSID prefers the `sid` query parameter; the `io` cookie is
// only a fallback lookup key (spec.md §4.5; original_source confirms
// an absent/stale cookie is not itself a protocol error).
func (s *Server) resolveSID(r *http.Request, q url.Values) string {
	if sid := q.Get("sid"); sid != "" {
		return sid
	}
	if s.cfg.Cookie == "" {
		return ""
	}
	c, err := r.Cookie(s.cfg.Cookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) handleHandshake(w http.ResponseWriter, r *http.Request, q url.Values) {
	if q.Get("transport") != "polling" {
		writeJSONError(w, http.StatusBadRequest, 0, "Transport unknown")
		return
	}

	// Text framing is the default (spec.md §6); b64 forces Base64
	// wrapping of binary data within it. Nothing in the recognized
	// query parameters (spec.md §4.5) ever requests XHR2 binary
	// framing over HTTP, so it stays off for every session created
	// through this dispatcher — the packet/session layers still
	// support it for an embedder driving a session directly.
	b64 := q.Has("b64")
	xhr2 := false

	var jsonpIndex *int
	if j := q.Get("j"); j != "" {
		idx, err := strconv.Atoi(j)
		if err != nil || idx < 0 {
			writeJSONError(w, http.StatusBadRequest, 0, "Transport unknown")
			return
		}
		jsonpIndex = &idx
	}

	sess, err := s.createSession(r.RemoteAddr, b64, xhr2, jsonpIndex)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	openData, _ := json.Marshal(struct {
		SID          string   `json:"sid"`
		Upgrades     []string `json:"upgrades"`
		PingInterval int64    `json:"pingInterval"`
		PingTimeout  int64    `json:"pingTimeout"`
	}{
		SID:          sess.ID(),
		Upgrades:     []string{},
		PingInterval: s.cfg.PingInterval.Milliseconds(),
		PingTimeout:  s.cfg.PingTimeout.Milliseconds(),
	})
	openPkt := packet.New(packet.Open, openData)
	encoded := packet.EncodePayload([]packet.Packet{openPkt}, jsonpIndex, b64, xhr2)

	s.setCookie(w, sess.ID())
	w.Header().Set("Content-Type", sess.ContentType())
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Write(encoded)

	sess.MarkOpen()

	if s.onConnection != nil {
		s.onConnection(sess)
	}
}

// createSession retries id generation on a registry collision, per
// spec.md §8 property 7.
func (s *Server) createSession(remoteAddr string, b64, xhr2 bool, jsonpIndex *int) (*session.Session, error) {
	var lastErr error
	for attempt := 0; attempt < maxSIDAttempts; attempt++ {
		sid, err := s.cfg.IDGenerator(remoteAddr)
		if err != nil {
			return nil, err
		}
		sess := session.New(sid, b64, xhr2, jsonpIndex, s.log)
		if err := s.reg.Insert(sess); err != nil {
			lastErr = err
			continue
		}
		return sess, nil
	}
	return nil, lastErr
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if sess.IsClosed() {
		writeJSONError(w, http.StatusBadRequest, 1, "Session ID unknown")
		return
	}

	sess.TouchPong()

	ctx := r.Context()
	if s.cfg.PollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.PollTimeout)
		defer cancel()
	}
	pkts, encoded := sess.DrainAndEncode(ctx)

	s.setCookie(w, sess.ID())
	w.Header().Set("Content-Type", sess.ContentType())
	if !sess.IsClosed() {
		w.Header().Set("Connection", "keep-alive")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(encoded)

	sess.FireOnFlush(pkts)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if sess.IsClosed() {
		writeJSONError(w, http.StatusBadRequest, 1, "Session ID unknown")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	data := body
	if ct := r.Header.Get("Content-Type"); strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		d := strings.ReplaceAll(values.Get("d"), `\n`, "\n")
		data = []byte(d)
	}

	if err := sess.Ingest(data); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) setCookie(w http.ResponseWriter, sid string) {
	if s.cfg.Cookie == "" {
		return
	}
	cookie := &http.Cookie{Name: s.cfg.Cookie, Value: sid}
	if s.cfg.CookiePath != "" {
		cookie.Path = s.cfg.CookiePath
	}
	http.SetCookie(w, cookie)
}

func writeJSONError(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"code": code, "message": message})
}
