// Package config holds the tunables for an Engine.IO server: ping
// cadence, cookie naming, and session id generation.
package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

// IDGenerator produces a unique session id given the originating
// request's remote address. It may fail (e.g. if the entropy source
// is exhausted), in which case the dispatcher turns the error into a
// 500.
type IDGenerator func(remoteAddr string) (string, error)

// Config holds the tunable knobs for a Server.
type Config struct {
	PingInterval time.Duration
	PingTimeout  time.Duration
	// PollTimeout bounds how long a GET handler blocks inside
	// DrainAndEncode waiting for an outbound packet. Zero means no
	// bound beyond the request's own context (e.g. client
	// disconnect). It is not named directly in spec.md §6's config
	// table — it is the "configurable long-poll timeout" spec.md §4.2
	// describes; PingInterval+PingTimeout is a safe default because a
	// server Ping is guaranteed to arrive within that window anyway.
	PollTimeout time.Duration
	Cookie      string // empty disables the cookie entirely
	CookiePath  string // empty omits the Path attribute
	BasePath    string
	IDGenerator IDGenerator
}

// Default returns the spec's documented defaults: a 25s ping
// interval, a 60s ping timeout, a cookie named "io" with no explicit
// Path, the conventional "/engine.io/" base path, and the SHA-256 id
// generator.
func Default() Config {
	pingInterval := 25 * time.Second
	pingTimeout := 60 * time.Second
	return Config{
		PingInterval: pingInterval,
		PingTimeout:  pingTimeout,
		PollTimeout:  pingInterval + pingTimeout,
		Cookie:       "io",
		CookiePath:   "",
		BasePath:     "/engine.io/",
		IDGenerator:  SHA256Generator,
	}
}

// SHA256Generator hashes remoteAddr concatenated with 32 random bits
// and returns the hex digest.
func SHA256Generator(remoteAddr string) (string, error) {
	var nonce [4]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(remoteAddr))
	h.Write(nonce[:])
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ShortUUIDGenerator returns a short, URL-safe opaque id instead of a
// 64-character hex digest, for deployments that want a terser sid in
// logs, cookies, and URLs. remoteAddr is not incorporated: shortuuid
// already draws from a cryptographically seeded random source.
func ShortUUIDGenerator(remoteAddr string) (string, error) {
	return shortuuid.New(), nil
}
