package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Logging builds a per-request zerolog.Logger scoped with method,
// path, and remote address, attaches it to the request context, and
// logs the outcome once the handler returns.
//
// Example output:
//
//	{"level":"info","method":"GET","path":"/engine.io/","remote_addr":"192.0.2.1:52814","status":200,"elapsed":0.812,"message":"request handled"}
func Logging(log zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := log.With().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Logger()

			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(reqLog.WithContext(r.Context())))

			reqLog.Info().
				Int("status", rw.status).
				Dur("elapsed", time.Since(start)).
				Msg("request handled")
		})
	}
}

// statusRecorder captures the status code a handler wrote so Logging
// can report it after the fact; http.ResponseWriter has no getter.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
