package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout enforces a maximum duration for the rest of the chain
// beneath it, distinct from the long-poll GET's own bounded wait
// inside transport.Polling.DrainOrWait: this is an ambient guard
// against a handler that hangs for a reason the long-poll contract
// doesn't account for.
//
// Implementation:
//  1. Create a context with a deadline.
//  2. Run the next handler in a goroutine.
//  3. Select between the handler finishing and the deadline firing.
//
// Note: the handler goroutine is NOT cancelled when the deadline
// fires — it keeps running and may still write to w after Timeout has
// already written the 503. For true cancellation the handler must
// check r.Context().Done() itself.
func Timeout(timeout time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			done := make(chan struct{}, 1) // buffered: don't leak the goroutine if we time out first
			go func() {
				next.ServeHTTP(w, r.WithContext(ctx))
				done <- struct{}{}
			}()

			select {
			case <-done:
			case <-ctx.Done():
				http.Error(w, "request timed out", http.StatusServiceUnavailable)
			}
		})
	}
}
