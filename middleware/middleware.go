// Package middleware implements the onion model middleware chain for
// the HTTP dispatcher.
//
// Middleware wraps the next handler to add cross-cutting concerns
// (logging, timeouts, panic recovery) without modifying the handler
// itself.
//
// Onion model execution order:
//
//	Chain(A, B, C)(handler)  →  A(B(C(handler)))
//
//	Request:   A.before → B.before → C.before → handler
//	Response:  handler → C.after → B.after → A.after
package middleware

import "net/http"

// Middleware takes a handler and returns a new handler that wraps it.
type Middleware func(next http.Handler) http.Handler

// Chain composes multiple middlewares into one. It builds the chain
// from right to left so that the first middleware in the list is the
// outermost layer (executed first on request, last on response).
//
// Example:
//
//	chain := Chain(Recover(log), Logging(log), Timeout(5*time.Second))
//	handler := chain(businessHandler)
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
