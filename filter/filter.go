// Package filter holds the per-route gateway filters and the gateway's
// Prometheus collectors. A filter wraps the next handler in the chain the
// same way net/http middleware does.
package filter

import "net/http"

// Filter decorates a route's handler.
type Filter func(next http.Handler) http.Handler

// Chain applies filters so that filters[0] runs first.
func Chain(h http.Handler, filters ...Filter) http.Handler {
	for i := len(filters) - 1; i >= 0; i-- {
		h = filters[i](h)
	}
	return h
}

// AddRequestHeader sets name: value on the request before it is forwarded.
// An existing value is kept and the new one appended.
func AddRequestHeader(name, value string) Filter {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = r.Clone(r.Context())
			r.Header.Add(name, value)
			next.ServeHTTP(w, r)
		})
	}
}
