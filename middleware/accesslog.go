package middleware

import (
	"net/http"
	"time"

	"gatewaydemo/filter"
	"gatewaydemo/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Stack wraps the gateway with request IDs, client-IP resolution, access
// logging and panic recovery, outermost first. The connection address is
// kept for the rate limiter before RealIP rewrites RemoteAddr.
func Stack(next http.Handler) http.Handler {
	return chimw.RequestID(PeerAddr(chimw.RealIP(AccessLog(chimw.Recoverer(next)))))
}

// PeerAddr stores the connection's RemoteAddr in the request context.
func PeerAddr(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(filter.WithPeerAddr(r.Context(), r.RemoteAddr)))
	})
}

// AccessLog writes one line per request once it completes.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("request",
				"request_id", chimw.GetReqID(r.Context()),
				"method", r.Method,
				"host", r.Host,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
