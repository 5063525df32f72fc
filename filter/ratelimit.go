package filter

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"gatewaydemo/logger"

	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleTTL       = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-client token bucket. Buckets idle for ten minutes are
// swept by Run.
type RateLimiter struct {
	rate    rate.Limit
	burst   int
	mu      sync.Mutex
	clients map[string]*clientLimiter
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rate:    rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*clientLimiter),
	}
}

func (l *RateLimiter) get(client string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.clients[client]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[client] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// Run sweeps idle buckets until ctx is done.
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := l.sweep(now); n > 0 {
				logger.Debug("Rate limiter: idle clients purged", "count", n)
			}
		}
	}
}

func (l *RateLimiter) sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for client, entry := range l.clients {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.clients, client)
			n++
		}
	}
	return n
}

// Filter rejects a client with 429 once its bucket is empty.
func (l *RateLimiter) Filter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := peerIP(r)
		if !l.get(client).Allow() {
			logger.Warn("Rate limit exceeded", "remote_addr", client,
				"rate", float64(l.rate), "burst", l.burst)
			RateLimitedRequests.Inc()
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type peerAddrKey struct{}

// WithPeerAddr records the connection's remote address before any
// header-derived rewrite of RemoteAddr.
func WithPeerAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, peerAddrKey{}, addr)
}

// peerIP keys rate-limit buckets on the connection address, so clients
// cannot pick a fresh bucket through X-Forwarded-For or X-Real-IP.
func peerIP(r *http.Request) string {
	addr, ok := r.Context().Value(peerAddrKey{}).(string)
	if !ok {
		addr = r.RemoteAddr
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
