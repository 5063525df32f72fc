// Package breaker implements the named fallback command wrapped around a
// proxied route. A command answers from its fallback handler when the
// upstream fails or exceeds the command timeout, and short-circuits straight
// to the fallback while open.
//
// A command opens once FailureThreshold failures are counted within Window.
// It stays open for SleepWindow; after that the next request is tried
// against the upstream again and counting restarts.
package breaker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gatewaydemo/filter"
	"gatewaydemo/logger"
	"gatewaydemo/proxy"
	"gatewaydemo/store"
)

// KeyPrefix namespaces breaker keys in the shared store.
const KeyPrefix = "hystrix:"

const (
	DefaultTimeout          = time.Second
	DefaultFailureThreshold = 20
	DefaultWindow           = 10 * time.Second
	DefaultSleepWindow      = 5 * time.Second
)

// Config describes one command.
type Config struct {
	Name             string
	Timeout          time.Duration
	FailureThreshold int64
	Window           time.Duration
	SleepWindow      time.Duration
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.SleepWindow <= 0 {
		c.SleepWindow = DefaultSleepWindow
	}
}

// TripFunc is notified when a command opens.
type TripFunc func(name string, failures int64)

type Breaker struct {
	cfg    Config
	store  store.Store
	onTrip TripFunc
}

func New(cfg Config, st store.Store) *Breaker {
	cfg.applyDefaults()
	return &Breaker{cfg: cfg, store: st}
}

func (b *Breaker) Name() string { return b.cfg.Name }

// OnTrip registers fn to run when the command goes from closed to open.
func (b *Breaker) OnTrip(fn TripFunc) { b.onTrip = fn }

func (b *Breaker) tripKey() string    { return KeyPrefix + b.cfg.Name }
func (b *Breaker) failureKey() string { return KeyPrefix + b.cfg.Name + ":failures" }

// IsOpen reports whether requests are currently short-circuited.
func (b *Breaker) IsOpen(ctx context.Context) bool {
	open := b.store.IsTripped(ctx, b.tripKey())
	if open {
		filter.OpenCircuits.WithLabelValues(b.cfg.Name).Set(1)
	} else {
		filter.OpenCircuits.WithLabelValues(b.cfg.Name).Set(0)
	}
	return open
}

// Reset closes the command and clears its failure count.
func (b *Breaker) Reset(ctx context.Context) error {
	if err := b.store.Untrip(ctx, b.tripKey()); err != nil {
		return err
	}
	filter.OpenCircuits.WithLabelValues(b.cfg.Name).Set(0)
	return b.store.ResetCounter(ctx, b.failureKey())
}

func (b *Breaker) recordFailure(ctx context.Context) {
	// failures finishing after the command opened belong to the old window
	if b.store.IsTripped(ctx, b.tripKey()) {
		return
	}
	n, err := b.store.Increment(ctx, b.failureKey(), b.cfg.Window)
	if err != nil {
		logger.Error("Breaker failure count not recorded", "command", b.cfg.Name, "err", err)
		return
	}
	if n < b.cfg.FailureThreshold {
		return
	}

	opened, err := b.store.Trip(ctx, b.tripKey(), b.cfg.SleepWindow)
	if err != nil {
		logger.Error("Breaker could not open", "command", b.cfg.Name, "err", err)
		return
	}
	if !opened {
		return
	}
	b.store.ResetCounter(ctx, b.failureKey())
	filter.OpenCircuits.WithLabelValues(b.cfg.Name).Set(1)
	logger.Warn("Breaker opened", "command", b.cfg.Name, "failures", n, "sleep_window", b.cfg.SleepWindow)
	if b.onTrip != nil {
		b.onTrip(b.cfg.Name, n)
	}
}

func (b *Breaker) recordSuccess(ctx context.Context) {
	if err := b.store.ResetCounter(ctx, b.failureKey()); err != nil {
		logger.Debug("Breaker success not recorded", "command", b.cfg.Name, "err", err)
	}
}

// Filter runs the rest of the route as this command. Upstream failures and
// timeouts are answered by fallback with the caller's original context.
// The wrapped handler must report failures through proxy.WithErrorHook.
func (b *Breaker) Filter(fallback http.Handler) filter.Filter {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if b.IsOpen(ctx) {
				filter.FallbackResponses.WithLabelValues(b.cfg.Name, "short_circuit").Inc()
				logger.Debug("Breaker short-circuited", "command", b.cfg.Name, "path", r.URL.Path)
				fallback.ServeHTTP(w, r)
				return
			}

			cmdCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
			defer cancel()

			failed := false
			hook := func(w http.ResponseWriter, _ *http.Request, err error) {
				failed = true
				if ctx.Err() != nil {
					// caller went away; nothing to answer and not the upstream's fault
					return
				}

				reason := "error"
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
					reason = "timeout"
				}
				logger.Warn("Upstream failed, serving fallback", "command", b.cfg.Name,
					"reason", reason, "path", r.URL.Path, "err", err)

				b.recordFailure(ctx)
				filter.FallbackResponses.WithLabelValues(b.cfg.Name, reason).Inc()
				fallback.ServeHTTP(w, r)
			}

			next.ServeHTTP(w, r.WithContext(proxy.WithErrorHook(cmdCtx, hook)))

			if !failed {
				b.recordSuccess(ctx)
			}
		})
	}
}
