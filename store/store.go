package store

import (
	"context"
	"time"
)

// Store holds breaker state shared by every request of a command: rolling
// failure counters and tripped (open) circuits. LocalStore serves a single
// gateway; RedisStore shares state across replicas.
type Store interface {
	// Increment bumps key and returns the new value. The counter expires
	// window after its first increment.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	GetCounter(ctx context.Context, key string) (int64, error)
	ResetCounter(ctx context.Context, key string) error

	// Trip marks key open for ttl unless it is already open. It reports
	// whether this call opened it; an open key keeps its original expiry.
	Trip(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsTripped(ctx context.Context, key string) bool
	Untrip(ctx context.Context, key string) error
	ListTripped(ctx context.Context) ([]string, error)
}
