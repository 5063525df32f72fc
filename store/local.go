package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

type counter struct {
	value  int64
	expiry time.Time
}

var _ Store = (*LocalStore)(nil)

// LocalStore is an in-memory Store. Expired entries are dropped lazily on access.
type LocalStore struct {
	mu       sync.Mutex
	counters map[string]counter
	tripped  map[string]time.Time
	now      func() time.Time
}

func NewLocalStore() *LocalStore {
	return &LocalStore{
		counters: make(map[string]counter),
		tripped:  make(map[string]time.Time),
		now:      time.Now,
	}
}

func (s *LocalStore) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.counters[key]
	if !ok || (!c.expiry.IsZero() && !now.Before(c.expiry)) {
		c = counter{}
		if window > 0 {
			c.expiry = now.Add(window)
		}
	}
	c.value++
	s.counters[key] = c
	return c.value, nil
}

func (s *LocalStore) GetCounter(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok {
		return 0, nil
	}
	if !c.expiry.IsZero() && !s.now().Before(c.expiry) {
		delete(s.counters, key)
		return 0, nil
	}
	return c.value, nil
}

func (s *LocalStore) ResetCounter(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key)
	return nil
}

func (s *LocalStore) Trip(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.trippedLocked(key, now) {
		return false, nil
	}
	var expiry time.Time
	if ttl > 0 {
		expiry = now.Add(ttl)
	}
	s.tripped[key] = expiry
	return true, nil
}

func (s *LocalStore) IsTripped(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trippedLocked(key, s.now())
}

func (s *LocalStore) Untrip(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tripped, key)
	return nil
}

func (s *LocalStore) ListTripped(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	keys := make([]string, 0, len(s.tripped))
	for k := range s.tripped {
		if s.trippedLocked(k, now) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// trippedLocked reports whether key is open, removing it once expired.
func (s *LocalStore) trippedLocked(key string, now time.Time) bool {
	expiry, ok := s.tripped[key]
	if !ok {
		return false
	}
	if !expiry.IsZero() && !now.Before(expiry) {
		delete(s.tripped, key)
		return false
	}
	return true
}
