package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"gatewaydemo/logger"

	"github.com/redis/go-redis/v9"
)

const tripPrefix = "trip:"

var _ Store = (*RedisStore)(nil)

// RedisStore shares breaker state between gateway replicas.
type RedisStore struct {
	Client *redis.Client
}

func NewRedisStore(addr string, password string) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	return &RedisStore{Client: client}
}

// Ping verifies the server is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	val, err := s.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}

	if val == 1 && window > 0 {
		if err := s.Client.Expire(ctx, key, window).Err(); err != nil {
			return val, err
		}
	}

	return val, nil
}

func (s *RedisStore) GetCounter(ctx context.Context, key string) (int64, error) {
	val, err := s.Client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

func (s *RedisStore) ResetCounter(ctx context.Context, key string) error {
	return s.Client.Del(ctx, key).Err()
}

func (s *RedisStore) Trip(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.Client.SetNX(ctx, tripPrefix+key, "open", ttl).Result()
}

// IsTripped reports a closed circuit when Redis cannot be reached.
func (s *RedisStore) IsTripped(ctx context.Context, key string) bool {
	exists, err := s.Client.Exists(ctx, tripPrefix+key).Result()
	if err != nil {
		logger.Error("Redis trip check failed", "key", key, "err", err)
		return false
	}
	return exists > 0
}

func (s *RedisStore) Untrip(ctx context.Context, key string) error {
	return s.Client.Del(ctx, tripPrefix+key).Err()
}

func (s *RedisStore) ListTripped(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.Client.Scan(ctx, 0, tripPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), tripPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}
