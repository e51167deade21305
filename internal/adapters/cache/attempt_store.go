package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable wraps Redis failures
var ErrStoreUnavailable = errors.New("attempt store unavailable")

// AttemptStore is a Redis-backed fixed-window counter shared by every
// API instance
type AttemptStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewAttemptStore creates an attempt store under the given key prefix
func NewAttemptStore(client redis.UniversalClient, prefix string) *AttemptStore {
	if prefix == "" {
		prefix = "nutricoach:attempts"
	}
	return &AttemptStore{redis: client, prefix: prefix}
}

// Increment bumps the counter for key; the window starts on the first hit
func (s *AttemptStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	k := s.key(key)
	count, err := s.redis.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if count == 1 {
		if err := s.redis.Expire(ctx, k, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return count, nil
}

// Count returns the current counter for key, zero when absent
func (s *AttemptStore) Count(ctx context.Context, key string) (int64, error) {
	count, err := s.redis.Get(ctx, s.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return count, nil
}

// Reset clears the counter for key
func (s *AttemptStore) Reset(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *AttemptStore) key(key string) string {
	return s.prefix + ":" + key
}
