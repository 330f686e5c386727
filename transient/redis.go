package transient

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/go-hubspot-connector/internal/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of Redis SET EX / GET / DEL.
type RedisStore struct {
	client redis.UniversalClient
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore constructs a Redis-backed store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Put stores value under key, replacing any existing value and its expiry.
func (s *RedisStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", ttl)
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return apperrors.Wrapf(err, "persist %s", key)
	}
	return nil
}

// Get loads the value stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", apperrors.Wrapf(err, "load %s", key)
	}
	return value, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return apperrors.Wrapf(err, "delete %s", key)
	}
	return nil
}

// Ping checks connectivity, used by the health endpoint.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
