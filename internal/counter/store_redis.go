package counter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"carbonregistry/pkg/platform/sentinel"
)

const counterKeyPrefix = "registry:counter:"

// RedisStore allocates ranges with INCRBY, which is atomic per key, so
// concurrent allocations from any number of instances never overlap.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedis constructs a Redis-backed counter store.
func NewRedis(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Allocate(ctx context.Context, name Name, count int64) (int64, error) {
	if err := validate(name, count); err != nil {
		return 0, err
	}
	key := counterKeyPrefix + string(name)

	if count == 0 {
		value, err := s.client.Get(ctx, key).Int64()
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("read counter %s: %w: %w", name, sentinel.ErrUnavailable, err)
		}
		return value, nil
	}

	value, err := s.client.IncrBy(ctx, key, count).Result()
	// Redis refuses the increment and leaves the key untouched.
	if err != nil && strings.Contains(err.Error(), "would overflow") {
		return 0, overflowErr(name, count)
	}
	if err != nil {
		return 0, fmt.Errorf("increment counter %s: %w: %w", name, sentinel.ErrUnavailable, err)
	}
	return value - count, nil
}
