package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const claimValue = "processing"

// RedisIdempotencyStore claims keys with SET NX. The namespace keeps the
// worker's keys apart from the directory data sharing the same database.
type RedisIdempotencyStore struct {
	client    redis.Cmdable
	namespace string
}

func NewRedisIdempotencyStore(c redis.Cmdable, namespace string) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: c, namespace: namespace}
}

func (s *RedisIdempotencyStore) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return s.namespace + ":" + k
}

func (s *RedisIdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.key(key), claimValue, ttl).Result()
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}
