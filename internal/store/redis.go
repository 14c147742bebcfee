package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps the key-value state in Redis under <prefix>:<namespace>:<key>.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisStore{rdb: rdb, prefix: prefix}, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) Scoped(namespace string) TokenStore {
	return &redisScope{store: s, namespace: namespace}
}

func (s *RedisStore) key(namespace, key string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, namespace, key)
}

type redisScope struct {
	store     *RedisStore
	namespace string
}

func (c *redisScope) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.store.rdb.Get(ctx, c.store.key(c.namespace, key)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %s/%s: %w", c.namespace, key, err)
	}
	return value, true, nil
}

func (c *redisScope) Set(ctx context.Context, key, value string) error {
	if err := c.store.rdb.Set(ctx, c.store.key(c.namespace, key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", c.namespace, key, err)
	}
	return nil
}

func (c *redisScope) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.store.key(c.namespace, k)
	}
	if err := c.store.rdb.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys in %s: %w", c.namespace, err)
	}
	return nil
}
