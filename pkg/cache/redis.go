package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements Cacher on a Redis server. Keys are namespaced with prefix.
type Redis struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

// OpenRedis connects to addr. It returns nil when addr is empty.
func OpenRedis(addr, pass string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
}

// NewRedis wraps rc.
func NewRedis(rc *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{rc: rc, prefix: prefix, ttl: ttl}
}

// GetCache treats every Redis failure as a miss.
func (r *Redis) GetCache(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.rc.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Debug("redis cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return val, true
}

func (r *Redis) SetCache(ctx context.Context, key string, val []byte) error {
	return r.rc.Set(ctx, r.prefix+key, val, r.ttl).Err()
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.rc.Close()
}
