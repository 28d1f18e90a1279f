package smartcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/go-redis/redis/v8"

	"github.com/prashanthpai/smartcache/cache"
)

// Redis implements cache.Store interface to use redis as backend with
// go-redis as the redis client library.
type Redis struct {
	c         redis.UniversalClient
	keyPrefix string
}

// Get gets encoded results from redis. Returns the bytes, a boolean which
// represents whether key exists or not and an error.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.c.Get(ctx, r.keyPrefix+key).Bytes()
	switch {
	case err == nil:
		return b, true, nil
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("%w: %v", cache.ErrStoreUnavailable, err)
	}
}

// Set sets the given bytes into redis with provided TTL duration.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.c.Set(ctx, r.keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", cache.ErrStoreUnavailable, err)
	}
	return nil
}

// NewRedis creates a new instance of redis backend using go-redis client.
// All keys created in redis will start with keyPrefix.
func NewRedis(c redis.UniversalClient, keyPrefix string) *Redis {
	return &Redis{
		c:         c,
		keyPrefix: keyPrefix,
	}
}
