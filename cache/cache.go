package cache

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable wraps errors of the store's network client. The cache
// treats it as a miss on Get and drops the write on Set.
var ErrStoreUnavailable = errors.New("cache: store unavailable")

// Store represents the external key/value store holding encoded query
// results.
type Store interface {
	// Get must return the stored bytes, a boolean representing whether the
	// key is present or not, and an error (must be nil when key is not
	// present).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
