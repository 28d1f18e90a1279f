package smartcache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Ristretto implements cache.Store interface to keep encoded results in
// process with ristretto.
type Ristretto struct {
	c *ristretto.Cache
}

// Get gets encoded results from ristretto. Returns the bytes, a boolean which
// represents whether key exists or not and an error.
func (r *Ristretto) Get(ctx context.Context, key string) ([]byte, bool, error) {
	i, ok := r.c.Get(key)
	if !ok {
		return nil, false, nil
	}

	b, ok := i.([]byte)
	if !ok {
		return nil, false, fmt.Errorf("Ristretto.Get(): i.([]byte) failed")
	}

	return b, true, nil
}

// Set sets the given bytes into ristretto with provided TTL duration. Items
// may be dropped by ristretto's admission policy.
func (r *Ristretto) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	// using encoded size as cost
	_ = r.c.SetWithTTL(key, value, int64(len(value)), ttl)
	return nil
}

// NewRistretto creates a new instance of ristretto backend wrapping the
// provided *ristretto.Cache instance. While creating the ristretto
// instance, please note that the encoded size in bytes will be used as
// "cost" (in ristretto's terminology) for each cache item.
func NewRistretto(c *ristretto.Cache) *Ristretto {
	return &Ristretto{
		c: c,
	}
}
