package config

import (
	"context"
	"errors"
	"fmt"

	redis "github.com/go-redis/redis/v8"
)

// RedisSource keeps the document as a plain string value under a key.
// Writers publish on a channel named after the key so that watchers reload
// without waiting for the next poll.
type RedisSource struct {
	c   redis.UniversalClient
	key string
}

// NewRedisSource returns a source reading key through c.
func NewRedisSource(c redis.UniversalClient, key string) *RedisSource {
	return &RedisSource{
		c:   c,
		key: key,
	}
}

func (r *RedisSource) Key() string {
	return r.key
}

func (r *RedisSource) Load(ctx context.Context) ([]byte, error) {
	b, err := r.c.Get(ctx, r.key).Bytes()
	switch {
	case err == nil:
		return b, nil
	case errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("%w: redis key %q", ErrNotFound, r.key)
	default:
		return nil, fmt.Errorf("config: redis GET %q: %w", r.key, err)
	}
}

// Store writes doc and notifies watchers.
func (r *RedisSource) Store(ctx context.Context, doc []byte) error {
	_, err := r.c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.key, doc, 0)
		p.Publish(ctx, r.key, "updated")
		return nil
	})
	if err != nil {
		return fmt.Errorf("config: redis SET %q: %w", r.key, err)
	}
	return nil
}

// Watch subscribes to the key's channel.
func (r *RedisSource) Watch(ctx context.Context) (<-chan struct{}, error) {
	sub := r.c.Subscribe(ctx, r.key)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("config: redis SUBSCRIBE %q: %w", r.key, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
