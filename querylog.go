package smartcache

import (
	"context"
	"fmt"
	"sort"

	redis "github.com/go-redis/redis/v8"
	msgpack "github.com/vmihailenco/msgpack/v4"
)

// RedisQueryLog keeps QueryInfo records in a redis hash keyed by query id,
// encoded with msgpack.
type RedisQueryLog struct {
	c   redis.UniversalClient
	key string
}

// NewRedisQueryLog returns a query log stored in the hash <keyPrefix>queries.
func NewRedisQueryLog(c redis.UniversalClient, keyPrefix string) *RedisQueryLog {
	return &RedisQueryLog{
		c:   c,
		key: keyPrefix + "queries",
	}
}

// Record stores info unless the query is already known.
func (l *RedisQueryLog) Record(ctx context.Context, info QueryInfo) error {
	b, err := msgpack.Marshal(&info)
	if err != nil {
		return err
	}
	return l.c.HSetNX(ctx, l.key, info.ID, b).Err()
}

// List returns all recorded queries ordered by id.
func (l *RedisQueryLog) List(ctx context.Context) ([]QueryInfo, error) {
	m, err := l.c.HGetAll(ctx, l.key).Result()
	if err != nil {
		return nil, err
	}

	infos := make([]QueryInfo, 0, len(m))
	for id, v := range m {
		var info QueryInfo
		if err := msgpack.Unmarshal([]byte(v), &info); err != nil {
			return nil, fmt.Errorf("query %s: %w", id, err)
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}
