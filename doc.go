/*
Package smartcache provides a rule driven caching middleware for database/sql
users. Queries are matched against an ordered set of rules kept in a live
configuration; the first matching rule decides whether the result is cached
and for how long. Cached results are stored in binary row-set form, so a
cache hit returns the same column metadata and typed values as the database.

Usage:

	import (
		"database/sql"

		redis "github.com/go-redis/redis/v8"
		"github.com/prashanthpai/smartcache"
		"github.com/prashanthpai/smartcache/config"
		"github.com/jackc/pgx/v4/stdlib"
	)

	func main() {
		...
		rc := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{"127.0.0.1:6379"},
		})

		// keep the rules in redis and follow changes
		cfg, err := config.NewManager(config.ManagerConfig{
			Source: config.NewRedisSource(rc, "smartcache:config"),
		})
		...
		if err := cfg.Start(ctx); err != nil {
			...
		}

		interceptor, err := smartcache.NewInterceptor(&smartcache.Config{
			Store:     smartcache.NewRedis(rc, "smartcache:"),
			Snapshots: cfg,
		})
		...

		// wrap pgx driver with the interceptor and register it
		sql.Register("pgx-with-cache", interceptor.Driver(stdlib.GetDefaultDriver()))

		// open the database using the wrapped driver
		db, err := sql.Open("pgx-with-cache", dsn)
		...
	}

Example configuration document caching every query on the books table for
five minutes and nothing else:

	{
		"bufferCapacity": 102400,
		"rules": [
			{"matchKind": "tablesAny", "matchValues": ["books"], "ttl": "5m"},
			{"matchKind": "passthrough", "ttl": 0}
		]
	}
*/
package smartcache
