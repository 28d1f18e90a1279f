package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prashanthpai/smartcache"
	"github.com/prashanthpai/smartcache/cache"
	"github.com/prashanthpai/smartcache/config"
	"github.com/prashanthpai/smartcache/metrics"
	"github.com/prashanthpai/smartcache/rules"

	"github.com/dgraph-io/ristretto"
	redis "github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	defaultMaxBytesToCache = 64 << 20
)

var (
	dsn       = flag.String("dsn", "host=127.0.0.1 port=5432 user=postgres dbname=postgres sslmode=disable", "postgres DSN")
	redisAddr = flag.String("redis", "", "redis address; empty keeps results in process and uses a fixed ruleset")
	listen    = flag.String("metrics", ":9090", "address serving /metrics")
)

func newRistrettoCache(maxBytesToCache int64) (cache.Store, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxBytesToCache / 100,
		MaxCost:     maxBytesToCache,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return smartcache.NewRistretto(c), nil
}

func newRedisClient(addr string) (redis.UniversalClient, error) {
	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{addr},
	})

	if _, err := r.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}

	return r, nil
}

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("zap.NewDevelopment() failed: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// store and codec errors are logged and never fail a query
	cfg := &smartcache.Config{Logger: logger}

	if *redisAddr == "" {
		if cfg.Store, err = newRistrettoCache(defaultMaxBytesToCache); err != nil {
			logger.Fatal("newRistrettoCache() failed", zap.Error(err))
		}
		cfg.Snapshots = config.Static(&config.Snapshot{
			BufferCapacity: config.DefaultBufferCapacity,
			Ruleset:        rules.NewRuleset(rules.MatchTablesAny(5*time.Second, "books")),
		})
	} else {
		rc, err := newRedisClient(*redisAddr)
		if err != nil {
			logger.Fatal("newRedisClient() failed", zap.Error(err))
		}
		defer rc.Close()

		// rules are edited with smartcachectl and picked up live
		manager, err := config.NewManager(config.ManagerConfig{
			Source: config.NewRedisSource(rc, "smartcache:config"),
			Logger: logger,
		})
		if err != nil {
			logger.Fatal("config.NewManager() failed", zap.Error(err))
		}
		if err := manager.Start(ctx); err != nil {
			logger.Fatal("manager.Start() failed", zap.Error(err))
		}
		defer manager.Close()

		cfg.Store = smartcache.NewRedis(rc, "smartcache:")
		cfg.Snapshots = manager
		cfg.QueryLog = smartcache.NewRedisQueryLog(rc, "smartcache:")
	}

	reg := prometheus.NewRegistry()
	if cfg.Metrics, err = metrics.NewPrometheus(reg, "smartcache"); err != nil {
		logger.Fatal("metrics.NewPrometheus() failed", zap.Error(err))
	}
	go func() {
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		if err := http.ListenAndServe(*listen, nil); err != nil {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	interceptor, err := smartcache.NewInterceptor(cfg)
	if err != nil {
		logger.Fatal("smartcache.NewInterceptor() failed", zap.Error(err))
	}

	defer func() {
		fmt.Printf("\nInterceptor metrics: %+v\n", interceptor.Stats())
	}()

	// install the wrapper which wraps pgx driver
	sql.Register("pgx-smartcache", interceptor.Driver(stdlib.GetDefaultDriver()))

	if err := run(ctx); err != nil {
		logger.Error("run() failed", zap.Error(err))
	}
}

func run(ctx context.Context) error {
	db, err := sql.Open("pgx-smartcache", *dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err = db.PingContext(ctx); err != nil {
		return fmt.Errorf("db.PingContext() failed: %w", err)
	}

	for i := 0; i < 15; i++ {
		start := time.Now()
		if err := doQuery(ctx, db); err != nil {
			return fmt.Errorf("doQuery() failed: %w", err)
		}
		fmt.Printf("i=%d; t=%s\n", i, time.Since(start))
		time.Sleep(1 * time.Second)
	}

	return nil
}

func doQuery(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `SELECT name, pages FROM books WHERE pages > $1`, 10)
	if err != nil {
		return fmt.Errorf("db.QueryContext() failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var pages int
		if err := rows.Scan(&name, &pages); err != nil {
			return fmt.Errorf("rows.Scan() failed: %w", err)
		}
	}

	return rows.Err()
}
