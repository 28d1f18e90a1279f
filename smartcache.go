package smartcache

import (
	"context"
	"database/sql/driver"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/prashanthpai/smartcache/cache"
	"github.com/prashanthpai/smartcache/config"
	"github.com/prashanthpai/smartcache/metrics"
	"github.com/prashanthpai/smartcache/rowset"
	"github.com/prashanthpai/smartcache/sqlparse"
)

// DefaultStoreTimeout bounds each store GET and PUT unless Config says
// otherwise.
const DefaultStoreTimeout = time.Second

// Parser parses SQL text and lists the tables of a statement.
type Parser interface {
	Parse(sql string) (sqlparse.Statement, error)
	ExtractTables(stmt sqlparse.Statement) []string
}

// QueryLog records queries the first time they are seen.
type QueryLog interface {
	Record(ctx context.Context, info QueryInfo) error
}

// Executor runs a query against the database.
type Executor func(ctx context.Context) (driver.Rows, error)

// Config is the configuration passed to New and NewInterceptor.
type Config struct {
	// Store must be set to a type that implements the cache.Store interface
	// which abstracts the backend store implementation. This is a required
	// field and cannot be nil.
	Store cache.Store
	// Snapshots supplies the live ruleset and buffer capacity. This is a
	// required field; use config.Static for a fixed configuration.
	Snapshots config.Provider
	// OnError is called whenever the store, the codec or KeyFunc returns an
	// error. Such errors never fail a query; use this hook to alert or to
	// disable the cache.
	OnError func(error)
	// KeyFunc can be optionally set to derive store keys differently. By
	// default the query id is combined with a mitchellh/hashstructure hash
	// of the arguments.
	KeyFunc KeyFunc
	// Parser defaults to sqlparse.Parser.
	Parser Parser
	// Metrics defaults to metrics.Nop().
	Metrics metrics.Registry
	// Logger defaults to zap.NewNop().
	Logger *zap.Logger
	// QueryCacheCapacity defaults to DefaultQueryCacheCapacity.
	QueryCacheCapacity int
	// StoreTimeout defaults to DefaultStoreTimeout.
	StoreTimeout time.Duration
	// QueryLog, when set, is told about every newly seen query.
	QueryLog QueryLog
}

// Stats contains cache statistics.
type Stats struct {
	Hits   uint64
	Misses uint64
	Errors uint64
}

// Cache decides per query whether to serve results from the store, and
// fills the store on misses.
type Cache struct {
	store        cache.Store
	snapshots    config.Provider
	keyFunc      KeyFunc
	onErr        func(error)
	logger       *zap.Logger
	storeTimeout time.Duration
	queryLog     QueryLog
	queries      *queryCache
	stats        Stats
	disabled     atomic.Bool
}

// New returns a Cache initialised with the provided config.
func New(config *Config) (*Cache, error) {
	if config == nil {
		return nil, fmt.Errorf("config can't be nil")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("store must be set in Config")
	}
	if config.Snapshots == nil {
		return nil, fmt.Errorf("snapshots must be set in Config")
	}

	c := &Cache{
		store:        config.Store,
		snapshots:    config.Snapshots,
		keyFunc:      config.KeyFunc,
		onErr:        config.OnError,
		logger:       config.Logger,
		storeTimeout: config.StoreTimeout,
		queryLog:     config.QueryLog,
	}
	if c.keyFunc == nil {
		c.keyFunc = defaultKeyFunc
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.storeTimeout <= 0 {
		c.storeTimeout = DefaultStoreTimeout
	}

	parser := config.Parser
	if parser == nil {
		parser = sqlparse.Parser{}
	}
	registry := config.Metrics
	if registry == nil {
		registry = metrics.Nop()
	}
	capacity := config.QueryCacheCapacity
	if capacity <= 0 {
		capacity = DefaultQueryCacheCapacity
	}
	var err error
	c.queries, err = newQueryCache(capacity, parser, registry, c.recordQuery)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Enable enables the cache. A Cache is enabled on creation.
func (c *Cache) Enable() {
	c.disabled.Store(false)
}

// Disable bypasses the cache: all queries go directly to the database.
func (c *Cache) Disable() {
	c.disabled.Store(true)
}

// Stats returns cache stats.
func (c *Cache) Stats() *Stats {
	return &Stats{
		Hits:   atomic.LoadUint64(&c.stats.Hits),
		Misses: atomic.LoadUint64(&c.stats.Misses),
		Errors: atomic.LoadUint64(&c.stats.Errors),
	}
}

// Queries returns the known queries from oldest to newest.
func (c *Cache) Queries() []*Query {
	return c.queries.queries()
}

// Query returns the result of sql with args as a table, from the store when
// a rule allows it and the store has it, otherwise by running exec. Errors
// of exec are returned unchanged; errors of the store or the codec are only
// reported through OnError and the logger.
func (c *Cache) Query(ctx context.Context, sql string, args []driver.NamedValue, exec Executor) (*rowset.Table, error) {
	rows, err := c.rows(ctx, sql, args, exec)
	if err != nil {
		return nil, err
	}
	if cached, ok := rows.(*rowsCached); ok {
		return cached.t, nil
	}
	defer rows.Close()
	return rowset.FromRows(rows)
}

// rows is Query for the driver: uncached results are streamed from exec.
func (c *Cache) rows(ctx context.Context, sql string, args []driver.NamedValue, exec Executor) (driver.Rows, error) {
	if c.disabled.Load() {
		return exec(ctx)
	}

	start := time.Now()
	q := c.queries.get(ctx, sql)
	defer func() {
		q.meters.query.Observe(time.Since(start))
	}()

	snapshot := c.snapshots.Current()
	action := snapshot.Ruleset.Fire(q.rule(sql))
	if !action.Cacheable() {
		return exec(ctx)
	}

	key, err := c.keyFunc(q.ID, args)
	if err != nil {
		c.reportErr(q, "KeyFunc failed", err)
		return exec(ctx)
	}

	if t := c.get(ctx, q, key); t != nil {
		return newRowsCached(t), nil
	}

	t, err := c.execute(ctx, q, exec)
	if err != nil {
		return nil, err
	}
	c.put(ctx, q, key, t, action.TTL, snapshot.BufferCapacity)
	return newRowsCached(t), nil
}

// get returns the cached table or nil. Store and decode failures are
// misses.
func (c *Cache) get(ctx context.Context, q *Query, key string) *rowset.Table {
	ctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()

	start := time.Now()
	b, ok, err := c.store.Get(ctx, key)
	q.meters.cacheGet.Observe(time.Since(start))

	var t *rowset.Table
	switch {
	case err != nil:
		c.reportErr(q, "Store.Get failed", err)
	case ok:
		t, err = rowset.Decode(b)
		if err != nil {
			c.reportErr(q, "decoding cached result failed", err)
		}
	}

	if t == nil {
		atomic.AddUint64(&c.stats.Misses, 1)
		q.meters.misses.Inc()
		return nil
	}
	atomic.AddUint64(&c.stats.Hits, 1)
	q.meters.hits.Inc()
	return t
}

func (c *Cache) execute(ctx context.Context, q *Query, exec Executor) (*rowset.Table, error) {
	start := time.Now()
	defer func() {
		q.meters.backend.Observe(time.Since(start))
	}()

	rows, err := exec(ctx)
	if err != nil {
		return nil, err
	}
	t, err := rowset.FromRows(rows)
	if closeErr := rows.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// put stores t with a single attempt.
func (c *Cache) put(ctx context.Context, q *Query, key string, t *rowset.Table, ttl time.Duration, capacity int) {
	b, err := rowset.Encode(t, capacity)
	if err != nil {
		c.reportErr(q, "encoding result failed", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()

	start := time.Now()
	err = c.store.Set(ctx, key, b, ttl)
	q.meters.cachePut.Observe(time.Since(start))
	if err != nil {
		c.reportErr(q, "Store.Set failed", err)
	}
}

func (c *Cache) recordQuery(ctx context.Context, q *Query) {
	if c.queryLog == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()

	info := q.Info()
	info.Seen = time.Now().UTC()
	if err := c.queryLog.Record(ctx, info); err != nil {
		c.reportErr(q, "QueryLog.Record failed", err)
	}
}

func (c *Cache) reportErr(q *Query, msg string, err error) {
	atomic.AddUint64(&c.stats.Errors, 1)
	c.logger.Warn(msg, zap.String("query_id", q.ID), zap.Error(err))
	if c.onErr != nil {
		c.onErr(fmt.Errorf("%s: %w", msg, err))
	}
}
