package smartcache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/prashanthpai/smartcache/metrics"
	"github.com/prashanthpai/smartcache/rules"
	"github.com/prashanthpai/smartcache/sqlparse"
)

// DefaultQueryCacheCapacity is the default number of distinct queries whose
// parse results are kept.
const DefaultQueryCacheCapacity = 10000

// Query is what the cache knows about one distinct SQL text. It is built
// once per fingerprint and not modified afterwards.
type Query struct {
	// ID is the fingerprint of the normalized SQL text.
	ID string
	// SQL is the text first seen with this fingerprint. Rules are matched
	// against the text of each execution, not this one.
	SQL string
	// Statement is nil when the SQL could not be parsed.
	Statement sqlparse.Statement
	// Tables is empty when the SQL could not be parsed.
	Tables rules.Set

	meters meters
}

type meters struct {
	query    metrics.Timer
	backend  metrics.Timer
	cacheGet metrics.Timer
	cachePut metrics.Timer
	hits     metrics.Counter
	misses   metrics.Counter
}

func newMeters(r metrics.Registry, id string) meters {
	return meters{
		query:    r.Timer(metrics.Query, id),
		backend:  r.Timer(metrics.Backend, id),
		cacheGet: r.Timer(metrics.CacheGet, id),
		cachePut: r.Timer(metrics.CachePut, id),
		hits:     r.Counter(metrics.CacheGet, id, metrics.ResultHit),
		misses:   r.Counter(metrics.CacheGet, id, metrics.ResultMiss),
	}
}

// rule describes an execution of q with the given SQL text to the rule
// engine.
func (q *Query) rule(sql string) rules.Query {
	return rules.Query{ID: q.ID, SQL: sql, Tables: q.Tables}
}

// Info returns the loggable description of q.
func (q *Query) Info() QueryInfo {
	return QueryInfo{
		ID:     q.ID,
		SQL:    q.SQL,
		Tables: q.Tables.Sorted(),
		Parsed: q.Statement != nil,
	}
}

// queryCache keeps Query entries by fingerprint and evicts the oldest
// inserted entry once full. Lookups never refresh an entry.
type queryCache struct {
	lru     *lru.Cache[string, *Query]
	parser  Parser
	metrics metrics.Registry
	// onAdd is called outside any lock for every entry that was added.
	onAdd func(ctx context.Context, q *Query)
}

func newQueryCache(capacity int, parser Parser, registry metrics.Registry, onAdd func(context.Context, *Query)) (*queryCache, error) {
	l, err := lru.New[string, *Query](capacity)
	if err != nil {
		return nil, err
	}
	return &queryCache{
		lru:     l,
		parser:  parser,
		metrics: registry,
		onAdd:   onAdd,
	}, nil
}

// get returns the entry for sql, creating it if needed. Parsing happens
// before the entry is inserted; when two callers race on a new query the
// first insert wins and both get it.
func (qc *queryCache) get(ctx context.Context, sql string) *Query {
	id := sqlparse.Fingerprint(sql)
	if q, ok := qc.lru.Peek(id); ok {
		return q
	}

	q := &Query{
		ID:     id,
		SQL:    sql,
		Tables: rules.Set{},
		meters: newMeters(qc.metrics, id),
	}
	if stmt, err := qc.parser.Parse(sql); err == nil {
		q.Statement = stmt
		q.Tables = rules.NewSet(qc.parser.ExtractTables(stmt)...)
	}

	if prev, ok, _ := qc.lru.PeekOrAdd(id, q); ok {
		return prev
	}
	if qc.onAdd != nil {
		qc.onAdd(ctx, q)
	}
	return q
}

func (qc *queryCache) contains(id string) bool {
	return qc.lru.Contains(id)
}

// queries returns the entries from oldest to newest.
func (qc *queryCache) queries() []*Query {
	return qc.lru.Values()
}

// QueryInfo is the stored description of a query, as listed by operator
// tooling.
type QueryInfo struct {
	ID     string    `msgpack:"id" json:"id"`
	SQL    string    `msgpack:"sql" json:"sql"`
	Tables []string  `msgpack:"tables" json:"tables"`
	Parsed bool      `msgpack:"parsed" json:"parsed"`
	Seen   time.Time `msgpack:"seen" json:"seen"`
}
