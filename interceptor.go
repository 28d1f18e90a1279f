package smartcache

import (
	"context"
	"database/sql/driver"

	"github.com/ngrok/sqlmw"
)

// Interceptor is a ngrok/sqlmw interceptor that serves query results through
// a Cache.
type Interceptor struct {
	*Cache
	sqlmw.NullInterceptor
}

// NewInterceptor returns a new instance of the interceptor initialised with
// the provided config.
func NewInterceptor(config *Config) (*Interceptor, error) {
	c, err := New(config)
	if err != nil {
		return nil, err
	}
	return &Interceptor{Cache: c}, nil
}

// Driver wraps d so that queries run through the interceptor.
func (i *Interceptor) Driver(d driver.Driver) driver.Driver {
	return sqlmw.Driver(d, i)
}

// StmtQueryContext intercepts database/sql's stmt.QueryContext calls from a prepared statement.
func (i *Interceptor) StmtQueryContext(ctx context.Context, conn driver.StmtQueryContext, query string, args []driver.NamedValue) (driver.Rows, error) {
	return i.rows(ctx, query, args, func(ctx context.Context) (driver.Rows, error) {
		return conn.QueryContext(ctx, args)
	})
}

// ConnQueryContext intercepts database/sql's DB.QueryContext Conn.QueryContext calls.
func (i *Interceptor) ConnQueryContext(ctx context.Context, conn driver.QueryerContext, query string, args []driver.NamedValue) (driver.Rows, error) {
	return i.rows(ctx, query, args, func(ctx context.Context) (driver.Rows, error) {
		return conn.QueryContext(ctx, query, args)
	})
}
