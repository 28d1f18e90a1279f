package smartcache

import (
	"database/sql/driver"
	"io"

	"github.com/prashanthpai/smartcache/rowset"
)

// rowsCached implements driver.Rows over a table, reporting the column
// metadata the table was built from.
type rowsCached struct {
	t    *rowset.Table
	cols []string
}

func newRowsCached(t *rowset.Table) *rowsCached {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = c.Label
	}
	return &rowsCached{t: t, cols: cols}
}

func (r *rowsCached) Columns() []string {
	return r.cols
}

func (r *rowsCached) Next(dest []driver.Value) error {
	if !r.t.Next() {
		return io.EOF
	}

	for i, v := range r.t.Row() {
		dest[i] = rowset.DriverValue(v)
	}
	return nil
}

func (r *rowsCached) Close() error {
	return nil
}

func (r *rowsCached) ColumnTypeDatabaseTypeName(index int) string {
	return r.t.Columns[index].TypeName
}

func (r *rowsCached) ColumnTypeNullable(index int) (nullable, ok bool) {
	switch r.t.Columns[index].Nullable {
	case rowset.Nullable:
		return true, true
	case rowset.NoNulls:
		return false, true
	}
	return false, false
}

func (r *rowsCached) ColumnTypeLength(index int) (int64, bool) {
	c := r.t.Columns[index]
	if c.DisplaySize == 0 {
		return 0, false
	}
	return int64(c.DisplaySize), true
}

func (r *rowsCached) ColumnTypePrecisionScale(index int) (precision, scale int64, ok bool) {
	c := r.t.Columns[index]
	if c.Precision == 0 && c.Scale == 0 {
		return 0, 0, false
	}
	return int64(c.Precision), int64(c.Scale), true
}
